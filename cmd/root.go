// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sixafter/imgconceal/cmd/algorithm"
	"github.com/sixafter/imgconceal/cmd/check"
	"github.com/sixafter/imgconceal/cmd/extract"
	"github.com/sixafter/imgconceal/cmd/hide"
	"github.com/sixafter/imgconceal/cmd/version"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "imgconceal",
	Short: "Hide and recover files inside JPEG, PNG, and WebP cover images",
	Long: `imgconceal hides arbitrary files inside JPEG, PNG, and (partially) WebP
cover images using a password-derived key and a keyed Fisher-Yates
permutation of the cover's LSB carrier positions, so the modified image
is visually indistinguishable from the original and the presence of
hidden data is not detectable without the password.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing imgconceal: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(hide.NewHideCommand())
	RootCmd.AddCommand(extract.NewExtractCommand())
	RootCmd.AddCommand(check.NewCheckCommand())
	RootCmd.AddCommand(algorithm.NewAlgorithmCommand())
	RootCmd.AddCommand(version.NewVersionCommand())
}
