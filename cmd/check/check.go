// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package check implements the check command: open a cover image and
// list the metadata of every hidden file without writing anything to
// disk (spec.md §6, §4.7 Extract step 7, §8 end-to-end scenarios).
package check

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sixafter/imgconceal/internal/engine"
	"github.com/sixafter/imgconceal/internal/imageio"
	"github.com/sixafter/imgconceal/internal/imgerr"
	"github.com/sixafter/imgconceal/internal/progress"
	"github.com/sixafter/imgconceal/internal/prompt"
)

var (
	inputPath  string
	password   string
	noPassword bool
	verbose    bool
)

// NewCheckCommand creates and returns the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "List the files hidden inside a cover image without extracting them",
		Long: `List the name, size, and timestamps of every file hidden inside a
cover image. The filesystem is left unchanged.`,
		RunE: runCheck,
	}

	cmd.Flags().StringVarP(&inputPath, "check", "c", "", "cover image to inspect (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password supplied inline")
	cmd.Flags().BoolVarP(&noPassword, "no-password", "n", false, "use an empty password")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print progress while scanning")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	if inputPath == "" {
		return fmt.Errorf("check: --check is required")
	}

	coverData, _, err := imageio.Read(inputPath)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	pw, err := prompt.Acquire(cmd, password, noPassword)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	defer pw.Destroy()

	var obs progress.Observer = progress.Noop{}
	if verbose {
		obs = progress.Logging{W: cmd.OutOrStderr()}
	}

	img, err := engine.Open(coverData, pw.Bytes(), obs)
	if err != nil {
		return fmt.Errorf("check: open cover image: %w", err)
	}
	defer img.Close()
	img.SetCheckOnly(true)

	w := bufio.NewWriter(cmd.OutOrStdout())
	defer w.Flush()

	count := 0
	for {
		file, err := img.Extract()
		if err != nil {
			var ie *imgerr.Error
			if errors.As(err, &ie) && ie.Kind.Terminal() {
				break
			}
			return fmt.Errorf("check: %w", err)
		}

		count++
		fmt.Fprintf(w, "%s\t%s\thidden %s\tmodified %s\n",
			file.Name,
			humanize.Bytes(uint64(file.Size)),
			file.StegTime.Format("2006-01-02T15:04:05Z07:00"),
			file.ModTime.Format("2006-01-02T15:04:05Z07:00"))
	}

	if count == 0 {
		return fmt.Errorf("check: no hidden files found (wrong password, or cover carries no payload)")
	}

	return nil
}
