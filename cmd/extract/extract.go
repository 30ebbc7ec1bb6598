// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package extract implements the extract command: open a cover image and
// pull every hidden file out of it in insertion order, writing each to
// --output (spec.md §6, §4.7 Extract).
package extract

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

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
	outputDir  string
	password   string
	noPassword bool
	verbose    bool
	silent     bool
)

// NewExtractCommand creates and returns the extract command.
func NewExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Recover every file hidden inside a cover image",
		Long: `Recover every file hidden inside a JPEG, PNG, or WebP cover image,
writing each one to --output in the order it was hidden.`,
		RunE: runExtract,
	}

	cmd.Flags().StringVarP(&inputPath, "extract", "e", "", "cover image to extract from (required)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "destination directory for recovered files (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password supplied inline")
	cmd.Flags().BoolVarP(&noPassword, "no-password", "n", false, "use an empty password")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print progress as each file is extracted")
	cmd.Flags().BoolVarP(&silent, "silent", "s", false, "suppress the success message")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	if inputPath == "" {
		return fmt.Errorf("extract: --extract is required")
	}
	if outputDir == "" {
		return fmt.Errorf("extract: --output is required")
	}

	coverData, _, err := imageio.Read(inputPath)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("extract: create output directory: %w", err)
	}

	pw, err := prompt.Acquire(cmd, password, noPassword)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	defer pw.Destroy()

	var obs progress.Observer = progress.Noop{}
	if verbose {
		obs = progress.Logging{W: cmd.OutOrStderr()}
	}

	img, err := engine.Open(coverData, pw.Bytes(), obs)
	if err != nil {
		return fmt.Errorf("extract: open cover image: %w", err)
	}
	defer img.Close()

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
			return fmt.Errorf("extract: %w", err)
		}

		name := imageio.SanitizeName(file.Name)
		destPath, err := imageio.SaveWithTimes(filepath.Join(outputDir, name), file.Data, file.AccessTime, file.ModTime)
		if err != nil {
			var ie *imgerr.Error
			if errors.As(err, &ie) && ie.Kind.PerFile() {
				fmt.Fprintf(cmd.OutOrStderr(), "extract: skipping %q: %v\n", file.Name, err)
				continue
			}
			return fmt.Errorf("extract: write %q: %w", file.Name, err)
		}

		count++
		if !silent {
			fmt.Fprintf(w, "extracted %s (%s)\n", destPath, humanize.Bytes(uint64(len(file.Data))))
		}
	}

	if count == 0 {
		return fmt.Errorf("extract: no hidden files found (wrong password, or cover carries no payload)")
	}

	return nil
}
