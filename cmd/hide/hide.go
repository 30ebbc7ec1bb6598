// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package hide implements the hide command: open a cover image, insert
// one or more files into it under a derived key, and save the result
// (spec.md §6, §4.7 Insert).
package hide

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sixafter/imgconceal/internal/engine"
	"github.com/sixafter/imgconceal/internal/imageio"
	"github.com/sixafter/imgconceal/internal/imgerr"
	"github.com/sixafter/imgconceal/internal/progress"
	"github.com/sixafter/imgconceal/internal/prompt"
)

var (
	inputPath    string
	outputPath   string
	hideFiles    []string
	uncompressed bool
	appendMode   bool
	password     string
	noPassword   bool
	verbose      bool
	silent       bool
)

// NewHideCommand creates and returns the hide command.
func NewHideCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hide",
		Short: "Hide one or more files inside a cover image",
		Long: `Hide one or more files inside a JPEG or PNG cover image under a
password-derived key, then save the result to --output.`,
		RunE: runHide,
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "cover image to hide files into (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "destination path for the resulting image (required)")
	cmd.Flags().StringArrayVarP(&hideFiles, "hide", "h", nil, "file to hide; repeatable")
	cmd.Flags().BoolVarP(&uncompressed, "uncompressed", "u", false, "reserved; this build always compresses each hidden file (FileInfo v1)")
	cmd.Flags().BoolVarP(&appendMode, "append", "a", false, "append after the last payload already in the cover instead of overwriting it")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password supplied inline")
	cmd.Flags().BoolVarP(&noPassword, "no-password", "n", false, "use an empty password")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print progress as each file is hidden")
	cmd.Flags().BoolVarP(&silent, "silent", "s", false, "suppress the success message")

	return cmd
}

func runHide(cmd *cobra.Command, args []string) error {
	if inputPath == "" {
		return fmt.Errorf("hide: --input is required")
	}
	if outputPath == "" {
		return fmt.Errorf("hide: --output is required")
	}
	if len(hideFiles) == 0 {
		return fmt.Errorf("hide: at least one --hide file is required")
	}
	if uncompressed && verbose {
		fmt.Fprintln(cmd.OutOrStderr(), "hide: --uncompressed has no effect; this build always compresses hidden files")
	}

	coverData, coverInfo, err := imageio.Read(inputPath)
	if err != nil {
		return fmt.Errorf("hide: %w", err)
	}

	pw, err := prompt.Acquire(cmd, password, noPassword)
	if err != nil {
		return fmt.Errorf("hide: %w", err)
	}
	defer pw.Destroy()

	var obs progress.Observer = progress.Noop{}
	if verbose {
		obs = progress.Logging{W: cmd.OutOrStderr()}
	}

	img, err := engine.Open(coverData, pw.Bytes(), obs)
	if err != nil {
		return fmt.Errorf("hide: open cover image: %w", err)
	}
	defer img.Close()

	if appendMode {
		if err := img.SeekToEnd(); err != nil {
			return fmt.Errorf("hide: seek to end of existing payloads: %w", err)
		}
	}

	var failed []string
	hidden := 0
	for _, path := range hideFiles {
		if err := hideOne(img, path); err != nil {
			var ie *imgerr.Error
			if errors.As(err, &ie) && ie.Kind.PerFile() {
				failed = append(failed, fmt.Sprintf("%s: %v", path, err))
				fmt.Fprintf(cmd.OutOrStderr(), "hide: skipping %q: %v\n", path, err)
				continue
			}
			return fmt.Errorf("hide: insert %q: %w", path, err)
		}
		hidden++
	}

	out, err := imageio.EncodeToBuffer(img.Save)
	if err != nil {
		return fmt.Errorf("hide: encode result image: %w", err)
	}

	finalPath, err := imageio.Save(outputPath, out, coverInfo)
	if err != nil {
		return fmt.Errorf("hide: %w", err)
	}
	obs.OnSave(finalPath)

	if !silent {
		w := bufio.NewWriter(cmd.OutOrStdout())
		defer w.Flush()
		fmt.Fprintf(w, "hid %d file(s) (%s) into %s\n", hidden, humanize.Bytes(uint64(len(out))), finalPath)
	}

	if len(failed) > 0 {
		return fmt.Errorf("hide: %d of %d file(s) could not be hidden", len(failed), len(hideFiles))
	}
	return nil
}

// hideOne reads a single file and inserts it into img, keeping the
// per-file error path isolated so runHide can decide whether to skip it
// and continue with the rest of --hide's arguments.
func hideOne(img *engine.CarrierImage, path string) error {
	data, info, err := imageio.Read(path)
	if err != nil {
		return err
	}
	access, mod := imageio.FileTimes(info)
	stegTime := nowFunc()
	return img.Insert(info.Name(), access, mod, stegTime, data)
}

// nowFunc is the source of stegTime, the moment of insertion recorded in
// each hidden file's FileInfo. A var so tests can pin it.
var nowFunc = time.Now
