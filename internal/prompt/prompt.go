// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package prompt acquires the password used to derive the key and PRNG
// seed (spec.md §4.2), either inline, empty, or from an interactive
// terminal read with echo disabled.
package prompt

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sixafter/imgconceal/internal/secbuf"
)

// Acquire returns a secbuf.Buffer holding the password to use, per
// spec.md §6: noPassword forces an empty password; otherwise inline is
// used verbatim if non-empty; otherwise the terminal is prompted with
// echo disabled. The caller owns the returned buffer and must call
// Destroy on it once the derived key material is no longer needed.
func Acquire(cmd *cobra.Command, inline string, noPassword bool) (*secbuf.Buffer, error) {
	buf, err := secbuf.New()
	if err != nil {
		return nil, fmt.Errorf("prompt: allocate secure buffer: %w", err)
	}

	switch {
	case noPassword:
		return buf, nil

	case inline != "":
		if err := buf.Set([]byte(inline)); err != nil {
			buf.Destroy()
			return nil, err
		}
		return buf, nil

	default:
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			buf.Destroy()
			return nil, fmt.Errorf("prompt: stdin is not a terminal; supply --password or --no-password")
		}

		fmt.Fprint(cmd.OutOrStderr(), "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStderr())
		if err != nil {
			buf.Destroy()
			return nil, fmt.Errorf("prompt: read password: %w", err)
		}

		setErr := buf.Set(raw)
		for i := range raw {
			raw[i] = 0
		}
		if setErr != nil {
			buf.Destroy()
			return nil, setErr
		}
		return buf, nil
	}
}
