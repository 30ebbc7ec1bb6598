// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package progress routes embedding-engine progress callbacks through an
// explicit observer rather than the source's thread-local progress
// scratchpad (spec.md §9 "Global mutable state"): every call that would
// have touched process-wide state instead takes an Observer parameter.
package progress

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/sixafter/imgconceal/internal/carrier"
)

// Observer receives progress notifications from an open CarrierImage. All
// methods may be called from a single goroutine only; implementations need
// not be concurrency-safe.
type Observer interface {
	OnOpen(tag carrier.Tag, slotCount int)
	OnInsertStart(name string, size int64)
	OnInsertDone(name string)
	OnExtractStart()
	OnExtractDone(name string, size int64)
	OnSave(path string)
}

// Noop discards every notification. It is the default Observer when the
// CLI is not running with --verbose.
type Noop struct{}

func (Noop) OnOpen(carrier.Tag, int)     {}
func (Noop) OnInsertStart(string, int64) {}
func (Noop) OnInsertDone(string)         {}
func (Noop) OnExtractStart()             {}
func (Noop) OnExtractDone(string, int64) {}
func (Noop) OnSave(string)               {}

// Logging writes a line per notification to W, using go-humanize for file
// sizes. It is installed when the CLI runs with --verbose.
type Logging struct {
	W io.Writer
}

func (l Logging) OnOpen(tag carrier.Tag, slotCount int) {
	fmt.Fprintf(l.W, "opened %s cover image: %s carrier slots available\n", tag, humanize.Comma(int64(slotCount)))
}

func (l Logging) OnInsertStart(name string, size int64) {
	fmt.Fprintf(l.W, "hiding %q (%s)...\n", name, humanize.Bytes(uint64(size)))
}

func (l Logging) OnInsertDone(name string) {
	fmt.Fprintf(l.W, "hid %q\n", name)
}

func (l Logging) OnExtractStart() {
	fmt.Fprintln(l.W, "extracting next payload...")
}

func (l Logging) OnExtractDone(name string, size int64) {
	fmt.Fprintf(l.W, "extracted %q (%s)\n", name, humanize.Bytes(uint64(size)))
}

func (l Logging) OnSave(path string) {
	fmt.Fprintf(l.W, "saved %s\n", path)
}
