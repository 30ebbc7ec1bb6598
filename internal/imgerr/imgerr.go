// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package imgerr defines the typed error kinds raised by the steganographic
// core, so callers can branch on failure class with errors.Is/errors.As
// instead of matching on message text.
package imgerr

import "fmt"

// Kind classifies a failure by how it should be surfaced to the caller:
// fatal, per-file, per-operation, or an expected extract-loop terminator.
type Kind int

const (
	// NoMemory is returned when an allocation or the KDF's memory request fails.
	NoMemory Kind = iota
	// FileNotFound is returned when an input path cannot be opened.
	FileNotFound
	// PathIsDir is returned when a path refers to a directory where a file was expected.
	PathIsDir
	// FileInvalid is returned when a cover image's magic bytes are unrecognized.
	FileInvalid
	// CodecFail is returned when the decoder or encoder rejects an image.
	CodecFail
	// NoCapacity is returned when a cover image's slot vector is empty (a uniform flat image or a fully transparent PNG carries no writable bits).
	NoCapacity
	// FileTooBig is returned when ciphertext exceeds the carrier's remaining capacity.
	FileTooBig
	// NameTooLong is returned when a file name exceeds 65535 bytes including its NUL terminator.
	NameTooLong
	// FileCorrupted is returned when a source file changes size mid-read.
	FileCorrupted
	// CryptoFail is returned when decryption authentication fails or an inflated size mismatches.
	CryptoFail
	// InvalidMagic is returned when no payload frame is found at the current position.
	InvalidMagic
	// PayloadOob is returned when a read would exceed the slot vector.
	PayloadOob
	// NewerVersion is returned when the on-image crypto version exceeds what this build supports.
	NewerVersion
	// FileExists is returned when an output name cannot be resolved after 99 collision attempts.
	FileExists
	// SaveFail is returned when writing the destination image fails.
	SaveFail
)

var kindNames = map[Kind]string{
	NoMemory:      "NoMemory",
	FileNotFound:  "FileNotFound",
	PathIsDir:     "PathIsDir",
	FileInvalid:   "FileInvalid",
	CodecFail:     "CodecFail",
	NoCapacity:    "NoCapacity",
	FileTooBig:    "FileTooBig",
	NameTooLong:   "NameTooLong",
	FileCorrupted: "FileCorrupted",
	CryptoFail:    "CryptoFail",
	InvalidMagic:  "InvalidMagic",
	PayloadOob:    "PayloadOob",
	NewerVersion:  "NewerVersion",
	FileExists:    "FileExists",
	SaveFail:      "SaveFail",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error wraps a Kind with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, imgerr.New(imgerr.FileTooBig, "")) style checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given Kind that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Terminal reports whether a Kind is an expected extract-loop terminator
// (InvalidMagic, PayloadOob) rather than a user-facing failure.
func (k Kind) Terminal() bool {
	return k == InvalidMagic || k == PayloadOob
}

// PerFile reports whether a Kind is scoped to the single file being
// hidden or extracted when it occurs, rather than the whole run: the CLI
// reports it and continues with the remaining files (spec.md §7,
// SPEC_FULL.md §7).
func (k Kind) PerFile() bool {
	switch k {
	case FileNotFound, PathIsDir, FileTooBig, NameTooLong, FileCorrupted, FileExists:
		return true
	default:
		return false
	}
}
