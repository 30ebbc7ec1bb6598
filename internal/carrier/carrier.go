// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package carrier enumerates the writable LSB slots of a decoded cover
// image and re-encodes a mutated image back to bytes, one implementation
// per codec (spec.md §4.5). Codec-specific state is reframed as a small
// interface rather than the source's function-pointer-plus-cleanup-list
// struct (spec.md §9): each codec exposes Slots and Encode, and owns
// whatever it needs to free on Close by virtue of normal Go garbage
// collection — no explicit cleanup list is required.
package carrier

import (
	"bytes"
	"io"

	"github.com/sixafter/imgconceal/internal/imgerr"
)

// Tag identifies which codec produced a Decoded image.
type Tag int

const (
	JPEG Tag = iota
	PNG
	WebP
)

func (t Tag) String() string {
	switch t {
	case JPEG:
		return "JPEG"
	case PNG:
		return "PNG"
	case WebP:
		return "WebP"
	default:
		return "Unknown"
	}
}

// Slot is a single writable byte-reference into a decoded image: one
// JPEG AC coefficient's sign-magnitude low bit, or one PNG/WebP pixel
// channel byte. LSB/SetLSB never allocate and never observably change
// anything but the single bit they're asked to change.
type Slot interface {
	LSB() byte
	SetLSB(bit byte)
}

// Decoded is a codec-specific decoded image ready for slot enumeration
// and re-encoding.
type Decoded interface {
	Tag() Tag

	// Slots returns every writable slot in the image's canonical raw
	// enumeration order (component/row/column for JPEG; row/column/channel
	// for PNG and WebP). The permutation step happens above this layer.
	Slots() []Slot

	// Encode re-serializes the (possibly mutated) decoded image, preserving
	// whatever codec-specific metadata spec.md §4.8 requires.
	Encode(w io.Writer) error
}

// Sniff inspects the leading bytes of data and returns the codec tag, or
// imgerr.FileInvalid if no supported magic is recognized.
func Sniff(data []byte) (Tag, error) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return JPEG, nil
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return PNG, nil
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return WebP, nil
	default:
		return 0, imgerr.New(imgerr.FileInvalid, "unrecognized cover image magic bytes")
	}
}

// Open sniffs data's codec and dispatches to the matching decoder.
func Open(data []byte) (Decoded, error) {
	tag, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case JPEG:
		return OpenJPEG(data)
	case PNG:
		return OpenPNG(data)
	case WebP:
		return OpenWebP(data)
	default:
		return nil, imgerr.New(imgerr.FileInvalid, "unrecognized cover image codec")
	}
}
