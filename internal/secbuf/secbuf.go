// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package secbuf provides a fixed-capacity, zeroizing byte buffer for
// holding a plaintext password between prompt and key derivation.
package secbuf

import (
	"fmt"

	"github.com/sixafter/prng-chacha"
)

// MaxLength is the largest password length this buffer can hold.
const MaxLength = 4080

// Buffer is a length-tagged byte sequence of fixed capacity MaxLength.
// Bytes beyond the declared length are filled with indistinguishable
// random padding rather than zeros, so a partially inspected allocation
// does not betray the true password length. Destroy zeroizes the whole
// capacity; the underlying page is locked into physical memory where the
// platform allows it, to keep the password out of swap.
type Buffer struct {
	data   []byte
	length int
	locked bool
}

// New allocates a Buffer and fills its capacity with random padding.
func New() (*Buffer, error) {
	b := &Buffer{data: make([]byte, MaxLength)}
	if _, err := prng.Reader.Read(b.data); err != nil {
		return nil, fmt.Errorf("secbuf: pad with entropy: %w", err)
	}
	b.locked = lockMemory(b.data)
	return b, nil
}

// Set copies password into the buffer's front, recording its length.
// It returns an error if password exceeds MaxLength.
func (b *Buffer) Set(password []byte) error {
	if len(password) > MaxLength {
		return fmt.Errorf("secbuf: password length %d exceeds maximum %d", len(password), MaxLength)
	}
	copy(b.data, password)
	b.length = len(password)
	return nil
}

// Bytes returns the declared-length view of the buffer's contents.
// The returned slice aliases the buffer and must not be retained past
// Destroy.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.length]
}

// Len returns the declared password length.
func (b *Buffer) Len() int {
	return b.length
}

// Destroy zeroizes the entire capacity and unlocks the memory if it was
// locked. Safe to call more than once.
func (b *Buffer) Destroy() {
	if b.data == nil {
		return
	}
	for i := range b.data {
		b.data[i] = 0
	}
	if b.locked {
		unlockMemory(b.data)
		b.locked = false
	}
	b.length = 0
}
