// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package cipher implements the authenticated stream encryption used to
// protect each hidden file: XChaCha20-Poly1305 sealing a single
// final-tagged message, framed with the on-image magic/version/length
// prefix described in spec.md §3 and §4.4.
//
// Grounded on the chacha20poly1305 AEAD construction in
// bangundwir-Heistcrypt's cryptoengine and the fixed-magic / per-message
// header framing in rclone's backend/crypt cipher.
package cipher

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// CurrentVersion is IMC_CRYPTO_VERSION. Frames with a higher version are
// rejected by Decrypt with imgerr.NewerVersion (mapped by the caller).
const CurrentVersion uint32 = 1

// Magic is the 4-byte on-image magic identifying an imgconceal frame.
var Magic = [4]byte{'i', 'm', 'c', 'l'}

// MagicPrefixLen is the number of magic bytes the extractor actually reads
// from the carrier (spec.md §9): the source relies on a zeroed scratch
// buffer's trailing NUL to make a 3-byte read compare equal to the 4-byte
// constant "imcl". This implementation preserves that wire behavior for
// compatibility with existing images: only 3 bytes ('i','m','c') are read
// and compared during extract and seek-to-end.
const MagicPrefixLen = 3

// FrameHeaderLen is the size in bytes of the plaintext frame header:
// 4-byte magic + 4-byte LE version + 4-byte LE ciphertext length.
const FrameHeaderLen = 12

// StreamHeaderLen is the size of the per-message nonce carried in the
// clear ahead of the ciphertext. It doubles as XChaCha20-Poly1305's
// extended nonce, so authentication binds every frame to its own header.
const StreamHeaderLen = chacha20poly1305.NonceSizeX

// protocolConstant is a fixed 24-byte ASCII string used as additional
// authenticated data on every frame, binding ciphertexts to this
// protocol and its version independent of the per-message nonce. It is
// a compile-time constant, not transmitted on the wire, and is distinct
// from the stream header (the per-message nonce).
var protocolConstant = func() [StreamHeaderLen]byte {
	var b [StreamHeaderLen]byte
	copy(b[:], "imageconceal v1.0.0\x00\x00\x00\x00\x00")
	return b
}()

// Overhead is the Poly1305 authentication tag length appended to every
// sealed message.
const Overhead = chacha20poly1305.Overhead

// Encrypt seals plaintext under key with a freshly drawn random stream
// header (nonce) and returns the full on-image frame: the 12-byte
// plaintext prefix (magic, CurrentVersion, ciphertext length) followed by
// the 24-byte stream header and the AEAD ciphertext (which carries its
// own trailing authentication tag — there is no separate "final tag"
// message boundary the way a multi-chunk secretstream would need, since
// each hidden file is sealed as a single message).
func Encrypt(key [32]byte, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: init aead: %w", err)
	}

	var header [StreamHeaderLen]byte
	if _, err := rand.Read(header[:]); err != nil {
		return nil, fmt.Errorf("cipher: draw stream header: %w", err)
	}

	ciphertext := aead.Seal(nil, header[:], plaintext, protocolConstant[:])

	ciphertextLen := uint32(StreamHeaderLen + len(ciphertext))

	out := make([]byte, 0, FrameHeaderLen+len(header)+len(ciphertext))
	out = append(out, Magic[:]...)
	out = appendUint32LE(out, CurrentVersion)
	out = appendUint32LE(out, ciphertextLen)
	out = append(out, header[:]...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt authenticates and opens a frame whose version has already been
// checked by the caller (the embedding engine reads the frame header
// field-by-field from carrier slots; by the time Decrypt is called,
// version has been validated against CurrentVersion). streamHeader must
// be exactly StreamHeaderLen bytes; ciphertext is everything after it up
// to the frame's declared ciphertext length.
func Decrypt(key [32]byte, streamHeader []byte, ciphertext []byte) ([]byte, error) {
	if len(streamHeader) != StreamHeaderLen {
		return nil, fmt.Errorf("cipher: stream header must be %d bytes, got %d", StreamHeaderLen, len(streamHeader))
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: init aead: %w", err)
	}

	plaintext, err := aead.Open(nil, streamHeader, ciphertext, protocolConstant[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: authentication failed: %w", err)
	}
	return plaintext, nil
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
