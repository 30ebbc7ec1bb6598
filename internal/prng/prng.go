// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package prng implements the deterministic keyed byte stream the
// steganographic core uses to shuffle carrier slots. Given the same
// 32-byte seed it always produces the same stream and therefore the
// same Fisher-Yates permutation.
//
// The production source this is grounded on (SHISHUA) is a dedicated
// non-cryptographic stream generator; this implementation instead keys
// a golang.org/x/crypto/chacha20 stream from the KDF-derived seed, the
// same keystream primitive github.com/sixafter/prng-chacha layers a
// pooled, self-reseeding io.Reader on top of. That pooling is exactly
// what this package cannot use: the shuffle must be reproducible from
// the password alone, so the stream here is keyed once, deterministically,
// and never rekeyed.
package prng

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// outBufSize is the size of the internal scratch buffer refilled from the
// raw keystream and drained by Fill. It must be a multiple of
// chacha20.BlockSize so refills never split a block.
const outBufSize = 128

func init() {
	if outBufSize%chacha20.BlockSize != 0 {
		panic("prng: outBufSize must be a multiple of chacha20.BlockSize")
	}
}

// Stream is a keyed, deterministic pseudo-random byte source.
type Stream struct {
	cipher *chacha20.Cipher
	buf    [outBufSize]byte
	pos    int // next unread byte in buf; pos == len(buf) means empty
}

// New keys a Stream from a 32-byte seed. The nonce is fixed at all-zero:
// determinism comes entirely from the seed, which is itself unique per
// password (via the KDF), so nonce reuse across streams never reuses a
// password.
func New(seed [32]byte) (*Stream, error) {
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, fmt.Errorf("prng: init cipher: %w", err)
	}
	s := &Stream{cipher: c, pos: outBufSize}
	return s, nil
}

// refill regenerates the scratch buffer from the raw keystream.
func (s *Stream) refill() {
	var zero [outBufSize]byte
	s.cipher.XORKeyStream(s.buf[:], zero[:])
	s.pos = 0
}

// Fill writes len(out) pseudo-random bytes into out, draining and
// refilling the internal scratch buffer as needed.
func (s *Stream) Fill(out []byte) {
	for len(out) > 0 {
		if s.pos == outBufSize {
			s.refill()
		}
		n := copy(out, s.buf[s.pos:])
		s.pos += n
		out = out[n:]
	}
}

// byteWidth returns the minimum number of bytes needed to represent
// values in [0, maxInclusive].
func byteWidth(maxInclusive uint64) int {
	n := 0
	for v := maxInclusive; v > 0; v >>= 8 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

// NextUint64Bounded draws a rejection-sampled uniform integer in
// [0, maxInclusive]. It uses the minimum number of bytes required to
// represent maxInclusive+1, rejecting draws above the largest multiple of
// the range to avoid modulo bias, and retries until a draw is accepted.
// When maxInclusive == math.MaxUint64, a single raw 8-byte draw suffices
// since every value is in range.
func (s *Stream) NextUint64Bounded(maxInclusive uint64) uint64 {
	if maxInclusive == ^uint64(0) {
		var buf [8]byte
		s.Fill(buf[:])
		return binary.LittleEndian.Uint64(buf[:])
	}

	rangeSize := maxInclusive + 1
	width := byteWidth(rangeSize)

	var full uint64
	if width == 8 {
		full = ^uint64(0)
	} else {
		full = uint64(1) << (8 * width)
	}
	limit := full - (full % rangeSize)

	buf := make([]byte, width)
	for {
		s.Fill(buf)
		var v uint64
		for i := 0; i < width; i++ {
			v |= uint64(buf[i]) << (8 * i)
		}
		if v < limit {
			return v % rangeSize
		}
	}
}

// Shuffle performs an in-place Fisher-Yates shuffle of s over the stream's
// pseudo-random draws: for i = n-1 downTo 1, draw j in [0, i] and swap
// slice[i] with slice[j], skipping the swap when j == i. Deterministic
// for a fixed seed and a fixed starting slice length.
func Shuffle[T any](s *Stream, slice []T) {
	for i := len(slice) - 1; i > 0; i-- {
		j := s.NextUint64Bounded(uint64(i))
		if uint64(i) == j {
			continue
		}
		slice[i], slice[j] = slice[j], slice[i]
	}
}
