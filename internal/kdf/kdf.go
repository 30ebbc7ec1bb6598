// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package kdf derives a cipher key and PRNG seed from a password using
// Argon2id over a fixed application salt.
package kdf

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// saltSeed is the fixed ASCII salt material; it is padded or truncated
	// to saltLen before use, never varied per-password or per-image.
	saltSeed = "imageconceal2023"

	// saltLen is Argon2's recommended salt length in bytes.
	saltLen = 16

	// opsLimit and memLimitKiB follow the parameters named in the spec:
	// 3 passes, ~4096000 bytes (memLimitKiB is in KiB for the x/crypto API).
	opsLimit     = 3
	memLimitKiB  = 4096000 / 1024
	parallelism  = 1
	outputLength = 64 // 32-byte key + 32-byte PRNG seed
)

// KeyLen is the length in bytes of the derived cipher key.
const KeyLen = 32

// SeedLen is the length in bytes of the derived PRNG seed.
const SeedLen = 32

// OpsLimit returns the Argon2id pass count this build uses.
func OpsLimit() int { return opsLimit }

// MemLimitKiB returns the Argon2id memory request, in KiB, this build uses.
func MemLimitKiB() int { return memLimitKiB }

// salt returns the fixed application salt, padded with zero bytes (or
// truncated) to exactly saltLen bytes.
func salt() []byte {
	s := make([]byte, saltLen)
	copy(s, []byte(saltSeed))
	return s
}

// Derive runs Argon2id once over password and the fixed application salt,
// producing a 32-byte cipher key and a 32-byte PRNG seed. The empty
// password is permitted and is deterministic like any other input.
//
// Argon2id's memory request is bounded (memLimitKiB); on allocation
// failure the caller should treat the panic recovered by the x/crypto
// implementation as imgerr.NoMemory — in practice this only occurs under
// severe memory pressure, since the limit here is a few megabytes.
func Derive(password []byte) (key, seed [32]byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kdf: argon2id allocation failed: %v", r)
		}
	}()

	out := argon2.IDKey(password, salt(), opsLimit, memLimitKiB, parallelism, outputLength)
	copy(key[:], out[:KeyLen])
	copy(seed[:], out[KeyLen:])
	return key, seed, nil
}
