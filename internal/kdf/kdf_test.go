// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package kdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerive_Deterministic(t *testing.T) {
	is := assert.New(t)

	key1, seed1, err := Derive([]byte("correct horse"))
	is.NoError(err)

	key2, seed2, err := Derive([]byte("correct horse"))
	is.NoError(err)

	is.Equal(key1, key2, "same password must derive the same key")
	is.Equal(seed1, seed2, "same password must derive the same seed")
}

func TestDerive_DifferentPasswordsDiffer(t *testing.T) {
	is := assert.New(t)

	key1, seed1, err := Derive([]byte("password-a"))
	is.NoError(err)

	key2, seed2, err := Derive([]byte("password-b"))
	is.NoError(err)

	is.NotEqual(key1, key2)
	is.NotEqual(seed1, seed2)
}

func TestDerive_EmptyPassword(t *testing.T) {
	is := assert.New(t)

	key, seed, err := Derive(nil)
	is.NoError(err)
	is.NotEqual([32]byte{}, key, "empty password should still produce a non-zero key")
	is.NotEqual([32]byte{}, seed)
}

func TestDerive_KeyAndSeedDiffer(t *testing.T) {
	is := assert.New(t)

	key, seed, err := Derive([]byte("x"))
	is.NoError(err)
	is.NotEqual(key, seed, "key and seed halves of the Argon2id output must not coincide")
}
