// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package imgerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByKindOnly(t *testing.T) {
	is := assert.New(t)

	err := Wrap(FileTooBig, "ciphertext exceeds remaining capacity", errors.New("cause"))
	is.True(errors.Is(err, New(FileTooBig, "")))
	is.False(errors.Is(err, New(PayloadOob, "")))
}

func TestError_UnwrapExposesCause(t *testing.T) {
	is := assert.New(t)
	cause := errors.New("boom")
	err := Wrap(CryptoFail, "decrypt payload", cause)
	is.ErrorIs(err, cause)
}

func TestKind_Terminal(t *testing.T) {
	is := assert.New(t)
	is.True(InvalidMagic.Terminal())
	is.True(PayloadOob.Terminal())
	is.False(CryptoFail.Terminal())
	is.False(NoCapacity.Terminal())
}

func TestKind_PerFile(t *testing.T) {
	is := assert.New(t)

	perFile := []Kind{FileNotFound, PathIsDir, FileTooBig, NameTooLong, FileCorrupted, FileExists}
	for _, k := range perFile {
		is.Truef(k.PerFile(), "%s should be per-file", k)
	}

	notPerFile := []Kind{NoMemory, FileInvalid, CodecFail, NoCapacity, CryptoFail, InvalidMagic, PayloadOob, NewerVersion, SaveFail}
	for _, k := range notPerFile {
		is.Falsef(k.PerFile(), "%s should not be per-file", k)
	}
}

func TestKind_StringUnknown(t *testing.T) {
	is := assert.New(t)
	is.Equal("Unknown", Kind(999).String())
}
