// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sixafter/imgconceal/internal/imgerr"
)

func TestComposeParse_RoundTrip(t *testing.T) {
	is := assert.New(t)

	access := time.Unix(1_700_000_000, 123456789).UTC()
	mod := time.Unix(1_700_000_100, 0).UTC()
	steg := time.Unix(1_700_000_200, 999).UTC()
	data := []byte("Hello, world!\n")

	plaintext, err := Compose("hello.txt", access, mod, steg, data)
	is.NoError(err)

	f, err := Parse(plaintext)
	is.NoError(err)
	is.Equal("hello.txt", f.Name)
	is.Equal(data, f.Data)
	is.True(f.AccessTime.Equal(access))
	is.True(f.ModTime.Equal(mod))
	is.True(f.StegTime.Equal(steg))
}

func TestComposeParse_EmptyFile(t *testing.T) {
	is := assert.New(t)

	now := time.Now().UTC()
	plaintext, err := Compose("empty.bin", now, now, now, nil)
	is.NoError(err)

	f, err := Parse(plaintext)
	is.NoError(err)
	is.Empty(f.Data)
}

func TestCompose_FileTooBig(t *testing.T) {
	is := assert.New(t)

	now := time.Now()
	big := make([]byte, MaxFileSize+1)
	_, err := Compose("big.bin", now, now, now, big)
	is.Error(err)

	var ie *imgerr.Error
	is.ErrorAs(err, &ie)
	is.Equal(imgerr.FileTooBig, ie.Kind)
}

func TestCompose_NameTooLong(t *testing.T) {
	is := assert.New(t)

	now := time.Now()
	longName := make([]byte, MaxNameLen)
	for i := range longName {
		longName[i] = 'a'
	}
	_, err := Compose(string(longName), now, now, now, nil)
	is.Error(err)

	var ie *imgerr.Error
	is.ErrorAs(err, &ie)
	is.Equal(imgerr.NameTooLong, ie.Kind)
}

func TestParse_NewerVersionRejected(t *testing.T) {
	is := assert.New(t)

	now := time.Now()
	plaintext, err := Compose("f.txt", now, now, now, []byte("x"))
	is.NoError(err)

	// Corrupt the version field to something newer than supported.
	plaintext[0] = 2

	_, err = Parse(plaintext)
	is.Error(err)
	var ie *imgerr.Error
	is.ErrorAs(err, &ie)
	is.Equal(imgerr.NewerVersion, ie.Kind)
}

func TestParse_TruncatedPrefixFails(t *testing.T) {
	is := assert.New(t)

	_, err := Parse([]byte{1, 2, 3})
	is.Error(err)
}

func TestComposeParse_NameWithUnicodeBytes(t *testing.T) {
	is := assert.New(t)

	now := time.Now()
	plaintext, err := Compose("résumé-日本語.txt", now, now, now, []byte{1, 2, 3})
	is.NoError(err)

	f, err := Parse(plaintext)
	is.NoError(err)
	is.Equal("résumé-日本語.txt", f.Name)
}
