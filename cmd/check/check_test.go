// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package check

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixafter/imgconceal/internal/engine"
)

func buildCoverWithHiddenFile(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: byte(x * 3), G: byte(y * 3), B: byte(x + y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	carrierImg, err := engine.Open(buf.Bytes(), nil, nil)
	require.NoError(t, err)

	now := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, carrierImg.Insert(name, now, now, now, data))

	var out bytes.Buffer
	require.NoError(t, carrierImg.Save(&out))
	carrierImg.Close()
	return out.Bytes()
}

func resetFlags() {
	inputPath = ""
	password = ""
	noPassword = false
	verbose = false
}

func TestCheckCommand_MissingRequiredFlag(t *testing.T) {
	resetFlags()
	is := assert.New(t)

	cmd := NewCheckCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	is.Error(cmd.Execute())
}

func TestCheckCommand_ListsMetadataWithoutWritingFiles(t *testing.T) {
	resetFlags()
	is := assert.New(t)
	require := require.New(t)

	coverBytes := buildCoverWithHiddenFile(t, "notes.txt", []byte("some hidden contents"))

	dir := t.TempDir()
	coverPath := filepath.Join(dir, "cover.png")
	require.NoError(os.WriteFile(coverPath, coverBytes, 0o644))

	cmd := NewCheckCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--check", coverPath,
		"--no-password",
	})

	require.NoError(cmd.Execute())
	is.Contains(out.String(), "notes.txt")

	entries, err := os.ReadDir(dir)
	require.NoError(err)
	is.Len(entries, 1, "check must not write any file to the filesystem")
}

func TestCheckCommand_WrongPasswordReportsNoFilesFound(t *testing.T) {
	resetFlags()
	is := assert.New(t)
	require := require.New(t)

	coverBytes := buildCoverWithHiddenFile(t, "notes.txt", []byte("some hidden contents"))

	dir := t.TempDir()
	coverPath := filepath.Join(dir, "cover.png")
	require.NoError(os.WriteFile(coverPath, coverBytes, 0o644))

	cmd := NewCheckCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--check", coverPath,
		"--password", "nope",
	})

	is.Error(cmd.Execute())
}
