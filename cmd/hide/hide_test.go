// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package hide

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixafter/imgconceal/internal/engine"
)

func writeCoverPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{
				R: byte(x * 4),
				G: byte(y * 4),
				B: byte((x + y) * 2),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func resetFlags() {
	inputPath = ""
	outputPath = ""
	hideFiles = nil
	uncompressed = false
	appendMode = false
	password = ""
	noPassword = false
	verbose = false
	silent = false
}

func TestHideCommand_MissingRequiredFlags(t *testing.T) {
	resetFlags()
	is := assert.New(t)

	cmd := NewHideCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	is.Error(err)
}

func TestHideCommand_InsertsAndRoundTripsThroughEngine(t *testing.T) {
	resetFlags()
	is := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	coverPath := filepath.Join(dir, "cover.png")
	writeCoverPNG(t, coverPath)

	secretPath := filepath.Join(dir, "secret.txt")
	require.NoError(os.WriteFile(secretPath, []byte("Hello, world!\n"), 0o644))

	outPath := filepath.Join(dir, "out.png")

	cmd := NewHideCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--input", coverPath,
		"--output", outPath,
		"--hide", secretPath,
		"--no-password",
		"--silent",
	})

	require.NoError(cmd.Execute())

	outData, err := os.ReadFile(outPath)
	require.NoError(err)

	img, err := engine.Open(outData, nil, nil)
	require.NoError(err)
	defer img.Close()

	file, err := img.Extract()
	require.NoError(err)
	is.Equal("secret.txt", file.Name)
	is.Equal([]byte("Hello, world!\n"), file.Data)
}

func TestHideCommand_SkipsPerFileFailureAndHidesRemainingFiles(t *testing.T) {
	resetFlags()
	is := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	coverPath := filepath.Join(dir, "cover.png")
	writeCoverPNG(t, coverPath)

	goodPath := filepath.Join(dir, "good.txt")
	require.NoError(os.WriteFile(goodPath, []byte("this one hides fine"), 0o644))
	missingPath := filepath.Join(dir, "does-not-exist.txt")

	outPath := filepath.Join(dir, "out.png")

	cmd := NewHideCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--input", coverPath,
		"--output", outPath,
		"--hide", missingPath,
		"--hide", goodPath,
		"--no-password",
	})

	err := cmd.Execute()
	is.Error(err, "a missing --hide file should be reported")

	outData, err := os.ReadFile(outPath)
	require.NoError(err, "the image must still be saved with the files that did hide")

	img, err := engine.Open(outData, nil, nil)
	require.NoError(err)
	defer img.Close()

	file, err := img.Extract()
	require.NoError(err)
	is.Equal("good.txt", file.Name)
	is.Equal([]byte("this one hides fine"), file.Data)
}
