// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package extract

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

func buildCoverWithHiddenFiles(t *testing.T, names []string, contents [][]byte) []byte {
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
	for i, name := range names {
		require.NoError(t, carrierImg.Insert(name, now, now, now, contents[i]))
	}

	var out bytes.Buffer
	require.NoError(t, carrierImg.Save(&out))
	carrierImg.Close()
	return out.Bytes()
}

func resetFlags() {
	inputPath = ""
	outputDir = ""
	password = ""
	noPassword = false
	verbose = false
	silent = false
}

func TestExtractCommand_MissingRequiredFlags(t *testing.T) {
	resetFlags()
	is := assert.New(t)

	cmd := NewExtractCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	is.Error(cmd.Execute())
}

func TestExtractCommand_RecoversFilesInOrder(t *testing.T) {
	resetFlags()
	is := assert.New(t)
	require := require.New(t)

	coverBytes := buildCoverWithHiddenFiles(t,
		[]string{"a.txt", "b.txt"},
		[][]byte{[]byte("first file"), []byte("second file")},
	)

	dir := t.TempDir()
	coverPath := filepath.Join(dir, "cover.png")
	require.NoError(os.WriteFile(coverPath, coverBytes, 0o644))
	outDir := filepath.Join(dir, "out")

	cmd := NewExtractCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--extract", coverPath,
		"--output", outDir,
		"--no-password",
	})

	require.NoError(cmd.Execute())

	gotA, err := os.ReadFile(filepath.Join(outDir, "a.txt"))
	require.NoError(err)
	is.Equal("first file", string(gotA))

	gotB, err := os.ReadFile(filepath.Join(outDir, "b.txt"))
	require.NoError(err)
	is.Equal("second file", string(gotB))
}

func TestExtractCommand_WrongPasswordReportsNoFilesFound(t *testing.T) {
	resetFlags()
	is := assert.New(t)
	require := require.New(t)

	coverBytes := buildCoverWithHiddenFiles(t, []string{"a.txt"}, [][]byte{[]byte("secret")})

	dir := t.TempDir()
	coverPath := filepath.Join(dir, "cover.png")
	require.NoError(os.WriteFile(coverPath, coverBytes, 0o644))
	outDir := filepath.Join(dir, "out")

	cmd := NewExtractCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--extract", coverPath,
		"--output", outDir,
		"--password", "definitely wrong",
	})

	is.Error(cmd.Execute())
}
