// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package imageio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixafter/imgconceal/internal/imgerr"
)

func TestResolveOutputPath_NoCollision(t *testing.T) {
	is := assert.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")

	got, err := ResolveOutputPath(path)
	is.NoError(err)
	is.Equal(path, got)
}

func TestResolveOutputPath_AppendsCollisionSuffix(t *testing.T) {
	is := assert.New(t)
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	require.NoError(os.WriteFile(path, []byte("x"), 0o644))

	got, err := ResolveOutputPath(path)
	is.NoError(err)
	is.Equal(filepath.Join(dir, "out (1).png"), got)
}

func TestResolveOutputPath_ExhaustsAttempts(t *testing.T) {
	is := assert.New(t)
	require := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	require.NoError(os.WriteFile(path, []byte("x"), 0o644))
	for n := 1; n <= maxCollisionAttempts; n++ {
		require.NoError(os.WriteFile(filepath.Join(dir, filepathCollisionName("out", n, ".png")), []byte("x"), 0o644))
	}

	_, err := ResolveOutputPath(path)
	is.Error(err)
	var ie *imgerr.Error
	is.ErrorAs(err, &ie)
	is.Equal(imgerr.FileExists, ie.Kind)
}

func filepathCollisionName(base string, n int, ext string) string {
	return base + " (" + itoa(n) + ")" + ext
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestSave_WritesAtomicallyAndPreservesTimestamps(t *testing.T) {
	is := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.png")
	require.NoError(os.WriteFile(srcPath, []byte("original"), 0o644))
	srcInfo, err := os.Stat(srcPath)
	require.NoError(err)

	destPath := filepath.Join(dir, "dest.png")
	written, err := Save(destPath, []byte("new contents"), srcInfo)
	require.NoError(err)
	is.Equal(destPath, written)

	got, err := os.ReadFile(destPath)
	require.NoError(err)
	is.Equal([]byte("new contents"), got)

	destInfo, err := os.Stat(destPath)
	require.NoError(err)
	is.True(destInfo.ModTime().Equal(srcInfo.ModTime()))

	// No leftover temp files.
	entries, err := os.ReadDir(dir)
	require.NoError(err)
	for _, e := range entries {
		is.NotContains(e.Name(), ".tmp")
	}
}

func TestSave_ResolvesCollision(t *testing.T) {
	is := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	destPath := filepath.Join(dir, "dest.png")
	require.NoError(os.WriteFile(destPath, []byte("existing"), 0o644))

	written, err := Save(destPath, []byte("new contents"), nil)
	require.NoError(err)
	is.Equal(filepath.Join(dir, "dest (1).png"), written)

	original, err := os.ReadFile(destPath)
	require.NoError(err)
	is.Equal([]byte("existing"), original, "original file must be untouched")
}

func TestSaveWithTimes_RestoresDistinctAccessAndModTimes(t *testing.T) {
	is := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	destPath := filepath.Join(dir, "hello.txt")

	accessTime := time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)
	modTime := time.Date(2020, 6, 7, 8, 9, 10, 0, time.UTC)

	written, err := SaveWithTimes(destPath, []byte("hello"), accessTime, modTime)
	require.NoError(err)
	is.Equal(destPath, written)

	info, err := os.Stat(written)
	require.NoError(err)
	is.True(info.ModTime().Equal(modTime))
}

func TestSanitizeName_ReplacesForbiddenAndControlChars(t *testing.T) {
	is := assert.New(t)
	is.Equal("a_b_c_d_", SanitizeName("a<b>c/d\x01"))
	is.Equal("normal-name.txt", SanitizeName("normal-name.txt"))
}
