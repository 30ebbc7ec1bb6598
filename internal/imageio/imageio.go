// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package imageio is the image I/O façade (spec.md §4.8): it reads cover
// images from disk, writes the re-encoded result back via a temp-file-
// then-rename so a half-written image is never observable at the final
// path, resolves output name collisions, and restores source timestamps
// on the destination.
package imageio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sixafter/nanoid"

	"github.com/sixafter/imgconceal/internal/imgerr"
)

// maxCollisionAttempts is the largest N tried in the " (N)" collision
// suffix before Save gives up (spec.md §4.8).
const maxCollisionAttempts = 99

// FileTimes returns a source file's access and modification times, for
// recording in its FileInfo record (spec.md §3) ahead of insertion.
func FileTimes(info os.FileInfo) (access, mod time.Time) {
	return accessTime(info), info.ModTime()
}

// Read loads a cover image's raw bytes along with its access/modification
// times, so they can be restored on whatever output file replaces it.
func Read(path string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, imgerr.Wrap(imgerr.FileNotFound, path, err)
		}
		return nil, nil, imgerr.Wrap(imgerr.FileNotFound, path, err)
	}
	if info.IsDir() {
		return nil, nil, imgerr.New(imgerr.PathIsDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, imgerr.Wrap(imgerr.FileNotFound, path, err)
	}
	return data, info, nil
}

// ResolveOutputPath returns path unchanged if it does not exist, or the
// first `name (N).ext` variant (N from 1 to 99) that does not, failing
// with imgerr.FileExists once exhausted.
func ResolveOutputPath(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for n := 1; n <= maxCollisionAttempts; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", imgerr.New(imgerr.FileExists, fmt.Sprintf("could not resolve a free name for %s after %d attempts", path, maxCollisionAttempts))
}

// Save writes data to a collision-resolved variant of path: it first
// writes to a sibling temp file suffixed with a random nanoid so
// concurrent runs never collide, then atomically renames it onto the
// resolved final path, and finally restores atime/mtime from preserve.
// It returns the path actually written.
func Save(path string, data []byte, preserve os.FileInfo) (string, error) {
	finalPath, err := writeAtomic(path, data)
	if err != nil {
		return "", err
	}
	if preserve != nil {
		access, modTime := FileTimes(preserve)
		if err := os.Chtimes(finalPath, access, modTime); err != nil {
			return finalPath, imgerr.Wrap(imgerr.SaveFail, "restore timestamps", err)
		}
	}
	return finalPath, nil
}

// SaveWithTimes atomically writes data to a collision-resolved variant of
// path, then restores accessTime and modTime independently (an extracted
// payload's own recorded times, rather than a single preserved cover
// os.FileInfo — spec.md §4.7 step 8).
func SaveWithTimes(path string, data []byte, accessTime, modTime time.Time) (string, error) {
	finalPath, err := writeAtomic(path, data)
	if err != nil {
		return "", err
	}
	if err := os.Chtimes(finalPath, accessTime, modTime); err != nil {
		return finalPath, imgerr.Wrap(imgerr.SaveFail, "restore timestamps", err)
	}
	return finalPath, nil
}

// writeAtomic resolves path's name collision, writes data to a sibling
// nanoid-suffixed temp file, and renames it onto the resolved final path.
func writeAtomic(path string, data []byte) (string, error) {
	finalPath, err := ResolveOutputPath(path)
	if err != nil {
		return "", err
	}

	id, err := nanoid.New()
	if err != nil {
		return "", imgerr.Wrap(imgerr.SaveFail, "generate temp file suffix", err)
	}

	dir := filepath.Dir(finalPath)
	tempPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(finalPath), id.String()))

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return "", imgerr.Wrap(imgerr.SaveFail, "write temp file", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return "", imgerr.Wrap(imgerr.SaveFail, "rename temp file onto final path", err)
	}
	return finalPath, nil
}

// windowsForbidden are the characters Windows disallows in a file name,
// regardless of the host OS an extract runs on (spec.md §4.7 step 8).
const windowsForbidden = `<>:"/\|?*`

// SanitizeName replaces characters forbidden on Windows and ASCII control
// characters with '_', so an extracted file name is safe to create on any
// host OS regardless of which platform originally hid it.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(windowsForbidden, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EncodeToBuffer is a small convenience wrapper so callers that build the
// output via an io.Writer-based Encode method (carrier.Decoded, or
// engine.CarrierImage.Save) can hand Save a single byte slice.
func EncodeToBuffer(encode func(w io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
