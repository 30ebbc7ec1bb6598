// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package record composes and parses the per-file payload record:
// a 20-byte plaintext prefix (kept outside compression) followed by a
// Deflate-compressed tail carrying timestamps, the file name, and the
// file's bytes (spec.md §3).
//
// Compression is grounded on klauspost/compress/flate (observed in-pack
// across rclone, cloudflared, and minio-madmin-go as a real swap-in for
// compress/flate) rather than the standard library package.
package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/sixafter/imgconceal/internal/imgerr"
)

// Version is the FileInfo schema version this build writes and the newest
// version its parser accepts (see SPEC_FULL.md §4.6 Open Question).
const Version uint32 = 1

// PrefixLen is the size of the plaintext prefix ahead of the compressed
// tail: version (u32 LE) + uncompressed_size (u64 LE) + compressed_size
// (u64 LE).
const PrefixLen = 4 + 8 + 8

// MaxFileSize is the hard ceiling on an input file's size (500 MB).
const MaxFileSize = 500 * 1024 * 1024

// MaxNameLen is the largest file name length including its NUL
// terminator.
const MaxNameLen = 65535

// Info is the metadata half of a FileRecord, surfaced to callers via
// check mode and after a successful extract.
type Info struct {
	Name       string
	AccessTime time.Time
	ModTime    time.Time
	StegTime   time.Time
	Size       int64
}

// File is a fully decoded payload: its metadata plus the raw file bytes.
type File struct {
	Info
	Data []byte
}

// Compose builds the plaintext bytes to be handed to the cipher: the
// 20-byte prefix followed by the Deflate-compressed tail of
// (access/mod/steg times, name, file bytes). stegTime is the moment of
// insertion and is distinct from the source file's own access/mod times.
func Compose(name string, accessTime, modTime, stegTime time.Time, data []byte) ([]byte, error) {
	if len(data) > MaxFileSize {
		return nil, imgerr.New(imgerr.FileTooBig, fmt.Sprintf("input file is %d bytes, exceeds %d byte limit", len(data), MaxFileSize))
	}
	nameBytes := append([]byte(name), 0) // NUL-terminated
	if len(nameBytes) > MaxNameLen {
		return nil, imgerr.New(imgerr.NameTooLong, fmt.Sprintf("file name is %d bytes including NUL, exceeds %d", len(nameBytes), MaxNameLen))
	}

	var tail bytes.Buffer
	writeTimespec(&tail, accessTime)
	writeTimespec(&tail, modTime)
	writeTimespec(&tail, stegTime)
	_ = binary.Write(&tail, binary.LittleEndian, uint16(len(nameBytes)))
	tail.Write(nameBytes)
	tail.Write(data)

	uncompressedSize := uint64(tail.Len())

	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("record: init deflate writer: %w", err)
	}
	if _, err := w.Write(tail.Bytes()); err != nil {
		return nil, fmt.Errorf("record: compress tail: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("record: flush deflate writer: %w", err)
	}

	compressedSize := uint64(compressed.Len())

	out := make([]byte, 0, PrefixLen+compressed.Len())
	out = appendUint32LE(out, Version)
	out = appendUint64LE(out, uncompressedSize)
	out = appendUint64LE(out, compressedSize)
	out = append(out, compressed.Bytes()...)
	return out, nil
}

// Parse is the exact inverse of Compose: it reads the 20-byte prefix,
// verifies the version, inflates exactly compressed_size bytes of input
// and checks the result is exactly uncompressed_size bytes, then parses
// the inflated fields. Any size mismatch signals corruption
// (imgerr.CryptoFail, per spec.md §4.6).
func Parse(plaintext []byte) (*File, error) {
	if len(plaintext) < PrefixLen {
		return nil, imgerr.New(imgerr.CryptoFail, "plaintext shorter than record prefix")
	}

	version := binary.LittleEndian.Uint32(plaintext[0:4])
	if version > Version {
		return nil, imgerr.New(imgerr.NewerVersion, fmt.Sprintf("record version %d newer than supported %d", version, Version))
	}
	uncompressedSize := binary.LittleEndian.Uint64(plaintext[4:12])
	compressedSize := binary.LittleEndian.Uint64(plaintext[12:20])

	rest := plaintext[PrefixLen:]
	if uint64(len(rest)) < compressedSize {
		return nil, imgerr.New(imgerr.CryptoFail, "compressed tail shorter than declared compressed_size")
	}
	compressed := rest[:compressedSize]

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	tail, err := io.ReadAll(r)
	if err != nil {
		return nil, imgerr.Wrap(imgerr.CryptoFail, "inflate compressed tail", err)
	}
	if uint64(len(tail)) != uncompressedSize {
		return nil, imgerr.New(imgerr.CryptoFail, fmt.Sprintf("inflated %d bytes, expected exactly %d", len(tail), uncompressedSize))
	}

	return parseTail(tail)
}

func parseTail(tail []byte) (*File, error) {
	const tsLen = 8 + 8 // seconds + nanoseconds, each i64 LE
	const threeTimestamps = 3 * tsLen
	if len(tail) < threeTimestamps+2 {
		return nil, imgerr.New(imgerr.CryptoFail, "inflated tail shorter than timestamps+name_size header")
	}

	off := 0
	accessTime := readTimespec(tail[off:])
	off += tsLen
	modTime := readTimespec(tail[off:])
	off += tsLen
	stegTime := readTimespec(tail[off:])
	off += tsLen

	nameSize := int(binary.LittleEndian.Uint16(tail[off : off+2]))
	off += 2

	if nameSize == 0 || off+nameSize > len(tail) {
		return nil, imgerr.New(imgerr.CryptoFail, "name_size out of bounds of inflated tail")
	}
	nameBytes := tail[off : off+nameSize]
	off += nameSize

	name := string(bytes.TrimRight(nameBytes, "\x00"))
	data := tail[off:]

	return &File{
		Info: Info{
			Name:       name,
			AccessTime: accessTime,
			ModTime:    modTime,
			StegTime:   stegTime,
			Size:       int64(len(data)),
		},
		Data: data,
	}, nil
}

func writeTimespec(buf *bytes.Buffer, t time.Time) {
	sec := t.Unix()
	nsec := int64(t.Nanosecond())
	_ = binary.Write(buf, binary.LittleEndian, sec)
	_ = binary.Write(buf, binary.LittleEndian, nsec)
}

func readTimespec(b []byte) time.Time {
	sec := int64(binary.LittleEndian.Uint64(b[0:8]))
	nsec := int64(binary.LittleEndian.Uint64(b[8:16]))
	return time.Unix(sec, nsec).UTC()
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint64LE(b []byte, v uint64) []byte {
	return append(b,
		byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}
