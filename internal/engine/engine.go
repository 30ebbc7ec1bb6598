// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

// Package engine drives the end-to-end hide and extract flows over a
// decoded cover image: it owns the permuted slot vector and the bit-level
// cursor described in spec.md §4.7, and reframes the source's
// function-pointer-plus-cleanup-list codec polymorphism as the small
// carrier.Decoded interface (spec.md §9).
package engine

import (
	"io"
	"time"

	"github.com/sixafter/imgconceal/internal/carrier"
	"github.com/sixafter/imgconceal/internal/cipher"
	"github.com/sixafter/imgconceal/internal/imgerr"
	"github.com/sixafter/imgconceal/internal/kdf"
	"github.com/sixafter/imgconceal/internal/prng"
	"github.com/sixafter/imgconceal/internal/progress"
	"github.com/sixafter/imgconceal/internal/record"
)

// CarrierImage aggregates a decoded cover image, its permuted slot vector,
// the bit-level cursor into it, and the derived crypto key. One
// CarrierImage owns exactly one open codec handle (spec.md §3).
type CarrierImage struct {
	tag       carrier.Tag
	decoded   carrier.Decoded
	slots     []carrier.Slot
	pos       int
	key       [32]byte
	checkOnly bool

	lastExtracted *record.Info
	observer      progress.Observer
}

// Open decodes data, derives the cipher key and PRNG seed from password,
// enumerates the codec's writable slots, and permutes them exactly once
// via a Fisher–Yates shuffle keyed by the derived seed (spec.md §4.5).
func Open(data []byte, password []byte, observer progress.Observer) (*CarrierImage, error) {
	decoded, err := carrier.Open(data)
	if err != nil {
		return nil, err
	}
	return openWithDecoded(decoded, password, observer)
}

// openWithDecoded is Open's body minus the carrier.Open dispatch, split
// out so tests can drive the engine against an in-memory fake codec.
func openWithDecoded(decoded carrier.Decoded, password []byte, observer ...progress.Observer) (*CarrierImage, error) {
	var obs progress.Observer = progress.Noop{}
	if len(observer) > 0 && observer[0] != nil {
		obs = observer[0]
	}

	key, seed, err := kdf.Derive(password)
	if err != nil {
		return nil, imgerr.Wrap(imgerr.NoMemory, "derive key material", err)
	}

	slots := decoded.Slots()
	if len(slots) == 0 {
		return nil, imgerr.New(imgerr.NoCapacity, "cover image has no writable carrier slots")
	}

	stream, err := prng.New(seed)
	if err != nil {
		return nil, imgerr.Wrap(imgerr.NoMemory, "init permutation PRNG", err)
	}
	prng.Shuffle(stream, slots)

	img := &CarrierImage{
		tag:      decoded.Tag(),
		decoded:  decoded,
		slots:    slots,
		key:      key,
		observer: obs,
	}
	obs.OnOpen(img.tag, len(slots))
	return img, nil
}

// Tag returns the cover's codec.
func (c *CarrierImage) Tag() carrier.Tag { return c.tag }

// SetCheckOnly records whether the image was opened for check mode
// (spec.md §4.7 step 7). Extract itself never writes files to disk (the
// extract command does that), so the flag does not change what Extract
// returns or populates.
func (c *CarrierImage) SetCheckOnly(v bool) { c.checkOnly = v }

// Pos returns the current bit-cursor position, measured in slots.
func (c *CarrierImage) Pos() int { return c.pos }

// Capacity returns the total number of writable slots.
func (c *CarrierImage) Capacity() int { return len(c.slots) }

// Insert frames, compresses, and encrypts data under name and the three
// supplied timestamps, then bit-packs the resulting ciphertext frame
// LSB-first into the next available slots (spec.md §4.7 Insert).
func (c *CarrierImage) Insert(name string, accessTime, modTime, stegTime time.Time, data []byte) error {
	c.observer.OnInsertStart(name, int64(len(data)))

	plaintext, err := record.Compose(name, accessTime, modTime, stegTime, data)
	if err != nil {
		return err
	}

	frame, err := cipher.Encrypt(c.key, plaintext)
	if err != nil {
		return imgerr.Wrap(imgerr.CryptoFail, "encrypt payload", err)
	}

	if err := c.writeBytes(frame); err != nil {
		return err
	}

	c.observer.OnInsertDone(name)
	return nil
}

// Extract reads and decrypts the next payload frame at pos, in full
// (spec.md §4.7 Extract steps 1-6), and populates lastExtracted. The
// terminator errors imgerr.InvalidMagic and imgerr.PayloadOob signal "no
// more payloads" rather than a caller-visible failure; see spec.md §7.
func (c *CarrierImage) Extract() (*record.File, error) {
	c.observer.OnExtractStart()

	magicPrefix, err := c.readBytes(cipher.MagicPrefixLen)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cipher.MagicPrefixLen; i++ {
		if magicPrefix[i] != cipher.Magic[i] {
			return nil, imgerr.New(imgerr.InvalidMagic, "no payload found at current position")
		}
	}

	versionLenBytes, err := c.readBytes(4 + 4)
	if err != nil {
		return nil, err
	}
	version := leUint32(versionLenBytes[0:4])
	if version > cipher.CurrentVersion {
		return nil, imgerr.New(imgerr.NewerVersion, "on-image crypto version newer than supported")
	}
	ciphertextLen := leUint32(versionLenBytes[4:8])
	if ciphertextLen < cipher.StreamHeaderLen {
		return nil, imgerr.New(imgerr.PayloadOob, "declared ciphertext length shorter than stream header")
	}

	streamHeader, err := c.readBytes(cipher.StreamHeaderLen)
	if err != nil {
		return nil, err
	}
	ciphertext, err := c.readBytes(int(ciphertextLen) - cipher.StreamHeaderLen)
	if err != nil {
		return nil, err
	}

	plaintext, err := cipher.Decrypt(c.key, streamHeader, ciphertext)
	if err != nil {
		return nil, imgerr.Wrap(imgerr.CryptoFail, "decrypt payload", err)
	}

	file, err := record.Parse(plaintext)
	if err != nil {
		return nil, err
	}

	c.lastExtracted = &file.Info
	c.observer.OnExtractDone(file.Name, file.Size)
	return file, nil
}

// LastExtracted returns the metadata of the most recent successful
// Extract call, or nil if none has occurred.
func (c *CarrierImage) LastExtracted() *record.Info { return c.lastExtracted }

// SeekToEnd advances pos past every well-formed payload already present,
// without decrypting any of them, so a subsequent Insert appends rather
// than overwrites (spec.md §4.7 Seek-to-end). On the first parse failure it
// restores pos to the start of the frame that failed to parse (just past
// the last well-formed payload), per the "safeguard" boundary
// in spec.md §8 property 12: a wrong password that can't even parse a
// magic/version/length header leaves pos untouched at 0.
func (c *CarrierImage) SeekToEnd() error {
	for {
		saved := c.pos

		magicPrefix, err := c.readBytes(cipher.MagicPrefixLen)
		if err != nil {
			c.pos = saved
			return nil
		}
		magicOK := true
		for i := 0; i < cipher.MagicPrefixLen; i++ {
			if magicPrefix[i] != cipher.Magic[i] {
				magicOK = false
				break
			}
		}
		if !magicOK {
			c.pos = saved
			return nil
		}

		versionLenBytes, err := c.readBytes(4 + 4)
		if err != nil {
			c.pos = saved
			return nil
		}
		version := leUint32(versionLenBytes[0:4])
		if version > cipher.CurrentVersion {
			c.pos = saved
			return nil
		}
		ciphertextLen := leUint32(versionLenBytes[4:8])
		if ciphertextLen < cipher.StreamHeaderLen {
			c.pos = saved
			return nil
		}

		// Skip the stream header and ciphertext without decrypting.
		if err := c.skipBytes(int(ciphertextLen)); err != nil {
			c.pos = saved
			return nil
		}
	}
}

// Save re-encodes the (possibly mutated) decoded image to w.
func (c *CarrierImage) Save(w io.Writer) error {
	return c.decoded.Encode(w)
}

// Close zeroizes the derived cipher key. The decoded image and its slot
// vector are released by ordinary garbage collection once CarrierImage
// becomes unreachable, so no explicit cleanup list is required (spec.md
// §9 "Cyclic/compound ownership").
func (c *CarrierImage) Close() {
	for i := range c.key {
		c.key[i] = 0
	}
}

// writeBytes bit-packs data LSB-first into the next 8*len(data) slots,
// per spec.md §4.7 Insert step 3, advancing pos by exactly that many
// slots. It never reads a slot twice and never rewinds.
func (c *CarrierImage) writeBytes(data []byte) error {
	need := len(data) * 8
	if need > len(c.slots)-c.pos {
		return imgerr.New(imgerr.FileTooBig, "ciphertext exceeds remaining carrier capacity")
	}
	for _, b := range data {
		for j := 0; j < 8; j++ {
			bit := (b >> uint(j)) & 1
			c.slots[c.pos].SetLSB(bit)
			c.pos++
		}
	}
	return nil
}

// readBytes is the exact inverse of writeBytes: read_payload(n) from
// spec.md §4.7. Bit j of output byte i is the LSB of slot pos+8i+j.
func (c *CarrierImage) readBytes(n int) ([]byte, error) {
	need := n * 8
	if need > len(c.slots)-c.pos {
		return nil, imgerr.New(imgerr.PayloadOob, "read would exceed carrier slot vector")
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		var b byte
		for j := 0; j < 8; j++ {
			b |= c.slots[c.pos].LSB() << uint(j)
			c.pos++
		}
		out[i] = b
	}
	return out, nil
}

// skipBytes advances pos by n*8 slots without reading them, used by
// SeekToEnd to pass over a payload's stream header and ciphertext without
// decrypting them.
func (c *CarrierImage) skipBytes(n int) error {
	need := n * 8
	if need > len(c.slots)-c.pos {
		return imgerr.New(imgerr.PayloadOob, "seek would exceed carrier slot vector")
	}
	c.pos += need
	return nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
