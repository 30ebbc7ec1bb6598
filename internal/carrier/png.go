// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package carrier

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/sixafter/imgconceal/internal/imgerr"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// preservedAncillaryChunks lists the PNG chunk types spec.md §4.8 requires
// carrying through unmodified, beyond what image/png itself regenerates
// (IHDR, PLTE, tRNS, IDAT, IEND).
var preservedAncillaryChunks = map[string]bool{
	"tEXt": true, "eXIf": true, "gAMA": true, "cHRM": true,
	"sRGB": true, "iCCP": true, "bKGD": true, "oFFs": true,
	"pHYs": true, "sBIT": true, "tIME": true, "pCAL": true, "sCAL": true,
}

// pngChunk is a single raw length/type/data chunk (crc32 is recomputed on
// write, never trusted from the source).
type pngChunk struct {
	typ  string
	data []byte
}

// byteSlot is a writable single byte inside a decoded pixel buffer. pix
// aliases the image's backing Pix slice, so mutating pix[idx] mutates the
// image in place.
type byteSlot struct {
	pix []byte
	idx int
}

func (s byteSlot) LSB() byte       { return s.pix[s.idx] & 1 }
func (s byteSlot) SetLSB(bit byte) { s.pix[s.idx] = (s.pix[s.idx] &^ 1) | bit }

// mirroredByteSlot carries a steganographic bit in one backing byte while
// copying every write to additional byte positions. It backs a grayscale+
// alpha PNG (color type 4): Go's png.Decode already replicates the single
// gray sample into R, G, and B, so the carrier must keep those three bytes
// equal after a write instead of treating them as three independent slots.
type mirroredByteSlot struct {
	pix                   []byte
	idx, mirrorG, mirrorB int
}

func (s mirroredByteSlot) LSB() byte { return s.pix[s.idx] & 1 }
func (s mirroredByteSlot) SetLSB(bit byte) {
	v := (s.pix[s.idx] &^ 1) | bit
	s.pix[s.idx] = v
	s.pix[s.mirrorG] = v
	s.pix[s.mirrorB] = v
}

// PNG color types, per the IHDR color type byte.
const (
	pngColorGray      = 0
	pngColorTruecolor = 2
	pngColorIndexed   = 3
	pngColorGrayAlpha = 4
)

// pngImage is the carrier.Decoded implementation for PNG covers.
type pngImage struct {
	is16Bit   bool
	colorType int         // IHDR color type, drives the channel count in Slots
	img       image.Image // *image.Gray, *image.Gray16, *image.NRGBA, or *image.NRGBA64
	ancillary []pngChunk  // in original file order
}

func (p *pngImage) Tag() Tag { return PNG }

// OpenPNG decodes a PNG cover image, expanding palettized or sub-8-bit
// images to non-indexed samples of at least 8 bits (grayscale stays a
// single gray channel; see normalizeToCarrierImage), and preserves every ancillary chunk
// spec.md §4.8 names for replay on Encode.
func OpenPNG(data []byte) (Decoded, error) {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return nil, imgerr.New(imgerr.FileInvalid, "not a PNG file")
	}

	chunks, err := splitPNGChunks(data)
	if err != nil {
		return nil, imgerr.Wrap(imgerr.CodecFail, "split PNG chunks", err)
	}

	var bitDepth, colorType int
	for _, c := range chunks {
		if c.typ == "IHDR" && len(c.data) >= 10 {
			bitDepth = int(c.data[8])
			colorType = int(c.data[9])
			break
		}
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imgerr.Wrap(imgerr.CodecFail, "decode PNG", err)
	}

	is16Bit := bitDepth == 16
	img := normalizeToCarrierImage(src, is16Bit, colorType)

	var ancillary []pngChunk
	for _, c := range chunks {
		if preservedAncillaryChunks[c.typ] {
			ancillary = append(ancillary, c)
		}
	}

	return &pngImage{is16Bit: is16Bit, colorType: colorType, img: img, ancillary: ancillary}, nil
}

// normalizeToCarrierImage expands any decoded PNG into a non-indexed,
// non-alpha-premultiplied image at the cover's original bit depth, keeping
// the channel count tied to the source color type instead of always
// widening to three channels: a grayscale (color type 0) source stays a
// single gray channel, matching libpng's png_get_channels/num_channels for
// anything that isn't palettized or sub-8-bit (palettized and grayscale+
// alpha sources still normalize to three backing channels, the former
// because expansion turns palette entries into RGB, the latter because
// Go's own png.Decode already replicates gray into R, G, and B; Slots
// restricts both to the real channel count).
func normalizeToCarrierImage(src image.Image, is16Bit bool, colorType int) image.Image {
	bounds := src.Bounds()

	if colorType == pngColorGray {
		if is16Bit {
			dst := image.NewGray16(bounds)
			for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
				for x := bounds.Min.X; x < bounds.Max.X; x++ {
					dst.Set(x, y, color.Gray16Model.Convert(src.At(x, y)))
				}
			}
			return dst
		}
		dst := image.NewGray(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				dst.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
			}
		}
		return dst
	}

	if is16Bit {
		dst := image.NewNRGBA64(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				dst.Set(x, y, color.NRGBA64Model.Convert(src.At(x, y)))
			}
		}
		return dst
	}
	dst := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x, y, color.NRGBAModel.Convert(src.At(x, y)))
		}
	}
	return dst
}

// Slots enumerates, row by row then column by column, one slot per
// non-alpha channel of every pixel that is not fully transparent. Alpha
// bytes themselves are never used as carriers. The number of slots per
// pixel tracks the source PNG's color type: one for grayscale and
// grayscale+alpha covers, three for truecolor and indexed covers.
func (p *pngImage) Slots() []Slot {
	var slots []Slot

	switch img := p.img.(type) {
	case *image.Gray:
		bounds := img.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				idx := img.PixOffset(x, y)
				slots = append(slots, byteSlot{pix: img.Pix, idx: idx})
			}
		}
	case *image.Gray16:
		bounds := img.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				base := img.PixOffset(x, y)
				// low byte of the big-endian 16-bit sample
				slots = append(slots, byteSlot{pix: img.Pix, idx: base + 1})
			}
		}
	case *image.NRGBA:
		bounds := img.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				base := img.PixOffset(x, y)
				if img.Pix[base+3] == 0 {
					continue // fully transparent: contributes no slots
				}
				if p.colorType == pngColorGrayAlpha {
					slots = append(slots, mirroredByteSlot{pix: img.Pix, idx: base, mirrorG: base + 1, mirrorB: base + 2})
					continue
				}
				for c := 0; c < 3; c++ {
					slots = append(slots, byteSlot{pix: img.Pix, idx: base + c})
				}
			}
		}
	case *image.NRGBA64:
		bounds := img.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				base := img.PixOffset(x, y)
				// Each 16-bit sample is big-endian; alpha's low byte is at +7.
				if img.Pix[base+6] == 0 && img.Pix[base+7] == 0 {
					continue
				}
				if p.colorType == pngColorGrayAlpha {
					slots = append(slots, mirroredByteSlot{pix: img.Pix, idx: base + 1, mirrorG: base + 3, mirrorB: base + 5})
					continue
				}
				for c := 0; c < 3; c++ {
					// low byte of the big-endian 16-bit sample
					slots = append(slots, byteSlot{pix: img.Pix, idx: base + c*2 + 1})
				}
			}
		}
	}
	return slots
}

// Encode re-serializes the (possibly mutated) image via image/png, then
// splices the preserved ancillary chunks back in immediately after IHDR
// (and after PLTE/tRNS, if the freshly-encoded stream has one) and before
// IDAT. Grayscale+alpha covers bypass image/png entirely: it has no
// image.Image concrete type that round-trips as color type 4, so handing
// it p.img's mirrored NRGBA/NRGBA64 backing would silently widen the file
// to truecolor+alpha, which changes the slot count an extract on the
// saved file would compute and corrupts the embedded payload.
func (p *pngImage) Encode(w io.Writer) error {
	if p.colorType == pngColorGrayAlpha {
		return p.encodeGrayAlpha(w)
	}

	var fresh bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&fresh, p.img); err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "encode PNG", err)
	}

	freshChunks, err := splitPNGChunks(fresh.Bytes())
	if err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "split freshly encoded PNG", err)
	}

	if _, err := w.Write(pngSignature); err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "write PNG signature", err)
	}

	inserted := false
	for _, c := range freshChunks {
		if err := writePNGChunk(w, c); err != nil {
			return imgerr.Wrap(imgerr.SaveFail, "write PNG chunk", err)
		}
		if !inserted && (c.typ == "IHDR" || c.typ == "PLTE" || c.typ == "tRNS") {
			next := peekNextChunkType(freshChunks, c)
			if next != "PLTE" && next != "tRNS" {
				for _, a := range p.ancillary {
					if err := writePNGChunk(w, a); err != nil {
						return imgerr.Wrap(imgerr.SaveFail, "write preserved ancillary chunk", err)
					}
				}
				inserted = true
			}
		}
	}
	return nil
}

// encodeGrayAlpha writes a color-type-4 PNG directly: IHDR, the preserved
// ancillary chunks, a single IDAT holding one zlib-deflated None-filtered
// scanline per row, and IEND. The gray sample comes from the mirrored
// backing's R byte (R, G, and B are kept equal by every SetLSB call), and
// the alpha sample from its usual channel offset.
func (p *pngImage) encodeGrayAlpha(w io.Writer) error {
	bounds := p.img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var raw bytes.Buffer
	switch img := p.img.(type) {
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			raw.WriteByte(0) // filter type: None
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				base := img.PixOffset(x, y)
				raw.WriteByte(img.Pix[base])   // gray
				raw.WriteByte(img.Pix[base+3]) // alpha
			}
		}
	case *image.NRGBA64:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			raw.WriteByte(0)
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				base := img.PixOffset(x, y)
				raw.Write(img.Pix[base : base+2])   // gray, big-endian
				raw.Write(img.Pix[base+6 : base+8]) // alpha, big-endian
			}
		}
	default:
		return imgerr.New(imgerr.SaveFail, "unexpected backing image for grayscale+alpha PNG")
	}

	var zbuf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&zbuf, zlib.BestCompression)
	if err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "compress grayscale+alpha PNG", err)
	}
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "compress grayscale+alpha PNG", err)
	}
	if err := zw.Close(); err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "compress grayscale+alpha PNG", err)
	}

	if _, err := w.Write(pngSignature); err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "write PNG signature", err)
	}

	bitDepth := byte(8)
	if p.is16Bit {
		bitDepth = 16
	}
	var ihdr [13]byte
	bePutUint32(ihdr[0:4], uint32(width))
	bePutUint32(ihdr[4:8], uint32(height))
	ihdr[8] = bitDepth
	ihdr[9] = pngColorGrayAlpha
	if err := writePNGChunk(w, pngChunk{typ: "IHDR", data: ihdr[:]}); err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "write IHDR", err)
	}

	for _, a := range p.ancillary {
		if err := writePNGChunk(w, a); err != nil {
			return imgerr.Wrap(imgerr.SaveFail, "write preserved ancillary chunk", err)
		}
	}

	if err := writePNGChunk(w, pngChunk{typ: "IDAT", data: zbuf.Bytes()}); err != nil {
		return imgerr.Wrap(imgerr.SaveFail, "write IDAT", err)
	}
	return writePNGChunk(w, pngChunk{typ: "IEND", data: nil})
}

func peekNextChunkType(chunks []pngChunk, after pngChunk) string {
	for i, c := range chunks {
		if c.typ == after.typ {
			if i+1 < len(chunks) {
				return chunks[i+1].typ
			}
			return ""
		}
	}
	return ""
}

func splitPNGChunks(data []byte) ([]pngChunk, error) {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:len(pngSignature)], pngSignature) {
		return nil, fmt.Errorf("png: missing signature")
	}
	var chunks []pngChunk
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(beUint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		dataStart := pos + 8
		dataEnd := dataStart + length
		if dataEnd+4 > len(data) {
			return nil, fmt.Errorf("png: truncated chunk %q", typ)
		}
		chunkData := make([]byte, length)
		copy(chunkData, data[dataStart:dataEnd])
		chunks = append(chunks, pngChunk{typ: typ, data: chunkData})
		pos = dataEnd + 4 // skip CRC
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

func writePNGChunk(w io.Writer, c pngChunk) error {
	var lenBuf [4]byte
	bePutUint32(lenBuf[:], uint32(len(c.data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, c.typ); err != nil {
		return err
	}
	if _, err := w.Write(c.data); err != nil {
		return err
	}
	crc := crc32.NewIEEE()
	_, _ = crc.Write([]byte(c.typ))
	_, _ = crc.Write(c.data)
	var crcBuf [4]byte
	bePutUint32(crcBuf[:], crc.Sum32())
	_, err := w.Write(crcBuf[:])
	return err
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func bePutUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
