// Copyright (c) 2024-2026 Six After, Inc
//
// This source code is licensed under the Apache 2.0 License found in the
// LICENSE file in the root directory of this source tree.

package carrier

import (
	"bytes"
	"image"
	"io"

	"golang.org/x/image/webp"

	"github.com/sixafter/imgconceal/internal/imgerr"
)

// webpImage is the carrier.Decoded implementation for WebP covers.
//
// golang.org/x/image/webp is decode-only: the ecosystem has no maintained
// Go WebP encoder, so Encode here always fails with imgerr.CodecFail. A
// WebP cover can be used for --extract and --check, never for --hide's
// save step.
type webpImage struct {
	img image.Image
}

func (w *webpImage) Tag() Tag { return WebP }

// OpenWebP decodes a (non-animated) WebP cover image for slot enumeration.
func OpenWebP(data []byte) (Decoded, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, imgerr.Wrap(imgerr.CodecFail, "decode WebP", err)
	}
	return &webpImage{img: normalizeToCarrierImage(img, false, pngColorTruecolor)}, nil
}

// Slots enumerates the same way pngImage does: one slot per non-alpha
// channel of every non-fully-transparent pixel.
func (w *webpImage) Slots() []Slot {
	img, ok := w.img.(*image.NRGBA)
	if !ok {
		return nil
	}
	var slots []Slot
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			base := img.PixOffset(x, y)
			if img.Pix[base+3] == 0 {
				continue
			}
			for c := 0; c < 3; c++ {
				slots = append(slots, byteSlot{pix: img.Pix, idx: base + c})
			}
		}
	}
	return slots
}

// Encode always fails: see the package doc on webpImage.
func (w *webpImage) Encode(io.Writer) error {
	return imgerr.New(imgerr.CodecFail, "writing WebP covers is not supported; use a JPEG or PNG cover for --hide")
}
