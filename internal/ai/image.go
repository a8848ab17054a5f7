package ai

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageSide is the longest side sent to OCR
	MaxImageSide = 1600
	jpegQuality  = 90
)

var ErrImageDecode = errors.New("unreadable image")

// PrepareImage decodes a photo, scales it down so that its longest side is
// at most MaxImageSide and re-encodes it as JPEG.
func PrepareImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageDecode, err)
	}

	b := src.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), MaxImageSide)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ScaledSize fits w x h into a square of side maxSide keeping the aspect ratio
func ScaledSize(w, h, maxSide int) (int, int) {
	longest := max(w, h)
	if longest <= maxSide || longest == 0 {
		return w, h
	}
	nw := w * maxSide / longest
	nh := h * maxSide / longest
	return max(nw, 1), max(nh, 1)
}
