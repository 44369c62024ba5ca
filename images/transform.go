package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	"github.com/nfnt/resize"

	"listing-publisher/models"
)

// JPEGQuality is the re-encode quality for hosted renditions.
const JPEGQuality = 92

var errDegenerate = errors.New("image has no pixels")

// Transform center-crops img to the platform's aspect ratio and resizes it
// to the exact canvas. It never pads or letterboxes.
func Transform(img image.Image, platform models.Platform) (image.Image, error) {
	tw, th := platform.Canvas()
	return fit(img, tw, th)
}

func fit(img image.Image, tw, th int) (image.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, errDegenerate
	}

	crop := cropRect(w, h, tw, th).Add(b.Min)
	flat := flatten(img, crop)
	return resize.Resize(uint(tw), uint(th), flat, resize.Lanczos3), nil
}

// cropRect returns the centered w×h sub-rectangle matching tw:th.
func cropRect(w, h, tw, th int) image.Rectangle {
	target := float64(tw) / float64(th)
	source := float64(w) / float64(h)

	cw, ch := w, h
	switch {
	case source > target:
		cw = int(math.Round(float64(h) * target))
	case source < target:
		ch = int(math.Round(float64(w) / target))
	}
	cw = clamp(cw, 1, w)
	ch = clamp(ch, 1, h)

	x0 := (w - cw) / 2
	y0 := (h - ch) / 2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// flatten copies r out of img onto an opaque white background, so
// transparent or paletted sources encode cleanly as JPEG.
func flatten(img image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Over)
	return dst
}

// EncodeJPEG re-encodes img for hosting.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
