// Package preprocess turns decoded images into the grayscale pixel grids the
// emotion classifier expects.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/fer-emotion/internal/model"
)

// Grayscale resizes img to size x size with Lanczos resampling and returns
// its luminance scaled to [0, 1].
func Grayscale(img image.Image, size int) model.Image {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	out := make(model.Image, bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := make([]float32, bounds.Dx())
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.Gray16Model.Convert(resized.At(x, y)).(color.Gray16)
			row[x-bounds.Min.X] = float32(g.Y) / 65535.0
		}
		out[y-bounds.Min.Y] = row
	}
	return out
}

// Crop returns the part of img inside r, clipped to img's bounds. An empty
// intersection yields nil.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Face crops the face box out of img and prepares it for the classifier.
// A box outside the image yields nil, which the classifier treats as no face.
func Face(img image.Image, box image.Rectangle) model.Image {
	face := Crop(img, box)
	if face == nil {
		return nil
	}
	return Grayscale(face, model.ImageSize)
}

// Rows splits a flat row-major pixel slice into rows of width values.
func Rows(flat []float32, width int) model.Image {
	if len(flat) == 0 || width <= 0 {
		return nil
	}
	out := make(model.Image, 0, (len(flat)+width-1)/width)
	for start := 0; start < len(flat); start += width {
		end := min(start+width, len(flat))
		out = append(out, flat[start:end])
	}
	return out
}
