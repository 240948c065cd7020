// Package raster implements the grayscale image transforms that prepare a
// photographed or scanned document for text recognition: resolution
// normalization, deskewing, denoising, local contrast equalization and
// adaptive binarization.
//
// Every transform is pure: it allocates a fresh raster and never mutates its
// input, so sibling variants of the same source image can coexist safely.
package raster

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/tuumbleweed/xerr"
)

// Stage tags a raster with the last transform applied to it.
type Stage string

const (
	StageResized  Stage = "resized"
	StageDeskewed Stage = "deskewed"
	StageEnhanced Stage = "enhanced"
	StageInverted Stage = "inverted"
)

// Raster is a single-channel working image derived from the original capture.
type Raster struct {
	Gray  *image.Gray
	Stage Stage
}

/*
PNG encodes the raster as a PNG byte payload for hand-off to a recognition
engine.
*/
func (r Raster) PNG() (payload []byte, e *xerr.Error) {
	var buffer bytes.Buffer
	encodeErr := imaging.Encode(&buffer, r.Gray, imaging.PNG)
	if encodeErr != nil {
		e = xerr.NewError(encodeErr, "encode raster as PNG", string(r.Stage))
		return
	}
	return buffer.Bytes(), nil
}

// Invert returns the pixel-value complement of the raster, for the retry pass
// on documents captured as light text on a dark background.
func Invert(r Raster) Raster {
	out := newGrayLike(r.Gray)
	for i, v := range r.Gray.Pix {
		out.Pix[i] = 255 - v
	}
	return Raster{Gray: out, Stage: StageInverted}
}

// toGray converts any decoded image into an 8-bit single-channel buffer.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(g.Bounds())
		copy(out.Pix, g.Pix)
		return out
	}
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	grayscaled := imaging.Grayscale(img)
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			// Grayscale output has R == G == B, so one channel is enough.
			out.Pix[y*out.Stride+x] = grayscaled.Pix[y*grayscaled.Stride+x*4]
		}
	}
	return out
}

// newGrayLike allocates an empty buffer with the same dimensions as src.
func newGrayLike(src *image.Gray) *image.Gray {
	return image.NewGray(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
}
