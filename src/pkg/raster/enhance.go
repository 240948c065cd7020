package raster

import (
	"image"
	"math"

	"doc-scanner/src/pkg/util"
)

const (
	// Adaptive binarization: Gaussian-weighted neighborhood mean over a 31px
	// window, offset subtracted before comparison. Global thresholding fails
	// under the uneven lighting of hand-held captures; this does not.
	adaptiveWindow = 31
	adaptiveOffset = 10

	// Clip-limited tile equalization.
	claheClipLimit = 3.0
	claheTileGrid  = 8

	// Linear rescale used by the flat-capture branch.
	rescaleGain = 1.6
	rescaleBias = 10
)

/*
Enhance runs the camera-capture enhancement ladder over a normalized raster
and returns a binarized result:

 1. 3x3 median denoise: removes salt-and-pepper noise without blurring
    strokes the way a Gaussian would.
 2. Clip-limited tile histogram equalization: compensates uneven lighting
    across the document surface.
 3. Adaptive Gaussian-weighted binarization.
 4. One 2x2 morphological closing pass: bridges small binarization gaps in
    strokes without fusing adjacent characters.

Enhance is pure: identical input bytes always produce identical output bytes.
*/
func Enhance(r Raster) Raster {
	gray := median3(r.Gray)
	gray = equalizeClipped(gray)
	gray = adaptiveThreshold(gray, adaptiveWindow, adaptiveOffset)
	gray = close2x2(gray)
	return Raster{Gray: gray, Stage: StageEnhanced}
}

/*
EnhanceFlat is the alternative enhancement branch for flatter capture
pipelines (file uploads, flatbed scans) where lighting is even but strokes may
be soft: adaptive binarization followed by an unsharp kernel and a linear
contrast/brightness rescale.
*/
func EnhanceFlat(r Raster) Raster {
	gray := adaptiveThreshold(r.Gray, adaptiveWindow, adaptiveOffset+1)
	gray = sharpen3(gray)
	gray = rescaleIntensity(gray, rescaleGain, rescaleBias)
	return Raster{Gray: gray, Stage: StageEnhanced}
}

// median3 replaces each pixel with the median of its 3x3 neighborhood,
// replicating edge pixels at the borders.
func median3(gray *image.Gray) *image.Gray {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	out := newGrayLike(gray)

	var window [9]uint8
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := 0
			for ky := -1; ky <= 1; ky++ {
				yy := util.Clamp(y+ky, 0, height-1)
				for kx := -1; kx <= 1; kx++ {
					xx := util.Clamp(x+kx, 0, width-1)
					window[i] = gray.Pix[yy*gray.Stride+xx]
					i++
				}
			}
			out.Pix[y*out.Stride+x] = median9(window)
		}
	}
	return out
}

// median9 finds the median of 9 values with a partial insertion sort; only the
// first 5 positions need to be settled.
func median9(w [9]uint8) uint8 {
	for i := 1; i < 9; i++ {
		v := w[i]
		j := i - 1
		for j >= 0 && w[j] > v {
			w[j+1] = w[j]
			j--
		}
		w[j+1] = v
	}
	return w[4]
}

/*
equalizeClipped performs clip-limited adaptive histogram equalization over an
8x8 tile grid. Each tile's histogram is clipped at the limit with the excess
redistributed before building its remap table; pixels are remapped by
bilinearly interpolating between the tables of the four surrounding tiles to
avoid visible tile seams.
*/
func equalizeClipped(gray *image.Gray) *image.Gray {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	out := newGrayLike(gray)

	tilesX := claheTileGrid
	tilesY := claheTileGrid
	tileWidth := (width + tilesX - 1) / tilesX
	tileHeight := (height + tilesY - 1) / tilesY

	tables := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			x0 := tx * tileWidth
			y0 := ty * tileHeight
			x1 := min(x0+tileWidth, width)
			y1 := min(y0+tileHeight, height)
			tables[ty*tilesX+tx] = buildTileTable(gray, x0, y0, x1, y1)
		}
	}

	for y := 0; y < height; y++ {
		// Position relative to tile centers.
		gy := (float64(y)-float64(tileHeight)/2 + 0.5) / float64(tileHeight)
		ty0 := util.Clamp(int(math.Floor(gy)), 0, tilesY-1)
		ty1 := util.Clamp(ty0+1, 0, tilesY-1)
		fy := util.Clamp(gy-float64(ty0), 0, 1)

		for x := 0; x < width; x++ {
			gx := (float64(x)-float64(tileWidth)/2 + 0.5) / float64(tileWidth)
			tx0 := util.Clamp(int(math.Floor(gx)), 0, tilesX-1)
			tx1 := util.Clamp(tx0+1, 0, tilesX-1)
			fx := util.Clamp(gx-float64(tx0), 0, 1)

			v := gray.Pix[y*gray.Stride+x]
			v00 := float64(tables[ty0*tilesX+tx0][v])
			v10 := float64(tables[ty0*tilesX+tx1][v])
			v01 := float64(tables[ty1*tilesX+tx0][v])
			v11 := float64(tables[ty1*tilesX+tx1][v])

			top := v00 + (v10-v00)*fx
			bottom := v01 + (v11-v01)*fx
			out.Pix[y*out.Stride+x] = uint8(math.Round(top + (bottom-top)*fy))
		}
	}
	return out
}

// buildTileTable builds the clipped-equalization remap table for one tile.
func buildTileTable(gray *image.Gray, x0, y0, x1, y1 int) [256]uint8 {
	var histogram [256]int
	pixels := (x1 - x0) * (y1 - y0)
	if pixels == 0 {
		var identity [256]uint8
		for v := range identity {
			identity[v] = uint8(v)
		}
		return identity
	}

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			histogram[gray.Pix[y*gray.Stride+x]]++
		}
	}

	// Clip and evenly redistribute the excess.
	limit := max(1, int(claheClipLimit*float64(pixels)/256))
	excess := 0
	for v := range histogram {
		if histogram[v] > limit {
			excess += histogram[v] - limit
			histogram[v] = limit
		}
	}
	share := excess / 256
	remainder := excess % 256
	for v := range histogram {
		histogram[v] += share
		if v < remainder {
			histogram[v]++
		}
	}

	var table [256]uint8
	cumulative := 0
	for v := range histogram {
		cumulative += histogram[v]
		table[v] = uint8(util.Clamp(cumulative*255/pixels, 0, 255))
	}
	return table
}

/*
adaptiveThreshold binarizes the raster against a Gaussian-weighted local mean:
a pixel becomes ink-free white when it is brighter than its neighborhood mean
minus the offset, black otherwise. The weighted mean is computed with a
separable Gaussian pass, so the cost stays linear in the window size.
*/
func adaptiveThreshold(gray *image.Gray, window, offset int) *image.Gray {
	mean := gaussianBlur(gray, window)
	out := newGrayLike(gray)
	for i, v := range gray.Pix {
		if int(v) > int(mean.Pix[i])-offset {
			out.Pix[i] = 255
		} else {
			out.Pix[i] = 0
		}
	}
	return out
}

// gaussianBlur computes a Gaussian-weighted neighborhood mean with two 1D
// passes. Sigma follows the usual window-derived heuristic.
func gaussianBlur(gray *image.Gray, window int) *image.Gray {
	radius := window / 2
	sigma := 0.3*(float64(window-1)/2-1) + 0.8

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	// Horizontal pass into a float buffer, vertical pass back to bytes.
	horizontal := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			acc := 0.0
			for k := -radius; k <= radius; k++ {
				xx := util.Clamp(x+k, 0, width-1)
				acc += kernel[k+radius] * float64(gray.Pix[y*gray.Stride+xx])
			}
			horizontal[y*width+x] = acc
		}
	}

	out := newGrayLike(gray)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			acc := 0.0
			for k := -radius; k <= radius; k++ {
				yy := util.Clamp(y+k, 0, height-1)
				acc += kernel[k+radius] * horizontal[yy*width+x]
			}
			out.Pix[y*out.Stride+x] = uint8(util.Clamp(math.Round(acc), 0, 255))
		}
	}
	return out
}

// close2x2 applies one morphological closing pass (dilate then erode) with a
// 2x2 structuring element anchored top-left.
func close2x2(gray *image.Gray) *image.Gray {
	return erode2x2(dilate2x2(gray))
}

func dilate2x2(gray *image.Gray) *image.Gray {
	return morph2x2(gray, func(a, b uint8) uint8 { return max(a, b) })
}

func erode2x2(gray *image.Gray) *image.Gray {
	return morph2x2(gray, func(a, b uint8) uint8 { return min(a, b) })
}

func morph2x2(gray *image.Gray, pick func(a, b uint8) uint8) *image.Gray {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	out := newGrayLike(gray)

	for y := 0; y < height; y++ {
		y1 := min(y+1, height-1)
		for x := 0; x < width; x++ {
			x1 := min(x+1, width-1)
			v := gray.Pix[y*gray.Stride+x]
			v = pick(v, gray.Pix[y*gray.Stride+x1])
			v = pick(v, gray.Pix[y1*gray.Stride+x])
			v = pick(v, gray.Pix[y1*gray.Stride+x1])
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// sharpen3 convolves with the unsharp kernel (center 5, cross -1).
func sharpen3(gray *image.Gray) *image.Gray {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	out := newGrayLike(gray)

	at := func(x, y int) int {
		return int(gray.Pix[util.Clamp(y, 0, height-1)*gray.Stride+util.Clamp(x, 0, width-1)])
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := 5*at(x, y) - at(x-1, y) - at(x+1, y) - at(x, y-1) - at(x, y+1)
			out.Pix[y*out.Stride+x] = uint8(util.Clamp(v, 0, 255))
		}
	}
	return out
}

// rescaleIntensity applies a saturating linear gain and bias to every pixel.
func rescaleIntensity(gray *image.Gray, gain float64, bias int) *image.Gray {
	out := newGrayLike(gray)
	for i, v := range gray.Pix {
		out.Pix[i] = uint8(util.Clamp(int(math.Round(gain*float64(v)))+bias, 0, 255))
	}
	return out
}
