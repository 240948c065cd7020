package raster

import (
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"doc-scanner/src/pkg/util"
)

const (
	// Resolution band for recognition engines. Both extremes degrade stroke
	// detection: too large and strokes exceed the classifier's sweet spot,
	// too small and they alias away.
	maxLongSide   = 2200
	minLongSide   = 900
	upscaleTarget = 1300

	// Skew estimation knobs.
	edgeMagnitudeThreshold = 300 // |gx|+|gy| of the Sobel response
	minEdgePoints          = 100 // below this, rotation is skipped entirely
	houghVoteThreshold     = 200
	maxSkewDegrees         = 45.0
)

/*
Normalize converts a decoded capture into a deskewed single-channel working
raster:

 1. Grayscale conversion.
 2. Resolution band policy: longer side above 2200px is shrunk with an
    area-averaging filter; below 900px it is grown toward 1300px with a cubic
    filter.
 3. Skew estimation on a mildly smoothed copy (edge map + Hough line
    accumulator, median of near-horizontal candidates).
 4. Rotation about the center with edge-replicated borders, so no black
    corners leak into the thresholding stage.

A blank or featureless image passes through unrotated; Normalize never fails,
it degrades to the identity rotation.
*/
func Normalize(img image.Image) Raster {
	gray := resizeToBand(toGray(img))

	angle := EstimateSkew(gray)
	if angle != 0 {
		tl.Log(tl.Detailed, palette.Cyan, "Correcting estimated skew of %.2f degrees", angle)
		gray = Rotate(gray, -angle)
	}

	return Raster{Gray: gray, Stage: StageDeskewed}
}

// resizeToBand applies the resolution band policy, preserving aspect ratio.
func resizeToBand(gray *image.Gray) *image.Gray {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	longSide := max(width, height)

	var target int
	var filter imaging.ResampleFilter
	switch {
	case longSide > maxLongSide:
		// Box resampling averages source areas, the quality-preserving
		// choice for shrinking.
		target, filter = maxLongSide, imaging.Box
	case longSide < minLongSide:
		target, filter = upscaleTarget, imaging.CatmullRom
	default:
		return gray
	}

	var resized image.Image
	if width >= height {
		resized = imaging.Resize(gray, target, 0, filter)
	} else {
		resized = imaging.Resize(gray, 0, target, filter)
	}

	tl.Log(
		tl.Detailed, palette.Cyan, "Resized raster from %vx%v to %vx%v",
		width, height, resized.Bounds().Dx(), resized.Bounds().Dy(),
	)

	return toGray(resized)
}

/*
EstimateSkew estimates the rotational deviation of text baselines from
horizontal, in degrees. Positive angles mean lines sloping downward to the
right.

The estimate runs a Sobel edge detector over a smoothed copy of the raster and
accumulates the edge points into a Hough line transform with 1-degree bins.
Every sufficiently-voted line within ±45 degrees of horizontal contributes a
candidate angle; the median of the candidates is the skew. Fewer than 100 edge
points means there is not enough signal to trust any angle, so 0 is returned
rather than risking a spurious rotation.
*/
func EstimateSkew(gray *image.Gray) float64 {
	smoothed := boxBlur3(gray)
	edgePoints := sobelEdgePoints(smoothed)
	if len(edgePoints) < minEdgePoints {
		return 0
	}

	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	diagonal := int(math.Ceil(math.Hypot(float64(width), float64(height))))

	// accumulator[(rho+diagonal)*180 + theta], theta in whole degrees.
	accumulator := make([]int32, (2*diagonal+1)*180)
	sines := make([]float64, 180)
	cosines := make([]float64, 180)
	for t := 0; t < 180; t++ {
		radians := float64(t) * math.Pi / 180
		sines[t] = math.Sin(radians)
		cosines[t] = math.Cos(radians)
	}

	for _, p := range edgePoints {
		for t := 0; t < 180; t++ {
			rho := int(math.Round(float64(p.X)*cosines[t] + float64(p.Y)*sines[t]))
			accumulator[(rho+diagonal)*180+t]++
		}
	}

	var candidates []float64
	for i, votes := range accumulator {
		if votes < houghVoteThreshold {
			continue
		}
		angle := float64(i%180) - 90
		if angle > -maxSkewDegrees && angle < maxSkewDegrees {
			candidates = append(candidates, angle)
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	sort.Float64s(candidates)
	middle := len(candidates) / 2
	if len(candidates)%2 == 1 {
		return candidates[middle]
	}
	return (candidates[middle-1] + candidates[middle]) / 2
}

// sobelEdgePoints returns the coordinates whose gradient magnitude clears the
// edge threshold. Border pixels are skipped.
func sobelEdgePoints(gray *image.Gray) []image.Point {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	var points []image.Point

	at := func(x, y int) int { return int(gray.Pix[y*gray.Stride+x]) }

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if abs(gx)+abs(gy) >= edgeMagnitudeThreshold {
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}
	return points
}

/*
Rotate rotates the raster by the given angle in degrees about its center,
keeping the original dimensions. Sampling is bilinear with source coordinates
clamped to the image, which replicates edge pixels instead of introducing
black corners.
*/
func Rotate(gray *image.Gray, degrees float64) *image.Gray {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	out := newGrayLike(gray)

	radians := degrees * math.Pi / 180
	sin, cos := math.Sincos(radians)
	centerX := float64(width-1) / 2
	centerY := float64(height-1) / 2

	for y := 0; y < height; y++ {
		dy := float64(y) - centerY
		for x := 0; x < width; x++ {
			dx := float64(x) - centerX
			sourceX := centerX + dx*cos + dy*sin
			sourceY := centerY - dx*sin + dy*cos
			out.Pix[y*out.Stride+x] = sampleBilinear(gray, sourceX, sourceY)
		}
	}
	return out
}

// sampleBilinear samples the raster at fractional coordinates, clamping to the
// edges (border replication).
func sampleBilinear(gray *image.Gray, x, y float64) uint8 {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	x = util.Clamp(x, 0, float64(width-1))
	y = util.Clamp(y, 0, float64(height-1))

	x0 := int(x)
	y0 := int(y)
	x1 := min(x0+1, width-1)
	y1 := min(y0+1, height-1)
	fx := x - float64(x0)
	fy := y - float64(y0)

	p00 := float64(gray.Pix[y0*gray.Stride+x0])
	p10 := float64(gray.Pix[y0*gray.Stride+x1])
	p01 := float64(gray.Pix[y1*gray.Stride+x0])
	p11 := float64(gray.Pix[y1*gray.Stride+x1])

	top := p00 + (p10-p00)*fx
	bottom := p01 + (p11-p01)*fx
	return uint8(math.Round(top + (bottom-top)*fy))
}

// boxBlur3 applies a 3x3 box blur, the mild smoothing used before geometric
// analysis only (the enhancement path has its own denoising).
func boxBlur3(gray *image.Gray) *image.Gray {
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	out := newGrayLike(gray)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum, count := 0, 0
			for ky := -1; ky <= 1; ky++ {
				yy := y + ky
				if yy < 0 || yy >= height {
					continue
				}
				for kx := -1; kx <= 1; kx++ {
					xx := x + kx
					if xx < 0 || xx >= width {
						continue
					}
					sum += int(gray.Pix[yy*gray.Stride+xx])
					count++
				}
			}
			out.Pix[y*out.Stride+x] = uint8(sum / count)
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
