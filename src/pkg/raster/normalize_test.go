package raster

import (
	"image"
	"math"
	"testing"
)

// uniformGray builds a w x h raster filled with one value.
func uniformGray(w, h int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

// stripedGray builds a white raster with black horizontal bands, giving the
// skew estimator long clean baselines to lock onto.
func stripedGray(w, h, spacing, thickness int) *image.Gray {
	img := uniformGray(w, h, 255)
	for y := spacing; y < h-spacing; y += spacing {
		for band := 0; band < thickness && y+band < h; band++ {
			row := (y + band) * img.Stride
			for x := 0; x < w; x++ {
				img.Pix[row+x] = 0
			}
		}
	}
	return img
}

func TestNormalizeShrinksOversizedCaptures(t *testing.T) {
	result := Normalize(uniformGray(4000, 2000, 255))

	width := result.Gray.Bounds().Dx()
	height := result.Gray.Bounds().Dy()
	if max(width, height) > 2200 {
		t.Fatalf("long side %d exceeds the upper bound after normalization", max(width, height))
	}

	aspect := float64(width) / float64(height)
	if math.Abs(aspect-2.0) > 0.05 {
		t.Fatalf("aspect ratio drifted to %.3f, want ~2.0", aspect)
	}
	if result.Stage != StageDeskewed {
		t.Fatalf("stage = %q, want %q", result.Stage, StageDeskewed)
	}
}

func TestNormalizeUpscalesTinyCaptures(t *testing.T) {
	result := Normalize(uniformGray(400, 200, 255))

	width := result.Gray.Bounds().Dx()
	height := result.Gray.Bounds().Dy()
	if max(width, height) < 1300 {
		t.Fatalf("long side %d was not grown to the upscale target", max(width, height))
	}

	aspect := float64(width) / float64(height)
	if math.Abs(aspect-2.0) > 0.05 {
		t.Fatalf("aspect ratio drifted to %.3f, want ~2.0", aspect)
	}
}

func TestNormalizeKeepsInBandResolution(t *testing.T) {
	result := Normalize(uniformGray(1200, 900, 255))

	if result.Gray.Bounds().Dx() != 1200 || result.Gray.Bounds().Dy() != 900 {
		t.Fatalf(
			"in-band raster was resized to %vx%v",
			result.Gray.Bounds().Dx(), result.Gray.Bounds().Dy(),
		)
	}
}

func TestEstimateSkewBlankImage(t *testing.T) {
	if angle := EstimateSkew(uniformGray(1000, 800, 255)); angle != 0 {
		t.Fatalf("blank image estimated skew %.2f, want 0", angle)
	}
	if angle := EstimateSkew(uniformGray(1000, 800, 0)); angle != 0 {
		t.Fatalf("uniform dark image estimated skew %.2f, want 0", angle)
	}
}

func TestEstimateSkewLevelStripes(t *testing.T) {
	angle := EstimateSkew(stripedGray(1200, 900, 60, 6))
	if math.Abs(angle) > 1 {
		t.Fatalf("level stripes estimated skew %.2f, want ~0", angle)
	}
}

func TestEstimateSkewRoundTrip(t *testing.T) {
	const injected = 8.0

	rotated := Rotate(stripedGray(1200, 900, 60, 6), injected)

	estimated := EstimateSkew(rotated)
	if estimated < injected-2 || estimated > injected+2 {
		t.Fatalf("estimated skew %.2f, want within 2 degrees of %.1f", estimated, injected)
	}

	corrected := Rotate(rotated, -estimated)
	residual := EstimateSkew(corrected)
	if math.Abs(residual) > 2 {
		t.Fatalf("residual skew %.2f after correction, want within 2 degrees of 0", residual)
	}
}

func TestRotateZeroIsIdentity(t *testing.T) {
	source := stripedGray(300, 200, 30, 4)
	rotated := Rotate(source, 0)
	for i := range source.Pix {
		if source.Pix[i] != rotated.Pix[i] {
			t.Fatalf("pixel %d changed under a zero-degree rotation", i)
		}
	}
}

func TestRotateKeepsDimensions(t *testing.T) {
	source := uniformGray(640, 480, 128)
	rotated := Rotate(source, 13.5)
	if rotated.Bounds().Dx() != 640 || rotated.Bounds().Dy() != 480 {
		t.Fatalf(
			"rotation changed dimensions to %vx%v",
			rotated.Bounds().Dx(), rotated.Bounds().Dy(),
		)
	}
}

func TestRotateDoesNotMutateSource(t *testing.T) {
	source := stripedGray(300, 200, 30, 4)
	backup := make([]uint8, len(source.Pix))
	copy(backup, source.Pix)

	Rotate(source, 17)

	for i := range source.Pix {
		if source.Pix[i] != backup[i] {
			t.Fatalf("rotation mutated the source raster at pixel %d", i)
		}
	}
}
