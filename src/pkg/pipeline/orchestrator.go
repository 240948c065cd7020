// Package pipeline orchestrates the document recognition attempts: prepare
// the raster, invoke a recognition capability under an ordered sequence of
// transform/parameter strategies, score each candidate and gate the best one.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"doc-scanner/src/pkg/gemini"
	"doc-scanner/src/pkg/raster"
	"doc-scanner/src/pkg/recognize"
)

// Orchestrator holds the two recognition capabilities. Runs are independent
// and share no mutable state, so one Orchestrator serves concurrent callers.
type Orchestrator struct {
	Local recognize.Capability
	Cloud recognize.Capability
}

// New wires the production capabilities: tesseract locally, Gemini with the
// credential from the environment for the cloud path.
func New() *Orchestrator {
	return &Orchestrator{
		Local: recognize.LocalCapability{},
		Cloud: recognize.CloudCapability{Client: gemini.NewClient(os.Getenv("GEMINI_API_KEY"))},
	}
}

// Options selects the capability and strategy for one run.
type Options struct {
	// LanguageHint is the caller's language selection ("English",
	// "Vietnamese+English" or a tesseract code).
	LanguageHint string
	Engine       recognize.Engine
	// CloudModel overrides the configured cloud model for this run.
	CloudModel string
	// MIMEType of the raw payload, when the caller knows it.
	MIMEType string
	// FlatCapture selects the enhancement branch for upload/scan input
	// instead of the hand-held camera ladder.
	FlatCapture bool
}

// Prepared is the outcome of the normalization stages, returned alongside the
// result so callers can archive the processed raster for inspection.
type Prepared struct {
	Enhanced *raster.Raster
}

/*
Run executes one pipeline invocation over the raw capture bytes and always
returns a terminal Result; no stage failure escapes this boundary.

The local path prepares a deskewed, enhanced raster and walks the attempt
ladder; the cloud path is a single-attempt variant of the same shape operating
on the original bytes.
*/
func (o *Orchestrator) Run(ctx context.Context, rawImage []byte, options Options) (Result, Prepared) {
	if options.Engine == recognize.EngineLocal {
		return o.runLocal(ctx, rawImage, options)
	}
	return o.runCloud(ctx, rawImage, options), Prepared{}
}

/*
runLocal decodes and prepares the raster, then attempts recognition in order:

 1. Single uniform block segmentation on the enhanced raster.
 2. If the score still looks garbled (< retry threshold): the inverted
    variant, kept only on strict improvement.
 3. If still garbled: multi-block segmentation on the non-inverted raster,
    kept only on strict improvement.

Ties keep the earliest attempt, so behavior is deterministic. A capability
failure in one attempt only moves the ladder along; the run is rejected with a
capability error only when every attempt failed.
*/
func (o *Orchestrator) runLocal(ctx context.Context, rawImage []byte, options Options) (Result, Prepared) {
	capabilityName := o.Local.Name()

	decoded, decodeErr := imaging.Decode(bytes.NewReader(rawImage))
	if decodeErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Raw payload is %s: '%s'", "not a decodable image", decodeErr)
		return rejected(
			ReasonDecodeError,
			"The file could not be read as an image. Supported formats: PNG, JPEG.",
			0, capabilityName,
		), Prepared{}
	}

	tl.Log(tl.Info, palette.Blue, "%s raster (%vx%v)", "Normalizing", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	normalized := raster.Normalize(decoded)

	tl.Log(tl.Info, palette.Blue, "%s raster (flat capture: %v)", "Enhancing", options.FlatCapture)
	var enhanced raster.Raster
	if options.FlatCapture {
		enhanced = raster.EnhanceFlat(normalized)
	} else {
		enhanced = raster.Enhance(normalized)
	}

	language := recognize.TesseractLanguage(options.LanguageHint)

	bestText := ""
	bestScore := -1.0
	attemptIndex := 0

	attempt := func(variant raster.Raster, mode recognize.SegmentationMode) (string, float64, bool) {
		attemptIndex++
		tl.Log(
			tl.Info, palette.Cyan, "Attempt %v: stage '%s', mode '%s'",
			attemptIndex, string(variant.Stage), string(mode),
		)

		payload, encodeErr := variant.PNG()
		if encodeErr != nil {
			tl.Log(tl.Warning, palette.YellowBold, "Attempt %v failed: '%s'", attemptIndex, encodeErr)
			return "", 0, false
		}

		rawText, recognizeErr := o.Local.Recognize(ctx, recognize.Request{
			Image:    payload,
			Language: language,
			Mode:     mode,
		})
		if recognizeErr != nil {
			tl.Log(tl.Warning, palette.YellowBold, "Attempt %v failed: '%s'", attemptIndex, recognizeErr)
			return "", 0, false
		}

		text := recognize.CleanText(rawText)
		score := Score(text)
		tl.Log(tl.Info1, palette.Green, "Attempt %v scored %.3f (%v chars)", attemptIndex, score, len(text))
		return text, score, true
	}

	// Attempt 1: single uniform block.
	if text, score, ok := attempt(enhanced, recognize.SegmentSingleBlock); ok {
		bestText, bestScore = text, score
	}

	// Attempt 2: inverted variant, for light-on-dark documents.
	if bestScore < Cfg.RetryThreshold {
		if text, score, ok := attempt(raster.Invert(enhanced), recognize.SegmentSingleBlock); ok && score > bestScore {
			bestText, bestScore = text, score
		}
	}

	// Attempt 3: multi-block segmentation on the non-inverted raster.
	if bestScore < Cfg.RetryThreshold {
		if text, score, ok := attempt(enhanced, recognize.SegmentMultiBlock); ok && score > bestScore {
			bestText, bestScore = text, score
		}
	}

	prepared := Prepared{Enhanced: &enhanced}

	if bestScore < 0 {
		return rejected(
			ReasonCapabilityError,
			"Local recognition is unavailable — check the tesseract installation and its language data.",
			0, capabilityName,
		), prepared
	}

	return o.finalize(bestText, bestScore, capabilityName), prepared
}

/*
runCloud performs exactly one cloud attempt over the original bytes. The
cloud capability does its own internal enhancement, so there is no transform
ladder and no blind re-invocation on failure.
*/
func (o *Orchestrator) runCloud(ctx context.Context, rawImage []byte, options Options) Result {
	capabilityName := o.Cloud.Name()
	tl.Log(tl.Info, palette.Blue, "%s with cloud capability '%s'", "Attempting recognition", capabilityName)

	rawText, recognizeErr := o.Cloud.Recognize(ctx, recognize.Request{
		Image:    rawImage,
		MIMEType: options.MIMEType,
		Language: options.LanguageHint,
		Model:    options.CloudModel,
	})
	if recognizeErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "Cloud recognition failed: '%s'", recognizeErr)
		return rejected(
			ReasonCapabilityError,
			"Cloud recognition failed — try again in a moment, or switch to the local engine.",
			0, capabilityName,
		)
	}

	text := recognize.CleanText(rawText)
	score := Score(text)
	tl.Log(tl.Info1, palette.Green, "Cloud attempt scored %.3f (%v chars)", score, len(text))

	return o.finalize(text, score, capabilityName)
}

// finalize applies the acceptance gate configured for this deployment.
func (o *Orchestrator) finalize(text string, score float64, capability string) Result {
	if strings.TrimSpace(text) == "" {
		return rejected(
			ReasonNoTextFound,
			"No text could be detected — retake the photo closer to the document, with even lighting.",
			0, capability,
		)
	}

	if Cfg.AcceptPolicy == PolicyStrict && score < Cfg.StrictThreshold {
		message := fmt.Sprintf(
			"Recognition quality too low (score %.2f, required %.2f) — retake the photo with better lighting and less skew.",
			score, Cfg.StrictThreshold,
		)
		return rejected(ReasonQualityRejected, message, score, capability)
	}

	return accepted(text, score, capability)
}
