package recognize

import (
	"context"
	"os"

	"github.com/otiai10/gosseract/v2"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// LocalCapability runs the tesseract engine over a prepared binarized raster.
// It is synchronous and deterministic for identical input and parameters.
type LocalCapability struct{}

func (LocalCapability) Name() string { return "tesseract" }

/*
Recognize writes the prepared raster to a transient temp file, points a
tesseract client at it and returns the raw recognized text. The temp file is
removed on every exit path, success or not.

The segmentation mode maps onto tesseract page segmentation: a single uniform
block (PSM_SINGLE_BLOCK) or multiple independent blocks of varying size
(PSM_SINGLE_COLUMN). Interword spacing is preserved so columnar documents keep
their shape.
*/
func (LocalCapability) Recognize(_ context.Context, request Request) (text string, e *xerr.Error) {
	tl.Log(
		tl.Info, palette.Cyan, "Running local OCR, language '%s', mode '%s'",
		request.Language, string(request.Mode),
	)

	imageFile, createErr := os.CreateTemp("", "docscan-*.png")
	if createErr != nil {
		e = xerr.NewError(createErr, "create temp image for OCR hand-off", nil)
		return
	}
	imagePath := imageFile.Name()
	defer func() {
		_ = os.Remove(imagePath)
	}()

	if _, writeErr := imageFile.Write(request.Image); writeErr != nil {
		_ = imageFile.Close()
		e = xerr.NewError(writeErr, "write temp image for OCR hand-off", imagePath)
		return
	}
	if closeErr := imageFile.Close(); closeErr != nil {
		e = xerr.NewError(closeErr, "close temp image for OCR hand-off", imagePath)
		return
	}

	client := gosseract.NewClient()
	defer func() {
		_ = client.Close()
	}()

	if err := client.SetLanguage(request.Language); err != nil {
		e = xerr.NewError(err, "unable to client.SetLanguage", request.Language)
		return
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		e = xerr.NewError(err, "unable to client.SetVariable(\"preserve_interword_spaces\", \"1\")", imagePath)
		return
	}
	if err := client.SetPageSegMode(pageSegModeFor(request.Mode)); err != nil {
		e = xerr.NewError(err, "unable to client.SetPageSegMode", string(request.Mode))
		return
	}
	if err := client.SetImage(imagePath); err != nil {
		e = xerr.NewError(err, "unable to client.SetImage", imagePath)
		return
	}

	text, ocrErr := client.Text()
	if ocrErr != nil {
		e = xerr.NewError(ocrErr, "unable to run OCR on image", imagePath)
		return
	}

	tl.Log(tl.Info1, palette.Green, "Local OCR completed (text length: %v)", len(text))
	return text, nil
}

// pageSegModeFor maps the capability-neutral segmentation mode onto the
// tesseract PSM constants.
func pageSegModeFor(mode SegmentationMode) gosseract.PageSegMode {
	if mode == SegmentMultiBlock {
		return gosseract.PSM_SINGLE_COLUMN
	}
	return gosseract.PSM_SINGLE_BLOCK
}
