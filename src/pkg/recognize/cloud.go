package recognize

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tuumbleweed/xerr"

	"doc-scanner/src/pkg/gemini"
)

/*
extractionInstruction tells the cloud model to behave as a pure OCR engine.
It must return the document's text verbatim, with natural line breaks
preserved: no translation, no summary.
*/
const extractionInstruction = "Extract all readable text from this photo. " +
	"Preserve natural line breaks. Plain text only. " +
	"Vietnamese + English supported. Do NOT translate or summarize."

// CloudCapability recognizes text with the Gemini document-understanding
// service. It consumes the original capture bytes rather than a prepared
// raster, because the service performs its own internal normalization.
type CloudCapability struct {
	Client *gemini.Client
	Model  string // empty means the configured default model
}

func (CloudCapability) Name() string { return "gemini" }

/*
Recognize performs exactly one generateContent call. There is no retry at this
level: a transient failure is propagated up as a capability error and only the
orchestrator decides whether another strategy remains.
*/
func (c CloudCapability) Recognize(ctx context.Context, request Request) (text string, e *xerr.Error) {
	if c.Client == nil || strings.TrimSpace(c.Client.APIKey) == "" {
		e = xerr.NewError(fmt.Errorf("missing credential"), "cloud recognition capability has no API credential", "GEMINI_API_KEY")
		return
	}

	model := request.Model
	if model == "" {
		model = c.Model
	}
	if model == "" {
		model = gemini.Cfg.Model
	}

	mimeType := request.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(request.Image)
	}

	return c.Client.GenerateContent(ctx, model, extractionInstruction, mimeType, request.Image)
}
