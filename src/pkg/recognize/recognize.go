// Package recognize abstracts the text-recognition backends behind a single
// capability interface. The two implementations (a local deterministic
// tesseract engine and a cloud AI engine) are selected by an explicit engine
// tag from the caller, never by probing at runtime.
package recognize

import (
	"context"
	"regexp"
	"strings"

	"github.com/tuumbleweed/xerr"
)

// Engine tags which recognition capability a caller wants.
type Engine string

const (
	EngineLocal   Engine = "local"
	EngineCloudAI Engine = "cloudai"
)

// ParseEngine maps a caller-supplied engine string onto a known tag,
// defaulting to the cloud capability the way the original product did.
func ParseEngine(value string) Engine {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(EngineLocal), "tesseract":
		return EngineLocal
	default:
		return EngineCloudAI
	}
}

// SegmentationMode is the layout assumption handed to the local engine.
type SegmentationMode string

const (
	// SegmentSingleBlock assumes one uniform block of text.
	SegmentSingleBlock SegmentationMode = "single-block"
	// SegmentMultiBlock assumes multiple independent text regions of varying
	// size, the fallback layout for structured documents.
	SegmentMultiBlock SegmentationMode = "multi-block"
)

// Request is one recognition invocation. Local capability consumes a prepared
// binarized PNG payload; the cloud capability consumes the original capture
// bytes, since it performs its own internal normalization.
type Request struct {
	Image    []byte
	MIMEType string
	Language string
	Mode     SegmentationMode
	// Model overrides the configured cloud model; ignored by the local
	// capability.
	Model string
}

// Capability is a swappable text-recognition backend.
type Capability interface {
	Name() string
	Recognize(ctx context.Context, request Request) (text string, e *xerr.Error)
}

var crlfRegexp = regexp.MustCompile(`\r\n?`)

/*
CleanText normalizes an engine's raw return value: page-break control
characters are stripped, line endings unified, and surrounding whitespace
trimmed. No interpretation or scoring happens here.
*/
func CleanText(raw string) string {
	cleaned := strings.ReplaceAll(raw, "\f", "")
	cleaned = crlfRegexp.ReplaceAllString(cleaned, "\n")
	return strings.TrimSpace(cleaned)
}

/*
TesseractLanguage maps the closed set of caller language hints onto tesseract
traineddata codes. Anything mentioning English alone maps to "eng"; everything
else gets the dual Vietnamese+English hint the product ships with.
*/
func TesseractLanguage(hint string) string {
	lowered := strings.ToLower(strings.TrimSpace(hint))
	if lowered == "" {
		return "vie+eng"
	}
	if strings.Contains(lowered, "vie") {
		return "vie+eng"
	}
	if strings.Contains(lowered, "eng") {
		return "eng"
	}
	return "vie+eng"
}
