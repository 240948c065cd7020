package pipeline

// RejectReason classifies why a pipeline run did not produce accepted text.
type RejectReason string

const (
	ReasonDecodeError     RejectReason = "decode_error"
	ReasonNoTextFound     RejectReason = "no_text_found"
	ReasonCapabilityError RejectReason = "capability_error"
	ReasonQualityRejected RejectReason = "quality_rejected"
)

/*
Result is the terminal record of one pipeline run. The pipeline always
returns a Result: stage failures are converted into rejections, never thrown
past this boundary. A rejection carries a human-actionable message (lighting,
blur, unsupported content) rather than a raw internal error.
*/
type Result struct {
	Success    bool         `json:"success"`
	Text       string       `json:"text,omitempty"`
	Message    string       `json:"message,omitempty"`
	Score      float64      `json:"score,omitempty"`
	Reason     RejectReason `json:"reason,omitempty"`
	Capability string       `json:"capability,omitempty"`
}

func accepted(text string, score float64, capability string) Result {
	return Result{Success: true, Text: text, Score: score, Capability: capability}
}

func rejected(reason RejectReason, message string, bestScore float64, capability string) Result {
	return Result{
		Success:    false,
		Message:    message,
		Score:      bestScore,
		Reason:     reason,
		Capability: capability,
	}
}
