package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

/*
This file contains a tiny, dependency-free REST client for the Gemini
generateContent API.

One call shape is enough for this product: a text instruction plus one inline
media payload, answered synchronously. There is no polling and no retry here;
transient failures propagate up so the orchestrator can pick another strategy.
*/

const (
	GeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta"

	GenerateContentTimeout = 120 * time.Second // vision models may take a while
)

// Client calls the Gemini API with a caller-supplied credential.
type Client struct {
	APIKey  string
	BaseURL string // defaults to GeminiAPIURL; overridable for tests
}

func NewClient(apiKey string) *Client {
	return &Client{APIKey: apiKey, BaseURL: GeminiAPIURL}
}

/*
GenerateContent performs POST /models/{model}:generateContent with the given
instruction text and one inline media payload, and returns the concatenated
text parts of the first candidate.

An empty candidate list is not an error: it returns an empty string and the
caller decides what "no text" means. API-level failures (bad status, error
payload, malformed body) return a *xerr.Error.
*/
func (c *Client) GenerateContent(ctx context.Context, model string, instruction string, mimeType string, payload []byte) (text string, e *xerr.Error) {
	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = GeminiAPIURL
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", baseURL, model)

	tl.Log(tl.Info, palette.Blue, "%s %s request to '%s'", "Sending", "generateContent", url)

	requestPayload := generateContentRequest{
		Contents: []content{{
			Parts: []part{
				{Text: instruction},
				{InlineData: &inlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(payload),
				}},
			},
		}},
	}

	encoded, marshalErr := json.Marshal(requestPayload)
	if marshalErr != nil {
		return "", xerr.NewError(marshalErr, "Failed to marshal generateContent payload", model)
	}

	req, newReqErr := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(encoded))
	if newReqErr != nil {
		return "", xerr.NewError(newReqErr, "Failed to create HTTP request", url)
	}
	req.Header.Set("Content-Type", "application/json")
	// Header keeps the credential out of URLs and logs.
	req.Header.Set("x-goog-api-key", c.APIKey)

	startTime := time.Now()
	httpClient := &http.Client{Timeout: GenerateContentTimeout}
	resp, httpErr := httpClient.Do(req)
	if httpErr != nil {
		return "", xerr.NewError(httpErr, "HTTP error during generateContent", map[string]any{"url": url, "model": model})
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", xerr.NewError(readErr, "Failed to read generateContent response body", url)
	}
	tl.LogJSON(tl.Debug, palette.CyanDim, "gemini response body", respBody)

	var parsed generateContentResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != nil {
			return "", xerr.NewError(
				fmt.Errorf("status is '%s'", resp.Status),
				"API error from generateContent", parsed.Error.Message,
			)
		}
		return "", xerr.NewError(fmt.Errorf("status is '%s'", resp.Status), "API error from generateContent", string(respBody))
	}
	if decodeErr != nil {
		return "", xerr.NewError(decodeErr, "Failed to decode generateContent response body", nil)
	}

	if parsed.UsageMetadata != nil {
		tl.Log(
			tl.Detailed, palette.CyanDim, "Tokens in: %v, out: %v, total: %v",
			parsed.UsageMetadata.PromptTokenCount, parsed.UsageMetadata.CandidatesTokenCount,
			parsed.UsageMetadata.TotalTokenCount,
		)
	}

	text = extractCandidateText(&parsed)
	tl.Log(
		tl.Info1, palette.Green, "%s in %s (text length: %v)",
		"generateContent completed", time.Since(startTime), len(text),
	)
	return text, nil
}

// extractCandidateText concatenates the text parts of the first candidate.
func extractCandidateText(resp *generateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var builder strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		builder.WriteString(p.Text)
	}
	return builder.String()
}
