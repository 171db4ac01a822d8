package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	maxOutputTokens = 1024
)

// NoAnswer is the sentinel returned when the model produces no usable
// text. It is a successful outcome, not an error.
const NoAnswer = "No response received from Gemini."

// Category classifies a generation failure.
type Category string

const (
	RateLimited      Category = "rate_limited"
	GenerationFailed Category = "generation_failed"
)

// Error is a categorized generation failure with the raw upstream
// message retained for display.
type Error struct {
	Category Category
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gemini: %s: %s", e.Category, e.Message)
}

// Client calls the Gemini generateContent REST API. Calls are single
// attempt; the pipeline treats any failure as terminal.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client with the given API key. No client-side
// timeout is set; generation latency is bounded only by the transport
// defaults and the caller's context.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Wire shapes for models/{model}:generateContent.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates,omitempty"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Generate sends the prompt to the given model and returns the
// normalized answer text. Temperature must lie in [0, 1]; output length
// is capped at 1024 tokens. An empty model response yields the NoAnswer
// sentinel with a nil error.
func (c *Client) Generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return "", classify(fmt.Sprintf("marshaling request: %v", err))
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", classify(fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classify(err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(fmt.Sprintf("reading response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classify(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", classify(fmt.Sprintf("decoding response: %v", err))
	}
	if result.Error != nil {
		return "", classify(fmt.Sprintf("API error %d (%s): %s", result.Error.Code, result.Error.Status, result.Error.Message))
	}

	return extractText(result), nil
}

// extractText normalizes the model response as an ordered strategy
// list: all parts of the first candidate concatenated in order, then a
// full scan joining every non-empty part across candidates, then the
// NoAnswer sentinel. A single answer is often split across several
// parts, so the first strategy must never stop at part zero.
func extractText(resp generateResponse) string {
	if len(resp.Candidates) > 0 {
		var b strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			b.WriteString(p.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text
		}
	}

	var fragments []string
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				fragments = append(fragments, p.Text)
			}
		}
	}
	if joined := strings.TrimSpace(strings.Join(fragments, "\n")); joined != "" {
		return joined
	}

	return NoAnswer
}

// classify maps a failure message to its category: quota and 429
// failures are RateLimited, everything else GenerationFailed. The raw
// message is retained either way.
func classify(msg string) *Error {
	lower := strings.ToLower(msg)
	if strings.Contains(msg, "429") || strings.Contains(lower, "quota") {
		return &Error{Category: RateLimited, Message: msg}
	}
	return &Error{Category: GenerationFailed, Message: msg}
}
