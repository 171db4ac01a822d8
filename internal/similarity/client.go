package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxAttempts    = 3
)

// backoffSchedule holds the delay before each retry attempt.
var backoffSchedule = []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second}

// Category classifies a retrieval failure.
type Category string

const (
	RateLimited        Category = "rate_limited"
	ServerError        Category = "server_error"
	ClientError        Category = "client_error"
	Timeout            Category = "timeout"
	NetworkUnreachable Category = "network_unreachable"
	Unknown            Category = "unknown"
)

// Error is a categorized retrieval failure. Every error returned by
// Client.Fetch is one of these; no unclassified failure escapes.
type Error struct {
	Category Category
	Status   int // HTTP status when applicable, else 0
	Message  string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("similarity: %s (HTTP %d): %s", e.Category, e.Status, e.Message)
	}
	return fmt.Sprintf("similarity: %s: %s", e.Category, e.Message)
}

// Client calls the similarity search endpoint with bounded retries.
type Client struct {
	endpointURL string
	httpClient  *http.Client

	// Overridable in tests to keep the retry test fast.
	attempts int
	backoff  []time.Duration
}

// New creates a Client for the given endpoint URL. An empty URL is
// accepted; Fetch reports it as a categorized error when called.
func New(endpointURL string) *Client {
	return &Client{
		endpointURL: strings.TrimSpace(endpointURL),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		attempts: maxAttempts,
		backoff:  backoffSchedule,
	}
}

// wireDocument mirrors one entry of the endpoint's results array.
// Every field is optional on the wire.
type wireDocument struct {
	Title           string `json:"title"`
	Source          string `json:"source"`
	PageLabel       string `json:"page_label"`
	URL             string `json:"URL"`
	Body            string `json:"document"`
	CombinedDetails string `json:"combined_details"`
}

type wireResponse struct {
	Results []wireDocument `json:"results"`
}

// Fetch posts {query, k} to the similarity endpoint and returns the
// retrieved documents in endpoint order. Transport and non-2xx failures
// are retried up to 3 times with increasing backoff (0.5s, 1s, 2s); the
// last attempt's categorized error is surfaced.
func (c *Client) Fetch(ctx context.Context, query string, k int) ([]Document, error) {
	if c.endpointURL == "" {
		return nil, &Error{Category: Unknown, Message: "similarity endpoint URL is not configured"}
	}

	body, err := json.Marshal(map[string]any{"text": query, "k": k})
	if err != nil {
		return nil, &Error{Category: Unknown, Message: fmt.Sprintf("marshaling request: %v", err)}
	}

	var lastErr *Error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, classifyTransport(ctx.Err())
			case <-time.After(c.backoff[min(attempt-1, len(c.backoff)-1)]):
			}
		}

		docs, attemptErr := c.doFetch(ctx, body)
		if attemptErr == nil {
			return docs, nil
		}
		lastErr = attemptErr
	}

	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, body []byte) ([]Document, *Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Category: Unknown, Message: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &Error{Category: Unknown, Message: fmt.Sprintf("decoding response: %v", err)}
	}

	docs := make([]Document, len(wire.Results))
	for i, w := range wire.Results {
		docs[i] = documentFromWire(w)
	}
	return docs, nil
}

func classifyStatus(status int, body string) *Error {
	msg := fmt.Sprintf("unexpected status %d", status)
	if body != "" {
		msg += ": " + body
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Category: RateLimited, Status: status, Message: msg}
	case status >= 500:
		return &Error{Category: ServerError, Status: status, Message: msg}
	default:
		return &Error{Category: ClientError, Status: status, Message: msg}
	}
}

func classifyTransport(err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Category: Timeout, Message: err.Error()}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Category: Timeout, Message: err.Error()}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Category: NetworkUnreachable, Message: err.Error()}
	}
	// url.Error wraps dial failures; the *net.OpError check above catches
	// them through errors.As, so anything left is genuinely unclassified.
	return &Error{Category: Unknown, Message: err.Error()}
}
