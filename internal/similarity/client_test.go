package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastRetries shrinks the backoff schedule so retry tests stay quick.
func fastRetries(c *Client) {
	c.backoff = []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
}

func TestFetch_Success(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"Flood Update","source":"OCHA","page_label":"3","URL":"https://example.org/r1","document":"Flooding in Sudan...","combined_details":"Flood Update | OCHA | Flooding in Sudan..."},
			{"title":"Situation Report","source":"UNHCR","document":"Displacement figures..."}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	docs, err := c.Fetch(context.Background(), "flood response", 2)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotBody["text"] != "flood response" {
		t.Errorf("request text = %v, want flood response", gotBody["text"])
	}
	if gotBody["k"] != float64(2) {
		t.Errorf("request k = %v, want 2", gotBody["k"])
	}

	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].Title != "Flood Update" {
		t.Errorf("docs[0].Title = %q", docs[0].Title)
	}
	if docs[0].ContextText() != "Flood Update | OCHA | Flooding in Sudan..." {
		t.Errorf("docs[0].ContextText() = %q, want combined details", docs[0].ContextText())
	}
	// Second result omits several fields; order must be preserved and
	// placeholders filled in.
	if docs[1].Title != "Situation Report" {
		t.Errorf("docs[1].Title = %q", docs[1].Title)
	}
	if docs[1].PageLabel != PlaceholderPage {
		t.Errorf("docs[1].PageLabel = %q, want %q", docs[1].PageLabel, PlaceholderPage)
	}
	if docs[1].URL != "" {
		t.Errorf("docs[1].URL = %q, want empty", docs[1].URL)
	}
	if docs[1].ContextText() != "Displacement figures..." {
		t.Errorf("docs[1].ContextText() = %q, want body fallback", docs[1].ContextText())
	}
}

func TestFetch_AllFieldsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{}]}`))
	}))
	defer srv.Close()

	docs, err := New(srv.URL).Fetch(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}

	d := docs[0]
	if d.Title != PlaceholderTitle {
		t.Errorf("Title = %q, want %q", d.Title, PlaceholderTitle)
	}
	if d.Source != PlaceholderSource {
		t.Errorf("Source = %q, want %q", d.Source, PlaceholderSource)
	}
	if d.PageLabel != PlaceholderPage {
		t.Errorf("PageLabel = %q, want %q", d.PageLabel, PlaceholderPage)
	}
	if d.ContextText() != PlaceholderDetails {
		t.Errorf("ContextText() = %q, want %q", d.ContextText(), PlaceholderDetails)
	}
}

func TestFetch_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	docs, err := New(srv.URL).Fetch(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results":[{"title":"ok"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	fastRetries(c)

	start := time.Now()
	docs, err := c.Fetch(context.Background(), "q", 1)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "ok" {
		t.Fatalf("docs = %+v, want the third attempt's result", docs)
	}
	if got := attempt.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	// Both backoff pauses (10ms + 20ms) must have elapsed.
	if elapsed < 30*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 30ms of backoff", elapsed)
	}
}

func TestFetch_RateLimitedAfterRetries(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL)
	fastRetries(c)

	_, err := c.Fetch(context.Background(), "q", 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempt.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if rerr.Category != RateLimited {
		t.Errorf("category = %q, want %q", rerr.Category, RateLimited)
	}
	if rerr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rerr.Status)
	}
}

func TestFetch_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   Category
	}{
		{http.StatusTooManyRequests, RateLimited},
		{http.StatusInternalServerError, ServerError},
		{http.StatusBadGateway, ServerError},
		{http.StatusNotFound, ClientError},
		{http.StatusBadRequest, ClientError},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := New(srv.URL)
		c.attempts = 1

		_, err := c.Fetch(context.Background(), "q", 1)
		srv.Close()

		var rerr *Error
		if !errors.As(err, &rerr) {
			t.Fatalf("status %d: error type = %T, want *Error", tt.status, err)
		}
		if rerr.Category != tt.want {
			t.Errorf("status %d: category = %q, want %q", tt.status, rerr.Category, tt.want)
		}
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.attempts = 1
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.Fetch(context.Background(), "q", 1)
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if rerr.Category != Timeout {
		t.Errorf("category = %q, want %q", rerr.Category, Timeout)
	}
}

func TestFetch_NetworkUnreachable(t *testing.T) {
	// Bind a listener, note its address, then close it so connections
	// are refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := New(addr)
	c.attempts = 1

	_, err := c.Fetch(context.Background(), "q", 1)
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if rerr.Category != NetworkUnreachable {
		t.Errorf("category = %q, want %q", rerr.Category, NetworkUnreachable)
	}
}

func TestFetch_UnconfiguredURL(t *testing.T) {
	c := New("")
	_, err := c.Fetch(context.Background(), "q", 1)

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if rerr.Category != Unknown {
		t.Errorf("category = %q, want %q", rerr.Category, Unknown)
	}
}
