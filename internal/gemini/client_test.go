package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate_DirectText(t *testing.T) {
	var gotPath string
	var gotReq generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if key := r.URL.Query().Get("key"); key != "test-key" {
			t.Errorf("key = %q, want test-key", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"The flood response included..."}]}}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	answer, err := c.Generate(context.Background(), "gemini-2.5-flash-lite", "prompt text", 0.5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if answer != "The flood response included..." {
		t.Errorf("answer = %q", answer)
	}
	if gotPath != "/models/gemini-2.5-flash-lite:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 {
		t.Fatalf("contents = %+v, want one content with one part", gotReq.Contents)
	}
	if gotReq.Contents[0].Parts[0].Text != "prompt text" {
		t.Errorf("prompt = %q, want prompt text", gotReq.Contents[0].Parts[0].Text)
	}
	if gotReq.GenerationConfig == nil {
		t.Fatal("missing generationConfig")
	}
	if gotReq.GenerationConfig.Temperature != 0.5 {
		t.Errorf("temperature = %v, want 0.5", gotReq.GenerationConfig.Temperature)
	}
	if gotReq.GenerationConfig.MaxOutputTokens != 1024 {
		t.Errorf("maxOutputTokens = %d, want 1024", gotReq.GenerationConfig.MaxOutputTokens)
	}
}

func TestGenerate_MultiPartAnswerJoined(t *testing.T) {
	// One answer split across several parts of the first candidate must
	// come back whole, not cut at the first fragment.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[
			{"text":"The flood response "},
			{"text":"included shelter and water."}
		]}}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL)
	answer, err := c.Generate(context.Background(), "gemini-2.5-flash", "p", 0.2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "The flood response included shelter and water." {
		t.Errorf("answer = %q, want the full concatenated answer", answer)
	}
}

func TestGenerate_MultiPartFallback(t *testing.T) {
	// First candidate carries no text, so the full candidate/part scan
	// must join the remaining fragments in encounter order.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[
			{"content":{"parts":[]}},
			{"content":{"parts":[{"text":"part one"}]}},
			{"content":{"parts":[{"text":"part two"}]}}
		]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL)
	answer, err := c.Generate(context.Background(), "gemini-2.5-flash", "p", 0.2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "part one\npart two" {
		t.Errorf("answer = %q, want joined parts", answer)
	}
}

func TestGenerate_EmptyResponseIsNoAnswer(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no candidates", `{}`},
		{"empty parts", `{"candidates":[{"content":{"parts":[]}}]}`},
		{"whitespace only", `{"candidates":[{"content":{"parts":[{"text":"  \n "}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClientWithBaseURL("k", srv.URL)
			answer, err := c.Generate(context.Background(), "gemini-2.5-flash", "p", 0.5)
			if err != nil {
				t.Fatalf("empty response must not be an error, got %v", err)
			}
			if answer != NoAnswer {
				t.Errorf("answer = %q, want the NoAnswer sentinel", answer)
			}
		})
	}
}

func TestGenerate_RateLimitClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http 429", http.StatusTooManyRequests, `rate limit`},
		{"quota message", http.StatusForbidden, `{"error":{"code":403,"status":"RESOURCE_EXHAUSTED","message":"Quota exceeded for project"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClientWithBaseURL("k", srv.URL)
			_, err := c.Generate(context.Background(), "gemini-2.5-pro", "p", 0.5)

			var gerr *Error
			if !errors.As(err, &gerr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if gerr.Category != RateLimited {
				t.Errorf("category = %q, want %q", gerr.Category, RateLimited)
			}
		})
	}
}

func TestGenerate_OtherFailuresKeepMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"status":"INVALID_ARGUMENT","message":"unknown model"}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL)
	_, err := c.Generate(context.Background(), "not-a-model", "p", 0.5)

	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if gerr.Category != GenerationFailed {
		t.Errorf("category = %q, want %q", gerr.Category, GenerationFailed)
	}
	if !strings.Contains(gerr.Message, "unknown model") {
		t.Errorf("message = %q, want raw upstream detail retained", gerr.Message)
	}
}

func TestGenerate_SingleAttempt(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("k", srv.URL)
	c.Generate(context.Background(), "gemini-2.5-flash", "p", 0.5)

	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1 (no retries at this layer)", calls)
	}
}

func TestValidModel(t *testing.T) {
	for _, m := range ModelOptions() {
		if !ValidModel(m.ID) {
			t.Errorf("ValidModel(%q) = false", m.ID)
		}
	}
	if ValidModel("gpt-4") {
		t.Error("ValidModel(gpt-4) = true, want false")
	}
}
