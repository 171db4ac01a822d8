package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/data4good/owl/internal/gemini"
	"github.com/data4good/owl/internal/pipeline"
	"github.com/data4good/owl/internal/similarity"
	"github.com/data4good/owl/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Asker runs one question submission to its terminal outcome.
type Asker interface {
	Ask(ctx context.Context, req pipeline.Request) pipeline.Outcome
}

// Deps holds the handler's collaborators.
type Deps struct {
	Pipeline Asker
	Store    *storage.Store // optional; nil disables history
	Token    string         // optional; non-empty enables bearer auth on /v1
	Debug    bool           // include raw error detail in responses
}

// NewHandler returns the HTTP API: health, model listing, question
// submission, and submission history.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(bearerAuth(deps.Token))
		}
		r.Get("/models", handleModels)
		r.Post("/ask", handleAsk(deps))
		r.Get("/history", handleHistory(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"models": gemini.ModelOptions(),
	})
}

// AskRequest is the POST /v1/ask body. Temperature is a pointer so an
// omitted value falls back to the server default rather than 0.
type AskRequest struct {
	Question     string   `json:"question"`
	K            int      `json:"k,omitempty"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	ContextLimit int      `json:"context_limit,omitempty"`
}

// AskResponse is the terminal outcome of one submission.
type AskResponse struct {
	ID          string                `json:"id"`
	State       pipeline.State        `json:"state"`
	Answer      string                `json:"answer,omitempty"`
	Message     string                `json:"message,omitempty"`
	ErrorDetail string                `json:"error_detail,omitempty"`
	Documents   []similarity.Document `json:"documents,omitempty"`
	Model       string                `json:"model,omitempty"`
	K           int                   `json:"k,omitempty"`
	DurationMs  int64                 `json:"duration_ms"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if strings.TrimSpace(req.Question) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}
		if req.Model != "" && !gemini.ValidModel(req.Model) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown model %q", req.Model)
			return
		}
		if req.K != 0 && (req.K < pipeline.MinK || req.K > pipeline.MaxK) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "k must be between %d and %d", pipeline.MinK, pipeline.MaxK)
			return
		}
		if req.ContextLimit != 0 && (req.ContextLimit < pipeline.MinContextLimit || req.ContextLimit > pipeline.MaxContextLimit) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "context_limit must be between %d and %d", pipeline.MinContextLimit, pipeline.MaxContextLimit)
			return
		}

		temperature := -1.0
		if req.Temperature != nil {
			if *req.Temperature < 0 || *req.Temperature > 1 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "temperature must be between 0.0 and 1.0")
				return
			}
			temperature = *req.Temperature
		}

		out := deps.Pipeline.Ask(r.Context(), pipeline.Request{
			Query:        req.Question,
			K:            req.K,
			Model:        req.Model,
			Temperature:  temperature,
			ContextLimit: req.ContextLimit,
		})

		recordOutcome(deps.Store, req.Question, out)

		resp := AskResponse{
			ID:         out.ID,
			State:      out.State,
			Answer:     out.Answer,
			Message:    out.Message,
			Documents:  out.Documents,
			Model:      out.Model,
			K:          out.K,
			DurationMs: out.Duration.Milliseconds(),
		}
		if deps.Debug {
			resp.ErrorDetail = out.ErrorDetail
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusNotFound, "invalid_request_error", "history is not enabled")
			return
		}

		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 200 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be an integer between 1 and 200")
				return
			}
			limit = n
		}

		subs, err := deps.Store.ListSubmissions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing history: %v", err)
			return
		}
		if subs == nil {
			subs = []storage.Submission{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"submissions": subs})
	}
}

// recordOutcome appends the outcome to history, best effort.
func recordOutcome(store *storage.Store, question string, out pipeline.Outcome) {
	if store == nil {
		return
	}
	err := store.RecordSubmission(storage.Submission{
		ID:         out.ID,
		Question:   strings.TrimSpace(question),
		State:      string(out.State),
		Answer:     out.Answer,
		Message:    out.Message,
		Model:      out.Model,
		K:          out.K,
		DurationMs: out.Duration.Milliseconds(),
	})
	if err != nil {
		slog.Warn("recording submission failed", "submission", out.ID, "error", err)
	}
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
