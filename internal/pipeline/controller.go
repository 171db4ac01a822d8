package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/data4good/owl/internal/composer"
	"github.com/data4good/owl/internal/gemini"
	"github.com/data4good/owl/internal/similarity"
)

// State names one step of a submission's lifecycle. Each submission
// walks Idle → Retrieving → (RetrievalEmpty | RetrievalFailed |
// ContextReady) → Generating → (AnswerReady | GenerationFailed) and
// never re-enters a state.
type State string

const (
	StateIdle             State = "idle"
	StateRetrieving       State = "retrieving"
	StateRetrievalEmpty   State = "retrieval_empty"
	StateRetrievalFailed  State = "retrieval_failed"
	StateContextReady     State = "context_ready"
	StateGenerating       State = "generating"
	StateAnswerReady      State = "answer_ready"
	StateGenerationFailed State = "generation_failed"
)

// Terminal reports whether s ends a submission.
func (s State) Terminal() bool {
	switch s {
	case StateRetrievalEmpty, StateRetrievalFailed, StateAnswerReady, StateGenerationFailed:
		return true
	}
	return false
}

// Input bounds. Values outside are clamped before retrieval.
const (
	MinK            = 1
	MaxK            = 10
	MinContextLimit = 2000
	MaxContextLimit = 50000
)

// Retriever fetches the top-k documents for a query.
type Retriever interface {
	Fetch(ctx context.Context, query string, k int) ([]similarity.Document, error)
}

// Generator produces an answer from a prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, temperature float64) (string, error)
}

// Request is one question submission with its knobs. Zero values fall
// back to the controller defaults; out-of-range values are clamped.
type Request struct {
	Query        string
	K            int
	Model        string
	Temperature  float64 // negative means "use default"
	ContextLimit int
}

// Outcome is the terminal result of one submission. Exactly one
// human-readable Message is set per terminal state; ErrorDetail carries
// the raw diagnostic for debug display.
type Outcome struct {
	ID          string
	State       State
	Answer      string
	Documents   []similarity.Document
	Message     string
	ErrorDetail string
	Model       string
	K           int
	Duration    time.Duration
}

// Failed reports whether the outcome is an error state. RetrievalEmpty
// is informational, not a failure.
func (o Outcome) Failed() bool {
	return o.State == StateRetrievalFailed || o.State == StateGenerationFailed
}

// Defaults used when a Request leaves a knob unset.
type Defaults struct {
	K            int
	Model        string
	Temperature  float64
	ContextLimit int
}

// Controller runs the retrieval-augmented answer pipeline. Each Ask
// call is an independent submission; the controller holds no mutable
// per-submission state and is safe for concurrent use.
type Controller struct {
	retriever    Retriever
	generator    Generator
	systemPrompt string
	defaults     Defaults
}

// New creates a Controller. An empty systemPrompt selects the default
// ReliefWeb Q&A instruction.
func New(retriever Retriever, generator Generator, systemPrompt string, defaults Defaults) *Controller {
	if systemPrompt == "" {
		systemPrompt = composer.DefaultSystemPrompt
	}
	if defaults.K <= 0 {
		defaults.K = 5
	}
	if defaults.Model == "" {
		defaults.Model = "gemini-2.5-flash-lite"
	}
	if defaults.Temperature < 0 || defaults.Temperature > 1 {
		defaults.Temperature = 0.5
	}
	if defaults.ContextLimit <= 0 {
		defaults.ContextLimit = 12000
	}
	return &Controller{
		retriever:    retriever,
		generator:    generator,
		systemPrompt: systemPrompt,
		defaults:     defaults,
	}
}

// Ask runs one submission to its terminal state. A query that is empty
// after trimming never reaches retrieval: the outcome stays Idle with
// an explanatory message.
func (c *Controller) Ask(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := Outcome{
		ID:    uuid.NewString(),
		State: StateIdle,
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		out.Message = "Please enter a question."
		out.Duration = time.Since(start)
		return out
	}

	k := clampInt(req.K, c.defaults.K, MinK, MaxK)
	model := req.Model
	if model == "" {
		model = c.defaults.Model
	}
	temperature := req.Temperature
	if temperature < 0 {
		temperature = c.defaults.Temperature
	}
	if temperature > 1 {
		temperature = 1
	}
	contextLimit := clampInt(req.ContextLimit, c.defaults.ContextLimit, MinContextLimit, MaxContextLimit)

	out.Model = model
	out.K = k

	out.State = StateRetrieving
	slog.Debug("retrieving similar documents", "submission", out.ID, "k", k)

	docs, err := c.retriever.Fetch(ctx, query, k)
	if err != nil {
		out.State = StateRetrievalFailed
		out.Message = retrievalMessage(err)
		out.ErrorDetail = err.Error()
		out.Duration = time.Since(start)
		slog.Warn("retrieval failed", "submission", out.ID, "error", err)
		return out
	}

	if len(docs) == 0 {
		out.State = StateRetrievalEmpty
		out.Message = "No similar documents found. Try another query or adjust k."
		out.Duration = time.Since(start)
		return out
	}

	out.Documents = docs
	out.State = StateContextReady

	assembled := composer.Assemble(docs, contextLimit)
	prompt := composer.BuildPrompt(c.systemPrompt, assembled, query)

	out.State = StateGenerating
	slog.Debug("generating answer", "submission", out.ID, "model", model, "context_chars", len(assembled))

	answer, err := c.generator.Generate(ctx, model, prompt, temperature)
	if err != nil {
		out.State = StateGenerationFailed
		out.Message = generationMessage(err)
		out.ErrorDetail = err.Error()
		out.Duration = time.Since(start)
		slog.Warn("generation failed", "submission", out.ID, "error", err)
		return out
	}

	out.State = StateAnswerReady
	out.Answer = answer
	out.Duration = time.Since(start)
	return out
}

func clampInt(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func retrievalMessage(err error) string {
	var serr *similarity.Error
	if errors.As(err, &serr) {
		switch serr.Category {
		case similarity.RateLimited:
			return "The similarity service is rate-limiting requests. Wait a moment or reduce k."
		case similarity.Timeout:
			return "The similarity service timed out. Try again shortly."
		case similarity.NetworkUnreachable:
			return "Could not reach the similarity service. Check the endpoint URL and your connection."
		case similarity.ServerError:
			return "The similarity service reported an internal error. Try again shortly."
		case similarity.ClientError:
			return "The similarity service rejected the request."
		}
	}
	return "Error calling the similarity service."
}

func generationMessage(err error) string {
	var gerr *gemini.Error
	if errors.As(err, &gerr) && gerr.Category == gemini.RateLimited {
		return "Gemini returned a quota or rate-limiting error. Try a Flash/Lite model, reduce k, or check your quota."
	}
	return "Error generating the answer with Gemini."
}
