// Package llm grades answers with a language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/answergrader/internal/llm/prompts"
	"github.com/pavelanni/answergrader/internal/model"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 2 * time.Minute

// Completer sends a prompt to a model and returns its raw text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Ping checks that the model endpoint is reachable and the model exists.
	Ping(ctx context.Context) error
	// Describe returns "<provider>/<model>".
	Describe() string
}

// Evaluator grades an answer by asking a language model for a
// concept_match_score / awarded_marks / feedback triple.
type Evaluator struct {
	completer Completer
	variant   prompts.Variant
	timeout   time.Duration
}

// New returns an Evaluator using c. A zero timeout means DefaultTimeout.
func New(c Completer, variant prompts.Variant, timeout time.Duration) (*Evaluator, error) {
	if c == nil {
		return nil, errors.New("llm: nil completer")
	}
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("llm: invalid prompt variant %q", variant)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{completer: c, variant: variant, timeout: timeout}, nil
}

// Name returns "llm:<provider>/<model>".
func (e *Evaluator) Name() string { return "llm:" + e.completer.Describe() }

// Ping checks the model endpoint within the call timeout.
func (e *Evaluator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.completer.Ping(ctx); err != nil {
		return &model.EvaluatorUnavailableError{Evaluator: e.Name(), Err: err}
	}
	return nil
}

// EvaluateAnswer asks the model to grade student against key. Transport
// failures and timeouts return *model.EvaluatorUnavailableError. A reply that
// is not the expected JSON is parsed for marks in free text instead.
func (e *Evaluator) EvaluateAnswer(ctx context.Context, q model.Question, key, student string) (model.Assessment, error) {
	prompt, err := prompts.Build(e.variant, q.QuestionText, q.MaxMarks, key, student)
	if err != nil {
		return model.Assessment{}, fmt.Errorf("build prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.completer.Complete(callCtx, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("no response after %s: %w", e.timeout, err)
		}
		return model.Assessment{}, &model.EvaluatorUnavailableError{Evaluator: e.Name(), Err: err}
	}
	slog.Debug("LLM response", "question", q.QuestionNumber, "elapsed", time.Since(start), "raw", raw)

	a, err := ParseAssessment(raw, q.MaxMarks)
	if err != nil {
		slog.Warn("falling back to text parsing", "question", q.QuestionNumber, "error", err)
		a = FallbackAssessment(raw, q.MaxMarks)
	}
	return a, nil
}

// Supported model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// NewCompleter builds the completer for provider. baseURL only applies to
// the OpenAI-compatible provider.
func NewCompleter(ctx context.Context, provider, baseURL, apiKey, modelName string) (Completer, error) {
	switch provider {
	case ProviderOpenAI, "":
		return NewOpenAI(baseURL, apiKey, modelName), nil
	case ProviderGemini:
		return NewGemini(ctx, apiKey, modelName)
	case ProviderOllama:
		return NewOllamaCLI(modelName), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want openai, gemini or ollama)", provider)
	}
}
