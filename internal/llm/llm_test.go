package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/answergrader/internal/llm/prompts"
	"github.com/pavelanni/answergrader/internal/model"
)

type fakeCompleter struct {
	reply   string
	err     error
	delay   time.Duration
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeCompleter) Ping(context.Context) error { return f.err }

func (f *fakeCompleter) Describe() string { return "fake/test-model" }

var question = model.Question{QuestionNumber: 3, QuestionText: "What is a goroutine?", MaxMarks: 10}

func newEvaluator(t *testing.T, c Completer, timeout time.Duration) *Evaluator {
	t.Helper()
	e, err := New(c, prompts.VariantStandard, timeout)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, prompts.VariantStandard, 0); err == nil {
		t.Error("expected error for nil completer")
	}
	if _, err := New(&fakeCompleter{}, "harsh", 0); err == nil {
		t.Error("expected error for unknown variant")
	}
	e := newEvaluator(t, &fakeCompleter{}, 0)
	if e.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", e.timeout, DefaultTimeout)
	}
	if got := e.Name(); got != "llm:fake/test-model" {
		t.Errorf("Name() = %q", got)
	}
}

func TestEvaluateAnswerJSON(t *testing.T) {
	fc := &fakeCompleter{reply: "```json\n{\"concept_match_score\": 0.8, \"awarded_marks\": 8, \"feedback\": \"Good.\"}\n```"}
	e := newEvaluator(t, fc, time.Second)

	a, err := e.EvaluateAnswer(context.Background(), question, "A lightweight thread.", "A cheap thread managed by the runtime.")
	if err != nil {
		t.Fatalf("EvaluateAnswer: %v", err)
	}
	if a.Score != 0.8 || a.Marks != 8 || a.Feedback != "Good." {
		t.Errorf("got %+v", a)
	}
	if len(fc.prompts) != 1 {
		t.Fatalf("completer called %d times, want 1", len(fc.prompts))
	}
	p := fc.prompts[0]
	for _, want := range []string{question.QuestionText, "A lightweight thread.", "A cheap thread managed by the runtime.", "Maximum marks: 10"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestEvaluateAnswerFallbackParsing(t *testing.T) {
	fc := &fakeCompleter{reply: "The student would be awarded 6 marks. Some points are missing."}
	e := newEvaluator(t, fc, time.Second)

	a, err := e.EvaluateAnswer(context.Background(), question, "key", "answer")
	if err != nil {
		t.Fatalf("EvaluateAnswer: %v", err)
	}
	if a.Marks != 6 {
		t.Errorf("Marks = %v, want 6", a.Marks)
	}
	if a.Score != 0.6 {
		t.Errorf("Score = %v, want 0.6", a.Score)
	}
	if a.Feedback != "The student would be awarded 6 marks" {
		t.Errorf("Feedback = %q", a.Feedback)
	}
}

func TestEvaluateAnswerUnparsable(t *testing.T) {
	e := newEvaluator(t, &fakeCompleter{reply: "I cannot grade this."}, time.Second)
	a, err := e.EvaluateAnswer(context.Background(), question, "key", "answer")
	if err != nil {
		t.Fatalf("EvaluateAnswer: %v", err)
	}
	if a.Marks != 0 || a.Feedback != FeedbackUnparsable {
		t.Errorf("got %+v", a)
	}
}

func TestEvaluateAnswerUnavailable(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeCompleter
	}{
		{"transport error", &fakeCompleter{err: errors.New("connection refused")}},
		{"timeout", &fakeCompleter{reply: "{}", delay: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(t, tt.fc, 20*time.Millisecond)
			_, err := e.EvaluateAnswer(context.Background(), question, "key", "answer")
			var unavailable *model.EvaluatorUnavailableError
			if !errors.As(err, &unavailable) {
				t.Fatalf("err = %v, want EvaluatorUnavailableError", err)
			}
			if unavailable.Evaluator != "llm:fake/test-model" {
				t.Errorf("Evaluator = %q", unavailable.Evaluator)
			}
		})
	}
}

func TestPing(t *testing.T) {
	e := newEvaluator(t, &fakeCompleter{}, time.Second)
	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	e = newEvaluator(t, &fakeCompleter{err: errors.New("down")}, time.Second)
	var unavailable *model.EvaluatorUnavailableError
	if err := e.Ping(context.Background()); !errors.As(err, &unavailable) {
		t.Errorf("Ping err = %v, want EvaluatorUnavailableError", err)
	}
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(context.Background(), ProviderOllama, "", "", "llama3.1")
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}
	if c.Describe() != "ollama/llama3.1" {
		t.Errorf("Describe() = %q", c.Describe())
	}
	if _, err := NewCompleter(context.Background(), "claude", "", "", "x"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewCompleter(context.Background(), ProviderGemini, "", "", "gemini-1.5-flash"); err == nil {
		t.Error("expected error for gemini without API key")
	}
}

func TestOpenAICompleter(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req struct {
				Model string `json:"model"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			gotModel = req.Model
			_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"awarded_marks\": 4}"},"finish_reason":"stop"}]}`))
		case "/v1/models":
			_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"llama3.2","object":"model"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL+"/v1", "ollama", "llama3.2")
	out, err := c.Complete(context.Background(), "grade this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"awarded_marks": 4}` {
		t.Errorf("Complete() = %q", out)
	}
	if gotModel != "llama3.2" {
		t.Errorf("model sent = %q", gotModel)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := NewOpenAI(srv.URL+"/v1", "ollama", "missing").Ping(context.Background()); err == nil {
		t.Error("Ping should fail for a model the server does not list")
	}
}
