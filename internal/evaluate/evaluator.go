// Package evaluate grades a student's answer set against the question paper
// and answer key using a pluggable Evaluator.
package evaluate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pavelanni/answergrader/internal/config"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/scoring"
)

// Evaluator scores one student answer against its reference answer.
// Implementations must be safe for concurrent use.
type Evaluator interface {
	// Name identifies the evaluator in results, logs and metrics.
	Name() string
	EvaluateAnswer(ctx context.Context, q model.Question, key, student string) (model.Assessment, error)
}

// StatisticalEvaluator grades by text similarity, a grading curve and a
// feedback table.
type StatisticalEvaluator struct {
	scorer   *scoring.Scorer
	curve    scoring.Curve
	feedback scoring.FeedbackTable
}

// NewStatistical builds a StatisticalEvaluator from the grading config.
func NewStatistical(g config.Grading) *StatisticalEvaluator {
	return &StatisticalEvaluator{
		scorer:   g.Scorer(),
		curve:    g.Curve,
		feedback: g.Feedback,
	}
}

func (e *StatisticalEvaluator) Name() string { return "statistical" }

func (e *StatisticalEvaluator) EvaluateAnswer(_ context.Context, q model.Question, key, student string) (model.Assessment, error) {
	sim := e.scorer.Similarity(key, student)
	return model.Assessment{
		Score:    sim,
		Marks:    e.curve.MarksFor(sim, q.MaxMarks),
		Feedback: e.feedback.FeedbackFor(sim),
	}, nil
}

// FallbackEvaluator uses Primary and switches to Secondary for any answer
// where Primary reports itself unavailable.
type FallbackEvaluator struct {
	Primary   Evaluator
	Secondary Evaluator
}

func (f *FallbackEvaluator) Name() string {
	return f.Primary.Name() + " (fallback: " + f.Secondary.Name() + ")"
}

func (f *FallbackEvaluator) EvaluateAnswer(ctx context.Context, q model.Question, key, student string) (model.Assessment, error) {
	a, err := f.Primary.EvaluateAnswer(ctx, q, key, student)
	var unavailable *model.EvaluatorUnavailableError
	if err == nil || !errors.As(err, &unavailable) {
		return a, err
	}
	slog.Warn("evaluator unavailable, using fallback",
		"question", q.QuestionNumber,
		"evaluator", f.Primary.Name(),
		"fallback", f.Secondary.Name(),
		"error", err,
	)
	return f.Secondary.EvaluateAnswer(ctx, q, key, student)
}
