package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/pavelanni/answergrader/internal/config"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/scoring"
)

// Fixed feedback for the outcomes that do not come from an evaluator.
const (
	FeedbackNotAnswered  = "Not answered"
	FeedbackKeyMissing   = "Answer key not available - partial marks awarded"
	FeedbackScoringError = "Internal scoring error - no marks awarded for this question"
)

// Observer receives per-question and per-evaluation measurements.
type Observer interface {
	ObserveQuestion(evaluator string, outcome model.Outcome, elapsed time.Duration)
	ObserveEvaluation(evaluator string, percentage float64, elapsed time.Duration)
}

// Aligner matches answers to questions by number and grades each one.
// It keeps no per-run state, so one Aligner can serve concurrent submissions.
type Aligner struct {
	evaluator          Evaluator
	keyMissingFraction float64
	grades             scoring.GradeScale
	observer           Observer
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithObserver reports measurements to o.
func WithObserver(o Observer) Option {
	return func(a *Aligner) { a.observer = o }
}

// NewAligner returns an Aligner grading with e and the policy values of g.
func NewAligner(e Evaluator, g config.Grading, opts ...Option) *Aligner {
	a := &Aligner{
		evaluator:          e,
		keyMissingFraction: g.KeyMissingFraction,
		grades:             g.LetterGrades,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EvaluatorName returns the name of the evaluator in use.
func (a *Aligner) EvaluatorName() string { return a.evaluator.Name() }

// Evaluate grades answers against questions and key.
//
// It returns a *model.MissingInputError when questions or key is empty, and
// aborts with a *model.EvaluatorUnavailableError when the evaluator cannot be
// reached. Any other failure is confined to the question it occurred in.
func (a *Aligner) Evaluate(ctx context.Context, questions []model.Question, key []model.AnswerKeyEntry, answers []model.StudentAnswer) (model.EvaluationResult, error) {
	if len(questions) == 0 {
		return model.EvaluationResult{}, &model.MissingInputError{Input: model.InputQuestionPaper}
	}
	if len(key) == 0 {
		return model.EvaluationResult{}, &model.MissingInputError{Input: model.InputAnswerKey}
	}
	start := time.Now()

	keyByNum := make(map[int]string, len(key))
	for _, k := range key {
		keyByNum[k.QuestionNumber] = k.AnswerText
	}
	answerByNum := make(map[int]string, len(answers))
	for _, s := range answers {
		answerByNum[s.QuestionNumber] = s.StudentAnswer
	}

	sorted := make([]model.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].QuestionNumber < sorted[j].QuestionNumber
	})

	result := model.EvaluationResult{
		EvaluationMethod: a.evaluator.Name(),
		QuestionWise:     make([]model.QuestionEvaluation, 0, len(sorted)),
	}
	var obtained float64
	for _, q := range sorted {
		if err := ctx.Err(); err != nil {
			return model.EvaluationResult{}, err
		}
		result.TotalMarks += q.MaxMarks

		qStart := time.Now()
		qe, err := a.evaluateQuestion(ctx, q, keyByNum, answerByNum)
		if err != nil {
			return model.EvaluationResult{}, err
		}
		a.observeQuestion(qe.Outcome, time.Since(qStart))

		obtained += qe.MarksObtained
		qe.MarksObtained = round(qe.MarksObtained, 2)
		qe.SimilarityScore = round(qe.SimilarityScore, 3)
		result.QuestionWise = append(result.QuestionWise, qe)
	}

	result.ObtainedMarks = round(obtained, 2)
	if result.TotalMarks > 0 {
		result.Percentage = round(obtained/result.TotalMarks*100, 2)
	}
	result.Grade = a.grades.GradeFor(result.Percentage)

	if a.observer != nil {
		a.observer.ObserveEvaluation(a.evaluator.Name(), result.Percentage, time.Since(start))
	}
	slog.Debug("evaluation complete",
		"evaluator", result.EvaluationMethod,
		"questions", len(result.QuestionWise),
		"obtained", result.ObtainedMarks,
		"total", result.TotalMarks,
		"percentage", result.Percentage,
	)
	return result, nil
}

func (a *Aligner) evaluateQuestion(ctx context.Context, q model.Question, keyByNum, answerByNum map[int]string) (model.QuestionEvaluation, error) {
	qe := model.QuestionEvaluation{
		QuestionNumber: q.QuestionNumber,
		MaxMarks:       q.MaxMarks,
	}

	student, answered := answerByNum[q.QuestionNumber]
	// An answer with nothing left after normalization is treated as blank.
	if !answered || scoring.Normalize(student) == "" {
		qe.Feedback = FeedbackNotAnswered
		qe.Outcome = model.OutcomeNotAnswered
		return qe, nil
	}

	reference, keyed := keyByNum[q.QuestionNumber]
	if !keyed {
		qe.MarksObtained = a.keyMissingFraction * q.MaxMarks
		qe.SimilarityScore = a.keyMissingFraction
		qe.Feedback = FeedbackKeyMissing
		qe.Outcome = model.OutcomeKeyMissing
		return qe, nil
	}

	assessment, err := a.safeEvaluate(ctx, q, reference, student)
	if err != nil {
		var unavailable *model.EvaluatorUnavailableError
		if errors.As(err, &unavailable) || ctx.Err() != nil {
			return qe, err
		}
		slog.Warn("scoring failed", "question", q.QuestionNumber, "evaluator", a.evaluator.Name(), "error", err)
		qe.Feedback = FeedbackScoringError
		qe.Outcome = model.OutcomeScoringError
		return qe, nil
	}

	qe.MarksObtained = clamp(assessment.Marks, 0, q.MaxMarks)
	qe.SimilarityScore = clamp(assessment.Score, 0, 1)
	qe.Feedback = assessment.Feedback
	qe.Outcome = model.OutcomeScored
	return qe, nil
}

// safeEvaluate converts a panic inside the evaluator into an error.
func (a *Aligner) safeEvaluate(ctx context.Context, q model.Question, key, student string) (assessment model.Assessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator panic: %v", r)
		}
	}()
	return a.evaluator.EvaluateAnswer(ctx, q, key, student)
}

func (a *Aligner) observeQuestion(outcome model.Outcome, elapsed time.Duration) {
	if a.observer != nil {
		a.observer.ObserveQuestion(a.evaluator.Name(), outcome, elapsed)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
