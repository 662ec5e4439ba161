package evaluate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/answergrader/internal/config"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/scoring"
)

const (
	gravityKey     = "Gravity is a force that attracts two bodies with mass."
	gravityStudent = "Gravity pulls objects with mass toward each other."
)

var gravityQuestion = model.Question{QuestionNumber: 1, QuestionText: "What is gravity?", MaxMarks: 10}

// spyEvaluator records calls and returns canned results per question.
type spyEvaluator struct {
	mu      sync.Mutex
	calls   []int
	results map[int]model.Assessment
	errs    map[int]error
	panics  map[int]bool
}

func (s *spyEvaluator) Name() string { return "spy" }

func (s *spyEvaluator) EvaluateAnswer(_ context.Context, q model.Question, _, _ string) (model.Assessment, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q.QuestionNumber)
	s.mu.Unlock()
	if s.panics[q.QuestionNumber] {
		panic("boom")
	}
	if err := s.errs[q.QuestionNumber]; err != nil {
		return model.Assessment{}, err
	}
	return s.results[q.QuestionNumber], nil
}

func statisticalAligner() *Aligner {
	g := config.Default()
	return NewAligner(NewStatistical(g), g)
}

func TestEvaluateMissingInputs(t *testing.T) {
	a := statisticalAligner()
	key := []model.AnswerKeyEntry{{QuestionNumber: 1, AnswerText: gravityKey}}

	_, err := a.Evaluate(context.Background(), nil, key, nil)
	var missing *model.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, model.InputQuestionPaper, missing.Input)
	assert.EqualError(t, err, "no question paper loaded")

	_, err = a.Evaluate(context.Background(), []model.Question{gravityQuestion}, nil, nil)
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, model.InputAnswerKey, missing.Input)
	assert.EqualError(t, err, "no answer key loaded")
}

func TestEvaluateGravityScenario(t *testing.T) {
	a := statisticalAligner()
	res, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion},
		[]model.AnswerKeyEntry{{QuestionNumber: 1, AnswerText: gravityKey}},
		[]model.StudentAnswer{{QuestionNumber: 1, StudentAnswer: gravityStudent}},
	)
	require.NoError(t, err)
	require.Len(t, res.QuestionWise, 1)

	sim := scoring.NewDefaultScorer().Similarity(gravityKey, gravityStudent)
	qe := res.QuestionWise[0]
	assert.Equal(t, model.OutcomeScored, qe.Outcome)
	assert.InDelta(t, sim, qe.SimilarityScore, 0.0005)
	assert.InDelta(t, scoring.DefaultCurve().MarksFor(sim, 10), qe.MarksObtained, 0.005)
	assert.Equal(t, scoring.DefaultFeedback().FeedbackFor(sim), qe.Feedback)
	assert.Greater(t, qe.MarksObtained, 1.0)
	assert.Less(t, qe.MarksObtained, 10.0)
	assert.Equal(t, 10.0, res.TotalMarks)
	assert.Equal(t, "statistical", res.EvaluationMethod)
}

func TestEvaluateNotAnsweredSkipsEvaluator(t *testing.T) {
	spy := &spyEvaluator{}
	a := NewAligner(spy, config.Default())

	res, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion, {QuestionNumber: 2, MaxMarks: 5}},
		[]model.AnswerKeyEntry{{QuestionNumber: 1, AnswerText: gravityKey}, {QuestionNumber: 2, AnswerText: "x"}},
		[]model.StudentAnswer{{QuestionNumber: 2, StudentAnswer: "   "}},
	)
	require.NoError(t, err)
	assert.Empty(t, spy.calls)
	for _, qe := range res.QuestionWise {
		assert.Equal(t, 0.0, qe.MarksObtained)
		assert.Equal(t, 0.0, qe.SimilarityScore)
		assert.Equal(t, FeedbackNotAnswered, qe.Feedback)
		assert.Equal(t, model.OutcomeNotAnswered, qe.Outcome)
	}
	assert.Equal(t, 15.0, res.TotalMarks)
	assert.Equal(t, 0.0, res.Percentage)
	assert.Equal(t, "F", res.Grade)
}

func TestEvaluateBlankAnswersAreNotAnswered(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"whitespace", "  \t\n "},
		{"punctuation only", "?!..."},
		{"symbols and spaces", " -- ** "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyEvaluator{}
			res, err := NewAligner(spy, config.Default()).Evaluate(context.Background(),
				[]model.Question{gravityQuestion},
				[]model.AnswerKeyEntry{{QuestionNumber: 1, AnswerText: gravityKey}},
				[]model.StudentAnswer{{QuestionNumber: 1, StudentAnswer: tt.answer}},
			)
			require.NoError(t, err)
			assert.Empty(t, spy.calls)
			qe := res.QuestionWise[0]
			assert.Equal(t, 0.0, qe.MarksObtained)
			assert.Equal(t, 0.0, qe.SimilarityScore)
			assert.Equal(t, FeedbackNotAnswered, qe.Feedback)
			assert.Equal(t, model.OutcomeNotAnswered, qe.Outcome)
		})
	}
}

func TestEvaluatePunctuationOnlyGetsNoFloorMarks(t *testing.T) {
	res, err := statisticalAligner().Evaluate(context.Background(),
		[]model.Question{gravityQuestion, {QuestionNumber: 2, MaxMarks: 10}},
		[]model.AnswerKeyEntry{{QuestionNumber: 1, AnswerText: gravityKey}, {QuestionNumber: 2, AnswerText: gravityKey}},
		[]model.StudentAnswer{{QuestionNumber: 1, StudentAnswer: "   "}, {QuestionNumber: 2, StudentAnswer: "?!..."}},
	)
	require.NoError(t, err)
	assert.Equal(t, model.QuestionEvaluation{
		QuestionNumber: 1, MaxMarks: 10, Feedback: FeedbackNotAnswered, Outcome: model.OutcomeNotAnswered,
	}, res.QuestionWise[0])
	assert.Equal(t, model.QuestionEvaluation{
		QuestionNumber: 2, MaxMarks: 10, Feedback: FeedbackNotAnswered, Outcome: model.OutcomeNotAnswered,
	}, res.QuestionWise[1])
	assert.Equal(t, 0.0, res.ObtainedMarks)
}

func TestEvaluateKeyMissing(t *testing.T) {
	spy := &spyEvaluator{}
	a := NewAligner(spy, config.Default())

	res, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion, {QuestionNumber: 2, MaxMarks: 4}},
		[]model.AnswerKeyEntry{{QuestionNumber: 2, AnswerText: "unused"}},
		[]model.StudentAnswer{{QuestionNumber: 1, StudentAnswer: "some answer text"}},
	)
	require.NoError(t, err)
	assert.Empty(t, spy.calls)

	qe := res.QuestionWise[0]
	assert.Equal(t, 7.0, qe.MarksObtained)
	assert.Equal(t, 0.7, qe.SimilarityScore)
	assert.Contains(t, qe.Feedback, "Answer key not available")
	assert.Equal(t, model.OutcomeKeyMissing, qe.Outcome)
	assert.Equal(t, 14.0, res.TotalMarks)
	assert.Equal(t, 50.0, res.Percentage)
	assert.Equal(t, "C", res.Grade)
}

func TestEvaluateKeyMissingFractionConfigurable(t *testing.T) {
	g := config.Default()
	g.KeyMissingFraction = 0.5
	a := NewAligner(&spyEvaluator{}, g)
	res, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion},
		[]model.AnswerKeyEntry{{QuestionNumber: 9, AnswerText: "other"}},
		[]model.StudentAnswer{{QuestionNumber: 1, StudentAnswer: "attempt"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.QuestionWise[0].MarksObtained)
}

func TestEvaluateOrderingAndRounding(t *testing.T) {
	spy := &spyEvaluator{results: map[int]model.Assessment{
		1: {Score: 0.12345, Marks: 1.0 / 3, Feedback: "one"},
		2: {Score: 0.98765, Marks: 2.0 / 3, Feedback: "two"},
		3: {Score: 0.5, Marks: 1.0 / 3, Feedback: "three"},
	}}
	a := NewAligner(spy, config.Default())
	questions := []model.Question{
		{QuestionNumber: 3, MaxMarks: 1},
		{QuestionNumber: 1, MaxMarks: 1},
		{QuestionNumber: 2, MaxMarks: 1},
	}
	key := []model.AnswerKeyEntry{{1, "a"}, {2, "b"}, {3, "c"}}
	answers := []model.StudentAnswer{{3, "c"}, {2, "b"}, {1, "a"}}

	res, err := a.Evaluate(context.Background(), questions, key, answers)
	require.NoError(t, err)
	require.Len(t, res.QuestionWise, 3)
	for i, qe := range res.QuestionWise {
		assert.Equal(t, i+1, qe.QuestionNumber)
	}
	assert.Equal(t, 0.33, res.QuestionWise[0].MarksObtained)
	assert.Equal(t, 0.123, res.QuestionWise[0].SimilarityScore)
	assert.Equal(t, 0.988, res.QuestionWise[1].SimilarityScore)
	// unrounded marks are summed: 1/3 + 2/3 + 1/3
	assert.Equal(t, 1.33, res.ObtainedMarks)
	assert.Equal(t, 44.44, res.Percentage)
	assert.Equal(t, "D", res.Grade)
	assert.Equal(t, "spy", res.EvaluationMethod)
}

func TestEvaluateClampsEvaluatorOutput(t *testing.T) {
	spy := &spyEvaluator{results: map[int]model.Assessment{
		1: {Score: 1.7, Marks: 25, Feedback: "generous"},
	}}
	a := NewAligner(spy, config.Default())
	res, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion},
		[]model.AnswerKeyEntry{{1, gravityKey}},
		[]model.StudentAnswer{{1, gravityStudent}},
	)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.QuestionWise[0].MarksObtained)
	assert.Equal(t, 1.0, res.QuestionWise[0].SimilarityScore)
}

func TestEvaluateZeroTotalMarks(t *testing.T) {
	spy := &spyEvaluator{}
	a := NewAligner(spy, config.Default())
	res, err := a.Evaluate(context.Background(),
		[]model.Question{{QuestionNumber: 1, MaxMarks: 0}},
		[]model.AnswerKeyEntry{{1, "key"}},
		[]model.StudentAnswer{{1, "answer"}},
	)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Percentage)
	assert.Equal(t, 0.0, res.TotalMarks)
}

func TestEvaluatePerQuestionFailuresAreIsolated(t *testing.T) {
	spy := &spyEvaluator{
		results: map[int]model.Assessment{3: {Score: 1, Marks: 2, Feedback: "ok"}},
		errs:    map[int]error{1: errors.New("bad input")},
		panics:  map[int]bool{2: true},
	}
	a := NewAligner(spy, config.Default())
	questions := []model.Question{{1, "", 2}, {2, "", 2}, {3, "", 2}}
	key := []model.AnswerKeyEntry{{1, "k"}, {2, "k"}, {3, "k"}}
	answers := []model.StudentAnswer{{1, "s"}, {2, "s"}, {3, "s"}}

	res, err := a.Evaluate(context.Background(), questions, key, answers)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, spy.calls)
	for _, qe := range res.QuestionWise[:2] {
		assert.Equal(t, model.OutcomeScoringError, qe.Outcome)
		assert.Equal(t, 0.0, qe.MarksObtained)
		assert.Equal(t, FeedbackScoringError, qe.Feedback)
	}
	assert.Equal(t, 2.0, res.QuestionWise[2].MarksObtained)
	assert.Equal(t, 2.0, res.ObtainedMarks)
}

func TestEvaluateAbortsWhenEvaluatorUnavailable(t *testing.T) {
	unavailable := &model.EvaluatorUnavailableError{Evaluator: "spy", Err: context.DeadlineExceeded}
	spy := &spyEvaluator{errs: map[int]error{1: unavailable}}
	a := NewAligner(spy, config.Default())
	_, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion},
		[]model.AnswerKeyEntry{{1, gravityKey}},
		[]model.StudentAnswer{{1, gravityStudent}},
	)
	var target *model.EvaluatorUnavailableError
	require.ErrorAs(t, err, &target)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFallbackEvaluator(t *testing.T) {
	primary := &spyEvaluator{errs: map[int]error{
		1: &model.EvaluatorUnavailableError{Evaluator: "spy", Err: errors.New("connection refused")},
	}}
	g := config.Default()
	fb := &FallbackEvaluator{Primary: primary, Secondary: NewStatistical(g)}
	assert.Equal(t, "spy (fallback: statistical)", fb.Name())

	a := NewAligner(fb, g)
	res, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion},
		[]model.AnswerKeyEntry{{1, gravityKey}},
		[]model.StudentAnswer{{1, gravityKey}},
	)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.QuestionWise[0].MarksObtained)
	assert.Equal(t, model.OutcomeScored, res.QuestionWise[0].Outcome)
}

func TestFallbackEvaluatorPassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	fb := &FallbackEvaluator{Primary: &spyEvaluator{errs: map[int]error{1: boom}}, Secondary: &spyEvaluator{}}
	_, err := fb.EvaluateAnswer(context.Background(), gravityQuestion, "k", "s")
	assert.ErrorIs(t, err, boom)
}

type recordingObserver struct {
	outcomes    []model.Outcome
	evaluations int
}

func (r *recordingObserver) ObserveQuestion(_ string, o model.Outcome, _ time.Duration) {
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingObserver) ObserveEvaluation(string, float64, time.Duration) { r.evaluations++ }

func TestEvaluateReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	g := config.Default()
	a := NewAligner(NewStatistical(g), g, WithObserver(obs))
	_, err := a.Evaluate(context.Background(),
		[]model.Question{gravityQuestion, {QuestionNumber: 2, MaxMarks: 1}},
		[]model.AnswerKeyEntry{{1, gravityKey}},
		[]model.StudentAnswer{{1, gravityStudent}},
	)
	require.NoError(t, err)
	assert.Equal(t, []model.Outcome{model.OutcomeScored, model.OutcomeNotAnswered}, obs.outcomes)
	assert.Equal(t, 1, obs.evaluations)
}

func TestEvaluateConcurrentSubmissions(t *testing.T) {
	a := statisticalAligner()
	questions := []model.Question{gravityQuestion}
	key := []model.AnswerKeyEntry{{1, gravityKey}}

	var wg sync.WaitGroup
	results := make([]model.EvaluationResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := a.Evaluate(context.Background(), questions, key, []model.StudentAnswer{{1, gravityStudent}})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()
	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}
