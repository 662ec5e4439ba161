package model

import "fmt"

// Input collections that an evaluation requires.
const (
	InputQuestionPaper = "question paper"
	InputAnswerKey     = "answer key"
)

// MissingInputError reports a required input collection that was not loaded.
// Input is InputQuestionPaper or InputAnswerKey.
type MissingInputError struct {
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("no %s loaded", e.Input)
}

// EvaluatorUnavailableError reports an external evaluator that could not be
// reached or did not answer in time.
type EvaluatorUnavailableError struct {
	Evaluator string
	Err       error
}

func (e *EvaluatorUnavailableError) Error() string {
	return fmt.Sprintf("evaluator %s unavailable: %v", e.Evaluator, e.Err)
}

func (e *EvaluatorUnavailableError) Unwrap() error { return e.Err }

// MalformedEvaluatorResponseError reports a structured evaluator response that
// could not be decoded.
type MalformedEvaluatorResponseError struct {
	Raw string
	Err error
}

func (e *MalformedEvaluatorResponseError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return fmt.Sprintf("malformed evaluator response: %v (raw: %s)", e.Err, raw)
}

func (e *MalformedEvaluatorResponseError) Unwrap() error { return e.Err }
