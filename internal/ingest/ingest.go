// Package ingest decodes and validates question papers, answer keys and
// student submissions, and splits OCR text into numbered answers.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/answergrader/internal/model"
)

var validate = validator.New()

// LoadQuestions decodes a JSON array of questions.
func LoadQuestions(r io.Reader) ([]model.Question, error) {
	var qs []model.Question
	if err := decode(r, &qs); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if err := ValidateQuestions(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// LoadAnswerKey decodes a JSON array of answer key entries.
func LoadAnswerKey(r io.Reader) ([]model.AnswerKeyEntry, error) {
	var key []model.AnswerKeyEntry
	if err := decode(r, &key); err != nil {
		return nil, fmt.Errorf("decode answer key: %w", err)
	}
	if err := ValidateAnswerKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// LoadSubmission decodes one student's submission.
func LoadSubmission(r io.Reader) (model.Submission, error) {
	var s model.Submission
	if err := decode(r, &s); err != nil {
		return model.Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	if err := ValidateSubmission(s); err != nil {
		return model.Submission{}, err
	}
	return s, nil
}

// LoadQuestionsFile reads questions from path.
func LoadQuestionsFile(path string) ([]model.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	qs, err := LoadQuestions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return qs, nil
}

// LoadAnswerKeyFile reads an answer key from path.
func LoadAnswerKeyFile(path string) ([]model.AnswerKeyEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	key, err := LoadAnswerKey(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// LoadSubmissionFile reads a submission from path.
func LoadSubmissionFile(path string) (model.Submission, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Submission{}, err
	}
	defer f.Close()
	s, err := LoadSubmission(f)
	if err != nil {
		return model.Submission{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ValidateQuestions checks field constraints and that numbers are unique.
func ValidateQuestions(qs []model.Question) error {
	seen := make(map[int]bool, len(qs))
	for i, q := range qs {
		if err := validate.Struct(q); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		if seen[q.QuestionNumber] {
			return fmt.Errorf("duplicate question number %d", q.QuestionNumber)
		}
		seen[q.QuestionNumber] = true
	}
	return nil
}

// ValidateAnswerKey checks field constraints and that numbers are unique.
func ValidateAnswerKey(key []model.AnswerKeyEntry) error {
	seen := make(map[int]bool, len(key))
	for i, k := range key {
		if err := validate.Struct(k); err != nil {
			return fmt.Errorf("answer key entry %d: %w", i+1, err)
		}
		if seen[k.QuestionNumber] {
			return fmt.Errorf("duplicate answer key entry for question %d", k.QuestionNumber)
		}
		seen[k.QuestionNumber] = true
	}
	return nil
}

// ValidateSubmission checks field constraints and that each question is
// answered at most once.
func ValidateSubmission(s model.Submission) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("submission: %w", err)
	}
	seen := make(map[int]bool, len(s.Answers))
	for _, a := range s.Answers {
		if seen[a.QuestionNumber] {
			return fmt.Errorf("question %d answered more than once", a.QuestionNumber)
		}
		seen[a.QuestionNumber] = true
	}
	return nil
}

func decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	return nil
}
