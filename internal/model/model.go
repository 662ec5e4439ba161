package model

import "time"

// Question is one item of the question paper.
type Question struct {
	QuestionNumber int     `json:"question_number" validate:"min=1"`
	QuestionText   string  `json:"question_text"`
	MaxMarks       float64 `json:"max_marks" validate:"gt=0"`
}

// AnswerKeyEntry is the reference answer for one question.
type AnswerKeyEntry struct {
	QuestionNumber int    `json:"question_number" validate:"min=1"`
	AnswerText     string `json:"answer_text"`
}

// StudentAnswer is a submitted answer. A question without one is "not answered".
type StudentAnswer struct {
	QuestionNumber int    `json:"question_number" validate:"min=1"`
	StudentAnswer  string `json:"student_answer"`
}

// Outcome records which evaluation path produced a QuestionEvaluation.
type Outcome string

const (
	OutcomeScored       Outcome = "scored"
	OutcomeNotAnswered  Outcome = "not_answered"
	OutcomeKeyMissing   Outcome = "key_missing"
	OutcomeScoringError Outcome = "scoring_error"
)

// QuestionEvaluation is the per-question part of an EvaluationResult.
type QuestionEvaluation struct {
	QuestionNumber  int     `json:"question_number"`
	MaxMarks        float64 `json:"max_marks"`
	MarksObtained   float64 `json:"marks_obtained"`
	SimilarityScore float64 `json:"similarity_score"`
	Feedback        string  `json:"feedback"`
	Outcome         Outcome `json:"outcome"`
}

// EvaluationResult is the outcome of grading one submission.
type EvaluationResult struct {
	TotalMarks       float64              `json:"total_marks"`
	ObtainedMarks    float64              `json:"obtained_marks"`
	Percentage       float64              `json:"percentage"`
	Grade            string               `json:"grade"`
	EvaluationMethod string               `json:"evaluation_method"`
	QuestionWise     []QuestionEvaluation `json:"question_wise"`
}

// Assessment is what an evaluator returns for a single answer.
type Assessment struct {
	Score    float64 `json:"score"`
	Marks    float64 `json:"marks"`
	Feedback string  `json:"feedback"`
}

// Evaluation is a stored EvaluationResult for one student.
type Evaluation struct {
	ID          string           `json:"id"`
	StudentName string           `json:"student_name"`
	CreatedAt   time.Time        `json:"created_at"`
	Result      EvaluationResult `json:"result"`
}

// Status describes what the grading service currently has loaded.
type Status struct {
	QuestionPaperLoaded bool    `json:"question_paper_loaded"`
	AnswerKeyLoaded     bool    `json:"answer_key_loaded"`
	QuestionsCount      int     `json:"questions_count"`
	AnswersCount        int     `json:"answers_count"`
	TotalMarks          float64 `json:"total_marks"`
	Evaluator           string  `json:"evaluator"`
	OCRAvailable        bool    `json:"ocr_available"`
}
