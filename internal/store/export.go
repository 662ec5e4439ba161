package store

import (
	"fmt"

	"github.com/pavelanni/answergrader/internal/model"
)

// Export builds the JSON export of all stored evaluations. Empty fields of
// info fall back to the exam information saved in metadata.
func (s *Store) Export(info model.ExamInfo) (model.EvaluationExport, error) {
	saved, err := s.GetExamInfo()
	if err != nil {
		return model.EvaluationExport{}, fmt.Errorf("read exam info: %w", err)
	}
	if info.ExamID == "" {
		info.ExamID = saved.ExamID
	}
	if info.Subject == "" {
		info.Subject = saved.Subject
	}
	if info.Date == "" {
		info.Date = saved.Date
	}

	questions, err := s.ListQuestions()
	if err != nil {
		return model.EvaluationExport{}, fmt.Errorf("list questions: %w", err)
	}
	results, err := s.ListEvaluations()
	if err != nil {
		return model.EvaluationExport{}, fmt.Errorf("list evaluations: %w", err)
	}

	var total float64
	for _, q := range questions {
		total += q.MaxMarks
	}
	var evaluator string
	if len(results) > 0 {
		evaluator = results[len(results)-1].Result.EvaluationMethod
	}

	return model.EvaluationExport{
		ExamID:     info.ExamID,
		Subject:    info.Subject,
		Date:       info.Date,
		Evaluator:  evaluator,
		TotalMarks: total,
		Questions:  questions,
		Results:    results,
	}, nil
}
