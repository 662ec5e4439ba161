package model

// EvaluationExport is the top-level JSON structure for evaluation history export.
type EvaluationExport struct {
	ExamID     string       `json:"exam_id"`
	Subject    string       `json:"subject"`
	Date       string       `json:"date"`
	Evaluator  string       `json:"evaluator"`
	TotalMarks float64      `json:"total_marks"`
	Questions  []Question   `json:"questions"`
	Results    []Evaluation `json:"results"`
}

// Submission is one student's answer set as accepted by the API and the CLI.
type Submission struct {
	StudentName string          `json:"student_name"`
	Answers     []StudentAnswer `json:"answers" validate:"dive"`
}

// ExamInfo identifies the exam an export belongs to.
type ExamInfo struct {
	ExamID  string `json:"exam_id"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}
