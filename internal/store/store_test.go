package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/answergrader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testQuestions() []model.Question {
	return []model.Question{
		{QuestionNumber: 2, QuestionText: "Define inertia.", MaxMarks: 5},
		{QuestionNumber: 1, QuestionText: "What is gravity?", MaxMarks: 10},
	}
}

func testEvaluation(id, student string, at time.Time, pct float64) model.Evaluation {
	return model.Evaluation{
		ID:          id,
		StudentName: student,
		CreatedAt:   at,
		Result: model.EvaluationResult{
			TotalMarks:       15,
			ObtainedMarks:    pct * 15 / 100,
			Percentage:       pct,
			Grade:            "B",
			EvaluationMethod: "statistical",
			QuestionWise: []model.QuestionEvaluation{
				{QuestionNumber: 1, MaxMarks: 10, MarksObtained: 6.5, SimilarityScore: 0.512, Feedback: "Average answer. Missing several key points.", Outcome: model.OutcomeScored},
				{QuestionNumber: 2, MaxMarks: 5, Feedback: "Not answered", Outcome: model.OutcomeNotAnswered},
			},
		},
	}
}

func TestQuestions(t *testing.T) {
	s := newTestStore(t)

	count, err := s.QuestionCount()
	if err != nil {
		t.Fatalf("QuestionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 questions, got %d", count)
	}

	if err := s.ReplaceQuestions(testQuestions()); err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	list, err := s.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(list) != 2 || list[0].QuestionNumber != 1 || list[1].QuestionNumber != 2 {
		t.Fatalf("expected questions ordered 1, 2; got %+v", list)
	}
	if list[0].MaxMarks != 10 || list[0].QuestionText != "What is gravity?" {
		t.Errorf("unexpected question: %+v", list[0])
	}

	q, err := s.GetQuestion(2)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.QuestionText != "Define inertia." {
		t.Errorf("expected 'Define inertia.', got %q", q.QuestionText)
	}
	if _, err := s.GetQuestion(99); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	// Replacing drops questions that are no longer on the paper.
	if err := s.ReplaceQuestions([]model.Question{{QuestionNumber: 3, MaxMarks: 2}}); err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	count, _ = s.QuestionCount()
	if count != 1 {
		t.Errorf("expected 1 question after replace, got %d", count)
	}
}

func TestReplaceQuestionsDuplicateRollsBack(t *testing.T) {
	s := newTestStore(t)
	if err := s.ReplaceQuestions(testQuestions()); err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	err := s.ReplaceQuestions([]model.Question{{QuestionNumber: 1, MaxMarks: 1}, {QuestionNumber: 1, MaxMarks: 2}})
	if err == nil {
		t.Fatal("expected error for duplicate question number")
	}
	count, _ := s.QuestionCount()
	if count != 2 {
		t.Errorf("failed replace should keep the old paper, got %d questions", count)
	}
}

func TestAnswerKey(t *testing.T) {
	s := newTestStore(t)
	key := []model.AnswerKeyEntry{
		{QuestionNumber: 2, AnswerText: "Resistance to change in motion."},
		{QuestionNumber: 1, AnswerText: "Gravity is a force that attracts two bodies with mass."},
	}
	if err := s.ReplaceAnswerKey(key); err != nil {
		t.Fatalf("ReplaceAnswerKey: %v", err)
	}
	got, err := s.ListAnswerKey()
	if err != nil {
		t.Fatalf("ListAnswerKey: %v", err)
	}
	if len(got) != 2 || got[0].QuestionNumber != 1 {
		t.Fatalf("unexpected key: %+v", got)
	}
	count, _ := s.AnswerKeyCount()
	if count != 2 {
		t.Errorf("expected 2 entries, got %d", count)
	}
}

func TestStatusAndClear(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.QuestionPaperLoaded || st.AnswerKeyLoaded || st.TotalMarks != 0 {
		t.Errorf("empty store status: %+v", st)
	}

	_ = s.ReplaceQuestions(testQuestions())
	_ = s.ReplaceAnswerKey([]model.AnswerKeyEntry{{QuestionNumber: 1, AnswerText: "x"}})
	_ = s.SetImportedFileHash("questions.json", "abc")
	if err := s.SaveEvaluation(testEvaluation("e1", "Ada", time.Now(), 50)); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}

	st, _ = s.Status()
	if !st.QuestionPaperLoaded || !st.AnswerKeyLoaded {
		t.Errorf("expected both loaded: %+v", st)
	}
	if st.QuestionsCount != 2 || st.AnswersCount != 1 || st.TotalMarks != 15 {
		t.Errorf("unexpected counts: %+v", st)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	st, _ = s.Status()
	if st.QuestionPaperLoaded || st.AnswerKeyLoaded {
		t.Errorf("expected nothing loaded after clear: %+v", st)
	}
	hash, _ := s.GetImportedFileHash("questions.json")
	if hash != "" {
		t.Errorf("import records should be cleared, got %q", hash)
	}
	evals, _ := s.ListEvaluations()
	if len(evals) != 1 {
		t.Errorf("evaluation history should survive clear, got %d", len(evals))
	}
}

func TestEvaluations(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := s.SaveEvaluation(testEvaluation("b", "Grace", base.Add(time.Minute), 80)); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if err := s.SaveEvaluation(testEvaluation("a", "Ada", base, 43.33)); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if err := s.SaveEvaluation(testEvaluation("a", "Ada", base, 10)); err == nil {
		t.Error("expected error for duplicate id")
	}

	e, err := s.GetEvaluation("a")
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if e.StudentName != "Ada" || !e.CreatedAt.Equal(base) {
		t.Errorf("unexpected evaluation: %+v", e)
	}
	if e.Result.Percentage != 43.33 || len(e.Result.QuestionWise) != 2 {
		t.Errorf("result not round-tripped: %+v", e.Result)
	}
	if e.Result.QuestionWise[1].Outcome != model.OutcomeNotAnswered {
		t.Errorf("outcome = %q", e.Result.QuestionWise[1].Outcome)
	}

	if _, err := s.GetEvaluation("missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	list, err := s.ListEvaluations()
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("expected oldest first [a b], got %+v", list)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestAdminPasswordHash(t *testing.T) {
	s := newTestStore(t)
	hash, err := s.AdminPasswordHash()
	if err != nil || hash != "" {
		t.Fatalf("AdminPasswordHash = %q, %v", hash, err)
	}
	if err := s.SetAdminPasswordHash("$2a$10$x"); err != nil {
		t.Fatalf("SetAdminPasswordHash: %v", err)
	}
	hash, _ = s.AdminPasswordHash()
	if hash != "$2a$10$x" {
		t.Errorf("got %q", hash)
	}
}

func TestExport(t *testing.T) {
	s := newTestStore(t)
	_ = s.ReplaceQuestions(testQuestions())
	if err := s.SetExamInfo(model.ExamInfo{ExamID: "phys-101", Subject: "Physics", Date: "2026-03-01"}); err != nil {
		t.Fatalf("SetExamInfo: %v", err)
	}
	_ = s.SaveEvaluation(testEvaluation("a", "Ada", time.Now(), 60))

	exp, err := s.Export(model.ExamInfo{Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exp.ExamID != "phys-101" || exp.Subject != "Physics" {
		t.Errorf("saved exam info not used: %+v", exp)
	}
	if exp.Date != "2026-03-02" {
		t.Errorf("explicit date should win, got %q", exp.Date)
	}
	if exp.TotalMarks != 15 || len(exp.Questions) != 2 || len(exp.Results) != 1 {
		t.Errorf("unexpected export: %+v", exp)
	}
	if exp.Evaluator != "statistical" {
		t.Errorf("Evaluator = %q", exp.Evaluator)
	}
}
