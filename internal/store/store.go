package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/answergrader/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists the question paper, the answer key and evaluation history in
// SQLite. Questions and key entries are keyed by question number.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS questions (
		question_number INTEGER PRIMARY KEY,
		question_text TEXT NOT NULL DEFAULT '',
		max_marks REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS answer_key (
		question_number INTEGER PRIMARY KEY,
		answer_text TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		student_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		evaluation_method TEXT NOT NULL,
		percentage REAL NOT NULL,
		grade TEXT NOT NULL,
		result TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		imported_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ReplaceQuestions swaps the whole question paper in one transaction.
func (s *Store) ReplaceQuestions(qs []model.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM questions`); err != nil {
		return err
	}
	for _, q := range qs {
		if _, err := tx.Exec(
			`INSERT INTO questions (question_number, question_text, max_marks) VALUES (?, ?, ?)`,
			q.QuestionNumber, q.QuestionText, q.MaxMarks,
		); err != nil {
			return fmt.Errorf("insert question %d: %w", q.QuestionNumber, err)
		}
	}
	return tx.Commit()
}

// ListQuestions returns the question paper ordered by question number.
func (s *Store) ListQuestions() ([]model.Question, error) {
	rows, err := s.db.Query(`SELECT question_number, question_text, max_marks FROM questions ORDER BY question_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.QuestionNumber, &q.QuestionText, &q.MaxMarks); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns one question or sql.ErrNoRows.
func (s *Store) GetQuestion(number int) (model.Question, error) {
	var q model.Question
	err := s.db.QueryRow(
		`SELECT question_number, question_text, max_marks FROM questions WHERE question_number = ?`, number,
	).Scan(&q.QuestionNumber, &q.QuestionText, &q.MaxMarks)
	return q, err
}

// QuestionCount returns the number of questions on the paper.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// ReplaceAnswerKey swaps the whole answer key in one transaction.
func (s *Store) ReplaceAnswerKey(key []model.AnswerKeyEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM answer_key`); err != nil {
		return err
	}
	for _, k := range key {
		if _, err := tx.Exec(
			`INSERT INTO answer_key (question_number, answer_text) VALUES (?, ?)`,
			k.QuestionNumber, k.AnswerText,
		); err != nil {
			return fmt.Errorf("insert answer %d: %w", k.QuestionNumber, err)
		}
	}
	return tx.Commit()
}

// ListAnswerKey returns the answer key ordered by question number.
func (s *Store) ListAnswerKey() ([]model.AnswerKeyEntry, error) {
	rows, err := s.db.Query(`SELECT question_number, answer_text FROM answer_key ORDER BY question_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var key []model.AnswerKeyEntry
	for rows.Next() {
		var k model.AnswerKeyEntry
		if err := rows.Scan(&k.QuestionNumber, &k.AnswerText); err != nil {
			return nil, err
		}
		key = append(key, k)
	}
	return key, rows.Err()
}

// AnswerKeyCount returns the number of answer key entries.
func (s *Store) AnswerKeyCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM answer_key`).Scan(&count)
	return count, err
}

// Clear removes the question paper, the answer key and the import records.
// Evaluation history is kept.
func (s *Store) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"questions", "answer_key", "imported_files"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Status reports what is currently loaded. Evaluator and OCR fields are
// left for the caller to fill in.
func (s *Store) Status() (model.Status, error) {
	var st model.Status
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(max_marks), 0) FROM questions`).Scan(&st.QuestionsCount, &st.TotalMarks)
	if err != nil {
		return st, err
	}
	if st.AnswersCount, err = s.AnswerKeyCount(); err != nil {
		return st, err
	}
	st.QuestionPaperLoaded = st.QuestionsCount > 0
	st.AnswerKeyLoaded = st.AnswersCount > 0
	return st, nil
}

// SaveEvaluation stores an evaluation. The result is kept as JSON.
func (s *Store) SaveEvaluation(e model.Evaluation) error {
	data, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err = s.db.Exec(
		`INSERT INTO evaluations (id, student_name, created_at, evaluation_method, percentage, grade, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudentName, e.CreatedAt.UTC(), e.Result.EvaluationMethod, e.Result.Percentage, e.Result.Grade, string(data),
	)
	return err
}

// GetEvaluation returns one evaluation or sql.ErrNoRows.
func (s *Store) GetEvaluation(id string) (model.Evaluation, error) {
	row := s.db.QueryRow(
		`SELECT id, student_name, created_at, result FROM evaluations WHERE id = ?`, id,
	)
	return scanEvaluation(row)
}

// ListEvaluations returns all evaluations, oldest first.
func (s *Store) ListEvaluations() ([]model.Evaluation, error) {
	rows, err := s.db.Query(`SELECT id, student_name, created_at, result FROM evaluations ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var evals []model.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (model.Evaluation, error) {
	var e model.Evaluation
	var result string
	if err := row.Scan(&e.ID, &e.StudentName, &e.CreatedAt, &result); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(result), &e.Result); err != nil {
		return e, fmt.Errorf("decode evaluation %s: %w", e.ID, err)
	}
	return e, nil
}
