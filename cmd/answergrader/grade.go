package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/answergrader/internal/config"
	"github.com/pavelanni/answergrader/internal/evaluate"
	appI18n "github.com/pavelanni/answergrader/internal/i18n"
	"github.com/pavelanni/answergrader/internal/ingest"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/report"
	"github.com/pavelanni/answergrader/internal/store"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade SUBMISSION.json...",
		Short: "Grade submission files against a question paper and answer key",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGrade,
	}
	addEvaluatorFlags(cmd)
	f := cmd.Flags()
	f.StringP("questions", "q", "", "Question paper JSON file (required)")
	f.StringP("answer-key", "k", "", "Answer key JSON file (required)")
	f.StringP("format", "f", "json", "Output format (json, text, markdown)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.IntP("parallel", "p", 4, "Submissions graded concurrently")
	f.String("db", "", "SQLite database to record evaluations in (empty: do not record)")

	_ = cmd.MarkFlagRequired("questions")
	_ = cmd.MarkFlagRequired("answer-key")

	return cmd
}

func runGrade(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	questions, err := ingest.LoadQuestionsFile(v.GetString("questions"))
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	key, err := ingest.LoadAnswerKeyFile(v.GetString("answer-key"))
	if err != nil {
		return fmt.Errorf("load answer key: %w", err)
	}

	format := v.GetString("format")
	var reportFormat report.Format
	if format != "json" {
		if reportFormat, err = report.ParseFormat(format); err != nil {
			return err
		}
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	grading, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load grading config: %w", err)
	}
	evaluator, cleanup, err := buildEvaluator(ctx, v, grading)
	if err != nil {
		return err
	}
	defer cleanup()
	aligner := evaluate.NewAligner(evaluator, grading)

	evals := make([]model.Evaluation, len(args))
	g, gctx := errgroup.WithContext(ctx)
	if n := v.GetInt("parallel"); n > 0 {
		g.SetLimit(n)
	}
	for i, path := range args {
		g.Go(func() error {
			sub, err := ingest.LoadSubmissionFile(path)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			result, err := aligner.Evaluate(gctx, questions, key, sub.Answers)
			if err != nil {
				return fmt.Errorf("grade %s: %w", path, err)
			}
			evals[i] = model.Evaluation{
				ID:          uuid.NewString(),
				StudentName: sub.StudentName,
				CreatedAt:   time.Now().UTC(),
				Result:      result,
			}
			slog.Info("graded submission",
				"path", path,
				"student", sub.StudentName,
				"percentage", result.Percentage,
				"grade", result.Grade,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if path := v.GetString("db"); path != "" {
		if err := recordEvaluations(path, evals); err != nil {
			return err
		}
	}

	w, closeOut, err := openOutput(v.GetString("output"))
	if err != nil {
		return err
	}
	defer closeOut()

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(evals)
	}

	rctx := appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))
	for i, e := range evals {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := report.Render(rctx, w, e, reportFormat); err != nil {
			return fmt.Errorf("render report: %w", err)
		}
	}
	return nil
}

func recordEvaluations(path string, evals []model.Evaluation) error {
	db, err := store.New(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	for _, e := range evals {
		if err := db.SaveEvaluation(e); err != nil {
			return fmt.Errorf("save evaluation for %s: %w", e.StudentName, err)
		}
	}
	slog.Info("recorded evaluations", "db", path, "count", len(evals))
	return nil
}
