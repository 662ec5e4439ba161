// Package report renders stored evaluations as localized documents.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pavelanni/answergrader/internal/i18n"
	"github.com/pavelanni/answergrader/internal/model"
)

// Format selects the document layout.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "text", "txt", "markdown" and "md".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Render writes e to w. Labels are translated with the localizer in ctx.
func Render(ctx context.Context, w io.Writer, e model.Evaluation, f Format) error {
	switch f {
	case FormatMarkdown:
		return renderMarkdown(ctx, w, e)
	case FormatText:
		return renderText(ctx, w, e)
	}
	return fmt.Errorf("unknown report format %q", f)
}

type summaryLine struct{ label, value string }

func summary(ctx context.Context, e model.Evaluation) []summaryLine {
	r := e.Result
	lines := []summaryLine{
		{i18n.T(ctx, "Student"), e.StudentName},
		{i18n.T(ctx, "Evaluated"), e.CreatedAt.Format("2006-01-02 15:04")},
		{i18n.T(ctx, "Method"), r.EvaluationMethod},
		{i18n.T(ctx, "TotalMarks"), num(r.TotalMarks)},
		{i18n.T(ctx, "ObtainedMarks"), num(r.ObtainedMarks)},
		{i18n.T(ctx, "Percentage"), num(r.Percentage) + "%"},
		{i18n.T(ctx, "Grade"), r.Grade},
	}
	if e.StudentName == "" {
		lines = lines[1:]
	}
	return lines
}

func renderText(ctx context.Context, w io.Writer, e model.Evaluation) error {
	title := i18n.T(ctx, "ReportTitle")
	fmt.Fprintf(w, "%s\n%s\n%s\n\n", title, strings.Repeat("=", len([]rune(title))), i18n.Td(ctx, "EvaluationID", map[string]any{"ID": e.ID}))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range summary(ctx, e) {
		fmt.Fprintf(tw, "%s:\t%s\n", l.label, l.value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s\n", i18n.T(ctx, "QuestionWise"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
		i18n.T(ctx, "Question"), i18n.T(ctx, "Marks"), i18n.T(ctx, "MaxMarks"), i18n.T(ctx, "Similarity"), i18n.T(ctx, "Feedback"))
	for _, q := range e.Result.QuestionWise {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			q.QuestionNumber, num(q.MarksObtained), num(q.MaxMarks), strconv.FormatFloat(q.SimilarityScore, 'f', 3, 64), q.Feedback)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n", footer(ctx, e))
	return err
}

func renderMarkdown(ctx context.Context, w io.Writer, e model.Evaluation) error {
	fmt.Fprintf(w, "# %s\n\n_%s_\n\n", i18n.T(ctx, "ReportTitle"), i18n.Td(ctx, "EvaluationID", map[string]any{"ID": e.ID}))
	for _, l := range summary(ctx, e) {
		fmt.Fprintf(w, "- **%s:** %s\n", l.label, mdEscape(l.value))
	}

	fmt.Fprintf(w, "\n## %s\n\n", i18n.T(ctx, "QuestionWise"))
	fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n|---:|---:|---:|---:|---|\n",
		i18n.T(ctx, "Question"), i18n.T(ctx, "Marks"), i18n.T(ctx, "MaxMarks"), i18n.T(ctx, "Similarity"), i18n.T(ctx, "Feedback"))
	for _, q := range e.Result.QuestionWise {
		fmt.Fprintf(w, "| %d | %s | %s | %s | %s |\n",
			q.QuestionNumber, num(q.MarksObtained), num(q.MaxMarks), strconv.FormatFloat(q.SimilarityScore, 'f', 3, 64), mdEscape(q.Feedback))
	}

	_, err := fmt.Fprintf(w, "\n%s\n", footer(ctx, e))
	return err
}

func footer(ctx context.Context, e model.Evaluation) string {
	unanswered := 0
	for _, q := range e.Result.QuestionWise {
		if q.Outcome == model.OutcomeNotAnswered {
			unanswered++
		}
	}
	s := i18n.Tp(ctx, "QuestionsEvaluated", len(e.Result.QuestionWise))
	if unanswered > 0 {
		s += " " + i18n.Tp(ctx, "Unanswered", unanswered)
	}
	return s
}

// num formats marks without trailing zeros: 7, 6.5, 43.33.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
