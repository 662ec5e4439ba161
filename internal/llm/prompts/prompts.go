// Package prompts renders the grading prompts sent to language models.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentAnswerRegex = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	answerKeyRegex     = regexp.MustCompile(`(?i)</?\s*answer-key\b[^>]*>`)
)

// maxAnswerRunes bounds the student answer embedded in a prompt.
const maxAnswerRunes = 10000

// Variant selects how strictly the model is asked to grade.
type Variant string

const (
	// VariantStrict expects precise terminology and complete coverage.
	VariantStrict Variant = "strict"
	// VariantStandard grades concept understanding.
	VariantStandard Variant = "standard"
	// VariantLenient gives credit for partially correct reasoning.
	VariantLenient Variant = "lenient"
)

var variants = []Variant{VariantStrict, VariantStandard, VariantLenient}

// IsValidVariant reports whether v names a known variant.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if Variant(v) == known {
			return true
		}
	}
	return false
}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Variant]*template.Template
)

// Data holds the template inputs for one answer.
type Data struct {
	QuestionText  string
	MaxMarks      string
	AnswerKey     string
	StudentAnswer string
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[Variant]*template.Template, len(variants))
		for _, v := range variants {
			name := "templates/evaluate_" + string(v) + ".txt"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[v] = tmpl
		}
	})
	return loadErr
}

// Build renders the evaluation prompt for one answer.
func Build(variant Variant, questionText string, maxMarks float64, answerKey, studentAnswer string) (string, error) {
	if err := load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := Data{
		QuestionText:  strings.TrimSpace(questionText),
		MaxMarks:      strconv.FormatFloat(maxMarks, 'f', -1, 64),
		AnswerKey:     strings.TrimSpace(answerKeyRegex.ReplaceAllString(answerKey, "")),
		StudentAnswer: sanitizeAnswer(studentAnswer),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sanitizeAnswer strips tags a student could use to break out of the answer
// block and truncates very long answers.
func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = answerKeyRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
