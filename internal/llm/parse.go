package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/answergrader/internal/model"
)

// Feedback used when a reply carries no usable content.
const (
	FeedbackUnparsable = "Could not parse evaluation response"
	FeedbackMissing    = "No feedback provided"
)

// maxFallbackFeedback caps feedback recovered from free text.
const maxFallbackFeedback = 200

var marksPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(?:marks?|points?)`),
	regexp.MustCompile(`(?i)(?:awarded|given|scored)\s*(\d+\.?\d*)`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*out of`),
}

// number accepts a JSON number or a numeric string.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type modelReply struct {
	ConceptMatchScore *number `json:"concept_match_score"`
	AwardedMarks      *number `json:"awarded_marks"`
	Feedback          *string `json:"feedback"`
}

// cleanJSONBlock removes markdown code fences around a JSON reply.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseAssessment decodes a JSON reply and clamps the score to [0,1] and the
// marks to [0,maxMarks]. It returns *model.MalformedEvaluatorResponseError
// when raw is not a JSON object with at least one of the expected fields.
func ParseAssessment(raw string, maxMarks float64) (model.Assessment, error) {
	var r modelReply
	if err := json.Unmarshal([]byte(cleanJSONBlock(raw)), &r); err != nil {
		return model.Assessment{}, &model.MalformedEvaluatorResponseError{Raw: raw, Err: err}
	}
	if r.ConceptMatchScore == nil && r.AwardedMarks == nil && r.Feedback == nil {
		return model.Assessment{}, &model.MalformedEvaluatorResponseError{
			Raw: raw,
			Err: errors.New("none of concept_match_score, awarded_marks, feedback present"),
		}
	}

	var a model.Assessment
	if r.ConceptMatchScore != nil {
		a.Score = clamp(float64(*r.ConceptMatchScore), 0, 1)
	}
	if r.AwardedMarks != nil {
		a.Marks = clamp(float64(*r.AwardedMarks), 0, maxMarks)
	}
	a.Feedback = FeedbackMissing
	if r.Feedback != nil && strings.TrimSpace(*r.Feedback) != "" {
		a.Feedback = strings.TrimSpace(*r.Feedback)
	}
	return a, nil
}

// FallbackAssessment recovers marks from a free-text reply such as
// "I would give 7 marks. The answer covers ...". The first sentence becomes
// the feedback. With no recognizable marks it awards 0.
func FallbackAssessment(raw string, maxMarks float64) model.Assessment {
	var marks float64
	found := false
	for _, re := range marksPatterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		marks = clamp(v, 0, maxMarks)
		found = true
		break
	}
	if !found {
		return model.Assessment{Feedback: FeedbackUnparsable}
	}

	a := model.Assessment{Marks: marks}
	if maxMarks > 0 {
		a.Score = clamp(marks/maxMarks, 0, 1)
	}
	first, _, _ := strings.Cut(raw, ".")
	a.Feedback = truncateRunes(strings.TrimSpace(first), maxFallbackFeedback)
	if a.Feedback == "" {
		a.Feedback = "Evaluation completed"
	}
	return a
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
