package scoring

import (
	"errors"
	"fmt"
)

// Step maps every similarity at or above Threshold to Fraction of max marks.
type Step struct {
	Threshold float64 `json:"threshold" mapstructure:"threshold" validate:"gte=0,lte=1"`
	Fraction  float64 `json:"fraction" mapstructure:"fraction" validate:"gte=0,lte=1"`
}

// Curve is a step function from similarity to a fraction of max marks.
// Steps are ordered by descending threshold; the first matching step wins.
type Curve []Step

// DefaultCurve awards 10% for any attempt below the lowest threshold.
func DefaultCurve() Curve {
	return Curve{
		{0.90, 1.00},
		{0.80, 0.95},
		{0.70, 0.85},
		{0.60, 0.75},
		{0.50, 0.65},
		{0.40, 0.55},
		{0.30, 0.45},
		{0.20, 0.30},
		{0.10, 0.20},
		{0.00, 0.10},
	}
}

// Fraction returns the share of max marks for a similarity score.
func (c Curve) Fraction(similarity float64) float64 {
	if len(c) == 0 {
		return 0
	}
	for _, st := range c {
		if similarity >= st.Threshold {
			return st.Fraction
		}
	}
	return c[len(c)-1].Fraction
}

// MarksFor returns the marks awarded for a similarity score out of maxMarks.
func (c Curve) MarksFor(similarity, maxMarks float64) float64 {
	return maxMarks * c.Fraction(similarity)
}

// Validate checks that the curve is a monotonic ladder ending at threshold 0.
func (c Curve) Validate() error {
	if len(c) == 0 {
		return errors.New("grading curve is empty")
	}
	for i, st := range c {
		if st.Fraction < 0 || st.Fraction > 1 {
			return fmt.Errorf("grading curve step %d: fraction %.3f outside [0,1]", i, st.Fraction)
		}
		if i == 0 {
			continue
		}
		prev := c[i-1]
		if st.Threshold >= prev.Threshold {
			return fmt.Errorf("grading curve step %d: thresholds must strictly decrease", i)
		}
		if st.Fraction > prev.Fraction {
			return fmt.Errorf("grading curve step %d: fraction %.3f exceeds fraction of higher threshold", i, st.Fraction)
		}
	}
	if c[len(c)-1].Threshold != 0 {
		return errors.New("grading curve must end with a threshold of 0")
	}
	return nil
}

// Message is the feedback sentence for similarities at or above Threshold.
type Message struct {
	Threshold float64 `json:"threshold" mapstructure:"threshold" validate:"gte=0,lte=1"`
	Text      string  `json:"text" mapstructure:"text" validate:"required"`
}

// FeedbackTable maps similarity bands to qualitative comments.
type FeedbackTable []Message

// DefaultFeedback uses the same thresholds as DefaultCurve, with the two
// lowest bands sharing one message.
func DefaultFeedback() FeedbackTable {
	return FeedbackTable{
		{0.90, "Excellent answer! Matches the key answer very closely."},
		{0.80, "Very good answer! Most key points covered."},
		{0.70, "Good answer. Covered major points."},
		{0.60, "Satisfactory answer. Some important points covered."},
		{0.50, "Average answer. Missing several key points."},
		{0.40, "Below average. Many key points missing."},
		{0.30, "Weak answer. Most key points not covered."},
		{0.20, "Poor answer. Very few relevant points."},
		{0.00, "Inadequate answer. Does not match expected content."},
	}
}

// FeedbackFor returns the comment for a similarity score.
func (f FeedbackTable) FeedbackFor(similarity float64) string {
	if len(f) == 0 {
		return ""
	}
	for _, m := range f {
		if similarity >= m.Threshold {
			return m.Text
		}
	}
	return f[len(f)-1].Text
}

// Validate checks ordering and that the table ends at threshold 0.
func (f FeedbackTable) Validate() error {
	if len(f) == 0 {
		return errors.New("feedback table is empty")
	}
	for i := 1; i < len(f); i++ {
		if f[i].Threshold >= f[i-1].Threshold {
			return fmt.Errorf("feedback entry %d: thresholds must strictly decrease", i)
		}
	}
	if f[len(f)-1].Threshold != 0 {
		return errors.New("feedback table must end with a threshold of 0")
	}
	return nil
}

// LetterGrade assigns Grade to percentages at or above MinPercentage.
type LetterGrade struct {
	MinPercentage float64 `json:"min_percentage" mapstructure:"min_percentage" validate:"gte=0,lte=100"`
	Grade         string  `json:"grade" mapstructure:"grade" validate:"required"`
}

// GradeScale maps an overall percentage to a letter grade.
type GradeScale []LetterGrade

// DefaultGradeScale runs from A+ at 90% down to F.
func DefaultGradeScale() GradeScale {
	return GradeScale{
		{90, "A+"},
		{80, "A"},
		{70, "B+"},
		{60, "B"},
		{50, "C"},
		{40, "D"},
		{0, "F"},
	}
}

// GradeFor returns the letter grade for a percentage.
func (g GradeScale) GradeFor(percentage float64) string {
	if len(g) == 0 {
		return ""
	}
	for _, lg := range g {
		if percentage >= lg.MinPercentage {
			return lg.Grade
		}
	}
	return g[len(g)-1].Grade
}

// Validate checks that minimum percentages strictly decrease.
func (g GradeScale) Validate() error {
	for i := 1; i < len(g); i++ {
		if g[i].MinPercentage >= g[i-1].MinPercentage {
			return fmt.Errorf("grade scale entry %d: minimum percentages must strictly decrease", i)
		}
	}
	return nil
}
