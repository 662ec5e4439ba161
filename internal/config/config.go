// Package config holds the tunable grading tables and loads them from viper.
package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pavelanni/answergrader/internal/scoring"
)

// Grading is the full set of tunables for the statistical evaluator and the
// aligner.
type Grading struct {
	Weights            scoring.Weights       `mapstructure:"weights" json:"weights"`
	Curve              scoring.Curve         `mapstructure:"curve" json:"curve" validate:"required,dive"`
	Feedback           scoring.FeedbackTable `mapstructure:"feedback" json:"feedback" validate:"required,dive"`
	KeyMissingFraction float64               `mapstructure:"key_missing_fraction" json:"key_missing_fraction" validate:"gte=0,lte=1"`
	LetterGrades       scoring.GradeScale    `mapstructure:"letter_grades" json:"letter_grades" validate:"required,dive"`
	KeywordMinLength   int                   `mapstructure:"keyword_min_length" json:"keyword_min_length" validate:"gte=1"`
	MaxFeatures        int                   `mapstructure:"max_features" json:"max_features" validate:"gte=0"`
}

// DefaultKeyMissingFraction is the share of max marks awarded when a question
// has no answer key entry.
const DefaultKeyMissingFraction = 0.7

// Default returns the built-in grading tables.
func Default() Grading {
	return Grading{
		Weights:            scoring.DefaultWeights(),
		Curve:              scoring.DefaultCurve(),
		Feedback:           scoring.DefaultFeedback(),
		KeyMissingFraction: DefaultKeyMissingFraction,
		LetterGrades:       scoring.DefaultGradeScale(),
		KeywordMinLength:   scoring.DefaultKeywordMinLength,
		MaxFeatures:        scoring.DefaultMaxFeatures,
	}
}

var validate = validator.New()

// Validate runs the struct tag checks and then the semantic checks of each table.
func (g Grading) Validate() error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("invalid grading config: %w", err)
	}
	var errs []error
	if err := g.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := g.Curve.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := g.Feedback.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := g.LetterGrades.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid grading config: %w", err)
	}
	return nil
}

// Scorer builds a similarity scorer from the configured weights.
func (g Grading) Scorer() *scoring.Scorer {
	return scoring.NewScorer(g.Weights, g.MaxFeatures, g.KeywordMinLength)
}

// Load reads the "grading" section of v over the defaults. Each table present
// in the config replaces the default table as a whole.
func Load(v *viper.Viper) (Grading, error) {
	g := Default()
	if v == nil || !v.IsSet("grading") {
		return g, g.Validate()
	}

	var file Grading
	if err := v.UnmarshalKey("grading", &file); err != nil {
		return Grading{}, fmt.Errorf("decode grading config: %w", err)
	}
	set := func(key string) bool { return v.IsSet("grading." + key) }
	if set("weights") {
		g.Weights = file.Weights
	}
	if set("curve") {
		g.Curve = file.Curve
	}
	if set("feedback") {
		g.Feedback = file.Feedback
	}
	if set("key_missing_fraction") {
		g.KeyMissingFraction = file.KeyMissingFraction
	}
	if set("letter_grades") {
		g.LetterGrades = file.LetterGrades
	}
	if set("keyword_min_length") {
		g.KeywordMinLength = file.KeywordMinLength
	}
	if set("max_features") {
		g.MaxFeatures = file.MaxFeatures
	}

	if err := g.Validate(); err != nil {
		return Grading{}, err
	}
	return g, nil
}
