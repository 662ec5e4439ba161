package scoring

import (
	"errors"
	"fmt"
	"math"
)

// Weights blends the four sub-scores of the similarity score.
type Weights struct {
	Lexical     float64 `json:"lexical" mapstructure:"lexical" validate:"gte=0,lte=1"`
	Sequence    float64 `json:"sequence" mapstructure:"sequence" validate:"gte=0,lte=1"`
	WordOverlap float64 `json:"word_overlap" mapstructure:"word_overlap" validate:"gte=0,lte=1"`
	Keyword     float64 `json:"keyword" mapstructure:"keyword" validate:"gte=0,lte=1"`
}

// DefaultWeights favors the TF-IDF score slightly over the others.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.35, Sequence: 0.25, WordOverlap: 0.25, Keyword: 0.15}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Lexical + w.Sequence + w.WordOverlap + w.Keyword
}

// Validate checks that the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Lexical, w.Sequence, w.WordOverlap, w.Keyword} {
		if v < 0 {
			return errors.New("similarity weights must not be negative")
		}
	}
	if math.Abs(w.Sum()-1) > 1e-6 {
		return fmt.Errorf("similarity weights must sum to 1.0, got %.6f", w.Sum())
	}
	return nil
}

// Breakdown holds the individual sub-scores behind a similarity score.
type Breakdown struct {
	Lexical     float64 `json:"lexical"`
	Sequence    float64 `json:"sequence"`
	WordOverlap float64 `json:"word_overlap"`
	Keyword     float64 `json:"keyword"`
	Combined    float64 `json:"combined"`
}

// DefaultKeywordMinLength makes keywords the tokens longer than four characters.
const DefaultKeywordMinLength = 5

// DefaultMaxFeatures caps the TF-IDF vocabulary.
const DefaultMaxFeatures = 5000

// Scorer computes the blended similarity between a reference and a candidate
// answer. It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	weights          Weights
	vectorizer       *Vectorizer
	keywordMinLength int
}

// NewScorer returns a Scorer using the given weights and vocabulary settings.
func NewScorer(w Weights, maxFeatures, keywordMinLength int) *Scorer {
	if keywordMinLength <= 0 {
		keywordMinLength = DefaultKeywordMinLength
	}
	return &Scorer{
		weights:          w,
		vectorizer:       NewVectorizer(maxFeatures),
		keywordMinLength: keywordMinLength,
	}
}

// NewDefaultScorer returns a Scorer with the default weights and settings.
func NewDefaultScorer() *Scorer {
	return NewScorer(DefaultWeights(), DefaultMaxFeatures, DefaultKeywordMinLength)
}

// Similarity returns a score in [0, 1] for how closely candidate matches
// reference. It returns 0 when either text is empty after normalization.
func (s *Scorer) Similarity(reference, candidate string) float64 {
	return s.Breakdown(reference, candidate).Combined
}

// Breakdown is Similarity with the sub-scores exposed.
func (s *Scorer) Breakdown(reference, candidate string) Breakdown {
	ref, cand := Normalize(reference), Normalize(candidate)
	if ref == "" || cand == "" {
		return Breakdown{}
	}

	lexical, err := s.vectorizer.Cosine(ref, cand)
	if err != nil {
		lexical = 0
	}
	b := Breakdown{
		Lexical:     clamp01(lexical),
		Sequence:    SequenceRatio(ref, cand),
		WordOverlap: WordOverlap(ref, cand),
		Keyword:     KeywordOverlap(ref, cand, s.keywordMinLength),
	}
	b.Combined = clamp01(s.weights.Lexical*b.Lexical +
		s.weights.Sequence*b.Sequence +
		s.weights.WordOverlap*b.WordOverlap +
		s.weights.Keyword*b.Keyword)
	return b
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
