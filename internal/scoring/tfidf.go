package scoring

import (
	"errors"
	"math"
	"sort"
	"strings"
)

// ErrEmptyVocabulary is returned when no term survives tokenization and
// stop-word filtering in any document.
var ErrEmptyVocabulary = errors.New("empty vocabulary: documents contain only stop words")

// Vectorizer builds a TF-IDF vector space over the documents it is given.
// The vocabulary is fitted per call, so a Vectorizer is safe for concurrent use.
type Vectorizer struct {
	NgramMin    int
	NgramMax    int
	MaxFeatures int
	StopWords   map[string]struct{}
}

// NewVectorizer returns a unigram-to-trigram vectorizer with the English
// stop-word list and the given vocabulary cap (0 means unbounded).
func NewVectorizer(maxFeatures int) *Vectorizer {
	return &Vectorizer{
		NgramMin:    1,
		NgramMax:    3,
		MaxFeatures: maxFeatures,
		StopWords:   englishStopWords,
	}
}

// Cosine fits the vocabulary on {a, b} and returns the cosine similarity of
// their L2-normalized TF-IDF vectors.
func (v *Vectorizer) Cosine(a, b string) (float64, error) {
	vecs, err := v.FitTransform([]string{a, b})
	if err != nil {
		return 0, err
	}
	var dot float64
	for term, wa := range vecs[0] {
		dot += wa * vecs[1][term]
	}
	return dot, nil
}

// FitTransform returns one sparse, L2-normalized TF-IDF vector per document.
func (v *Vectorizer) FitTransform(docs []string) ([]map[string]float64, error) {
	counts := make([]map[string]int, len(docs))
	corpusFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for i, d := range docs {
		counts[i] = make(map[string]int)
		for _, term := range v.analyze(d) {
			counts[i][term]++
			corpusFreq[term]++
		}
		for term := range counts[i] {
			docFreq[term]++
		}
	}
	if len(corpusFreq) == 0 {
		return nil, ErrEmptyVocabulary
	}

	vocab := v.limitVocabulary(corpusFreq)
	n := float64(len(docs))
	vecs := make([]map[string]float64, len(docs))
	for i, c := range counts {
		vec := make(map[string]float64, len(c))
		var norm float64
		for term, tf := range c {
			if _, ok := vocab[term]; !ok {
				continue
			}
			idf := math.Log((1+n)/(1+float64(docFreq[term]))) + 1
			w := float64(tf) * idf
			vec[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range vec {
				vec[term] /= norm
			}
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// analyze tokenizes a document into word n-grams. Tokens are runs of two or
// more alphanumerics; stop words are removed before n-grams are formed.
func (v *Vectorizer) analyze(doc string) []string {
	var tokens []string
	for _, f := range strings.Fields(strings.ToLower(doc)) {
		for _, tok := range splitWordChars(f) {
			if len(tok) < 2 {
				continue
			}
			if _, stop := v.StopWords[tok]; stop {
				continue
			}
			tokens = append(tokens, tok)
		}
	}

	minN, maxN := v.NgramMin, v.NgramMax
	if minN < 1 {
		minN = 1
	}
	if maxN < minN {
		maxN = minN
	}
	var terms []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

// limitVocabulary keeps the MaxFeatures most frequent terms across the corpus.
func (v *Vectorizer) limitVocabulary(corpusFreq map[string]int) map[string]struct{} {
	terms := make([]string, 0, len(corpusFreq))
	for t := range corpusFreq {
		terms = append(terms, t)
	}
	if v.MaxFeatures > 0 && len(terms) > v.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if corpusFreq[terms[i]] != corpusFreq[terms[j]] {
				return corpusFreq[terms[i]] > corpusFreq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.MaxFeatures]
	}
	vocab := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		vocab[t] = struct{}{}
	}
	return vocab
}

func splitWordChars(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})
}
