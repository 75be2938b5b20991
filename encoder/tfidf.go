package encoder

import (
	"math"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/utils"
)

// words of two or more word characters, the tokenisation the text model
// was trained with
var tokenRegexp = regexp.MustCompile(`\b\w\w+\b`)

// TFIDF maps a description onto the fixed term vocabulary learned at
// training time.
type TFIDF struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	NgramMax   int            `json:"ngram_max"`
	StopWords  []string       `json:"stop_words"`

	stop map[string]struct{}
}

// LoadTFIDF reads a transform artifact (tfidf.json).
func LoadTFIDF(fs afero.Fs, path string) (*TFIDF, error) {
	var t TFIDF
	if err := utils.NewFs(fs).ReadJSON(path, &t); err != nil {
		return nil, xerrors.Errorf("unable to load text transform: %w", err)
	}
	if err := t.init(); err != nil {
		return nil, xerrors.Errorf("invalid text transform %s: %w", path, err)
	}
	return &t, nil
}

// NewTFIDF builds a transform from its fitted parts.
func NewTFIDF(vocabulary map[string]int, idf []float64, ngramMax int, stopWords []string) (*TFIDF, error) {
	t := &TFIDF{
		Vocabulary: vocabulary,
		IDF:        idf,
		NgramMax:   ngramMax,
		StopWords:  stopWords,
	}
	if err := t.init(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TFIDF) init() error {
	if t.NgramMax < 1 {
		t.NgramMax = 1
	}
	for term, i := range t.Vocabulary {
		if i < 0 || i >= len(t.IDF) {
			return xerrors.Errorf("term %q has index %d, idf has %d entries", term, i, len(t.IDF))
		}
	}
	t.stop = make(map[string]struct{}, len(t.StopWords))
	for _, w := range t.StopWords {
		t.stop[w] = struct{}{}
	}
	return nil
}

// Dim is the length of every vector Transform returns.
func (t *TFIDF) Dim() int {
	return len(t.IDF)
}

// Transform returns the L2-normalised tf-idf vector of text. Terms outside
// the vocabulary are ignored; an empty or unknown text is the zero vector.
func (t *TFIDF) Transform(text string) []float64 {
	vec := make([]float64, len(t.IDF))
	for _, term := range t.terms(text) {
		if i, ok := t.Vocabulary[term]; ok {
			vec[i]++
		}
	}

	var norm float64
	for i, tf := range vec {
		if tf == 0 {
			continue
		}
		vec[i] = tf * t.IDF[i]
		norm += vec[i] * vec[i]
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// terms lowercases and tokenises text, drops stop words and emits word
// n-grams from 1 up to NgramMax.
func (t *TFIDF) terms(text string) []string {
	var tokens []string
	for _, tok := range tokenRegexp.FindAllString(strings.ToLower(text), -1) {
		if _, ok := t.stop[tok]; ok {
			continue
		}
		tokens = append(tokens, tok)
	}

	terms := append([]string{}, tokens...)
	for n := 2; n <= t.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}
