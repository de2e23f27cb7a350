// Package vectorizer implements a TF-IDF text vectorizer that is fitted once
// on page texts and then shared read-only by every transform.
package vectorizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFitted     = errors.New("vectorizer: not fitted")
	ErrAlreadyFitted = errors.New("vectorizer: already fitted")
	ErrEmptyCorpus   = errors.New("vectorizer: corpus has no terms")
	ErrInvalidState  = errors.New("vectorizer: invalid serialized state")
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lowercases text after NFKC normalisation and splits it into
// runs of two or more letters, digits or underscores.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(norm.NFKC.String(text)), -1)
}

// Vectorizer maps text to L2-normalised TF-IDF vectors over a vocabulary
// capped at MaxFeatures terms. The zero value is unusable; call New.
type Vectorizer struct {
	maxFeatures int
	vocabulary  map[string]int
	terms       []string
	idf         []float64
}

// New returns an unfitted vectorizer. maxFeatures <= 0 means no cap.
func New(maxFeatures int) *Vectorizer {
	return &Vectorizer{maxFeatures: maxFeatures}
}

// Fitted reports whether Fit has completed.
func (v *Vectorizer) Fitted() bool { return v.vocabulary != nil }

// Dim is the length of a Transform vector.
func (v *Vectorizer) Dim() int { return len(v.terms) }

// FusedDim is the length of a Fuse vector.
func (v *Vectorizer) FusedDim() int { return 2 * len(v.terms) }

// Terms returns the vocabulary in column order.
func (v *Vectorizer) Terms() []string { return append([]string(nil), v.terms...) }

// Fit builds the vocabulary and inverse document frequencies from corpus.
// The vocabulary keeps the MaxFeatures most frequent terms across the
// corpus, ties broken alphabetically, and columns are ordered
// alphabetically. IDF is smoothed: ln((1+n)/(1+df)) + 1.
func (v *Vectorizer) Fit(corpus []string) error {
	if v.Fitted() {
		return ErrAlreadyFitted
	}

	counts := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, tok := range Tokenize(doc) {
			counts[tok]++
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}
	if len(counts) == 0 {
		return ErrEmptyCorpus
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	if v.maxFeatures > 0 && len(terms) > v.maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if counts[terms[i]] != counts[terms[j]] {
				return counts[terms[i]] > counts[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	v.setState(terms, idf)
	return nil
}

func (v *Vectorizer) setState(terms []string, idf []float64) {
	v.terms = terms
	v.idf = idf
	v.vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = i
	}
}

// Transform returns the TF-IDF vector of text. Unknown terms are ignored;
// text with no known terms yields the zero vector.
func (v *Vectorizer) Transform(text string) ([]float64, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(v.terms))
	v.transformInto(text, out)
	return out, nil
}

func (v *Vectorizer) transformInto(text string, out []float64) {
	for _, tok := range Tokenize(text) {
		if i, ok := v.vocabulary[tok]; ok {
			out[i]++
		}
	}
	floats.Mul(out, v.idf)
	if l2 := floats.Norm(out, 2); l2 > 0 {
		floats.Scale(1/l2, out)
	}
}

// Fuse concatenates the page vector and the segment vector.
func (v *Vectorizer) Fuse(page, segment string) ([]float64, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	d := len(v.terms)
	out := make([]float64, 2*d)
	v.transformInto(page, out[:d])
	v.transformInto(segment, out[d:])
	return out, nil
}

// FuseMatrix builds one fused row per (pages[i], segments[i]) pair.
func (v *Vectorizer) FuseMatrix(pages, segments []string) (*mat.Dense, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	if len(pages) != len(segments) {
		return nil, fmt.Errorf("vectorizer: %d pages for %d segments", len(pages), len(segments))
	}
	if len(pages) == 0 {
		return nil, nil
	}

	d := len(v.terms)
	data := make([]float64, len(pages)*2*d)
	for i := range pages {
		row := data[i*2*d : (i+1)*2*d]
		v.transformInto(pages[i], row[:d])
		v.transformInto(segments[i], row[d:])
	}
	return mat.NewDense(len(pages), 2*d, data), nil
}

// FusePage builds the fused rows for every segment of a single page. The
// page vector is computed once and repeated on each row.
func (v *Vectorizer) FusePage(page string, segments []string) (*mat.Dense, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	if len(segments) == 0 {
		return nil, nil
	}

	d := len(v.terms)
	pageVec := make([]float64, d)
	v.transformInto(page, pageVec)

	data := make([]float64, len(segments)*2*d)
	for i, seg := range segments {
		row := data[i*2*d : (i+1)*2*d]
		copy(row[:d], pageVec)
		v.transformInto(seg, row[d:])
	}
	return mat.NewDense(len(segments), 2*d, data), nil
}

type state struct {
	MaxFeatures int       `json:"max_features"`
	Terms       []string  `json:"terms"`
	IDF         []float64 `json:"idf"`
}

// MarshalJSON serialises a fitted vectorizer.
func (v *Vectorizer) MarshalJSON() ([]byte, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	return json.Marshal(state{MaxFeatures: v.maxFeatures, Terms: v.terms, IDF: v.idf})
}

// UnmarshalJSON restores a fitted vectorizer.
func (v *Vectorizer) UnmarshalJSON(data []byte) error {
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode vectorizer: %w", err)
	}
	if len(s.Terms) == 0 || len(s.Terms) != len(s.IDF) {
		return ErrInvalidState
	}
	v.maxFeatures = s.MaxFeatures
	v.setState(s.Terms, s.IDF)
	return nil
}
