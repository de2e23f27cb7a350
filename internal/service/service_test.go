package service_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jonesrussell/north-cloud/product-detector/internal/artifact"
	"github.com/jonesrussell/north-cloud/product-detector/internal/ensemble"
	"github.com/jonesrussell/north-cloud/product-detector/internal/extract"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
	"github.com/jonesrussell/north-cloud/product-detector/internal/model"
	"github.com/jonesrussell/north-cloud/product-detector/internal/service"
	"github.com/jonesrussell/north-cloud/product-detector/internal/telemetry"
	"github.com/jonesrussell/north-cloud/product-detector/internal/vectorizer"
)

const listing = `<html><body>
<h1>Corner Grocer</h1>
<div class="listing">
	<div id="tea"><img src="tea.png"><span>Green tea 500 g</span> <b>$4.50</b></div>
	<div id="ad"><img src="ad.png"><span>Gift card 1 x</span> <b>$25.00</b></div>
	<div id="milk"><img src="milk.png"><span>Whole milk 1 l</span> <b>€1,20</b></div>
</div>
</body></html>`

// acceptMatching labels a row 1 when its segment half has weight on column.
type acceptMatching struct {
	dim    int
	column int
}

func (a acceptMatching) Kind() string { return "stub" }
func (a acceptMatching) Dim() int { return a.dim }

func (a acceptMatching) Predict(x mat.Matrix) ([]int, error) {
	rows, _ := x.Dims()
	out := make([]int, rows)
	for i := range out {
		if x.At(i, a.dim/2+a.column) > 0 {
			out[i] = 1
		}
	}
	return out, nil
}

type failing struct{}

func (failing) Kind() string { return "stub" }
func (failing) Dim() int { return 0 }
func (failing) Predict(mat.Matrix) ([]int, error) { return nil, errors.New("corrupt weights") }

func newService(t *testing.T) *service.Service {
	t.Helper()
	return service.New(extract.TreeExtractor{}, logger.NewNop(), telemetry.New(prometheus.NewRegistry()))
}

func fittedVectorizer(t *testing.T) *vectorizer.Vectorizer {
	t.Helper()
	v := vectorizer.New(0)
	require.NoError(t, v.Fit([]string{"corner grocer green tea whole milk gift card"}))
	return v
}

func column(t *testing.T, v *vectorizer.Vectorizer, term string) int {
	t.Helper()
	for i, tt := range v.Terms() {
		if tt == term {
			return i
		}
	}
	t.Fatalf("term %q not in vocabulary", term)
	return -1
}

func TestClassify_BeforeInit(t *testing.T) {
	t.Parallel()

	s := newService(t)
	assert.False(t, s.Ready())
	_, err := s.Classify("", listing)
	require.ErrorIs(t, err, service.ErrNotInitialized)
}

func TestDetect_WorksWithoutInit(t *testing.T) {
	t.Parallel()

	segments, err := newService(t).Detect(listing)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Contains(t, segments[0].HTML, `id="tea"`)
	assert.Contains(t, segments[2].HTML, `id="milk"`)
}

func TestInit_Failures(t *testing.T) {
	t.Parallel()

	s := newService(t)
	require.ErrorIs(t, s.Init(nil), vectorizer.ErrNotFitted)
	require.ErrorIs(t, s.Init(&artifact.Bundle{Vectorizer: vectorizer.New(5)}), vectorizer.ErrNotFitted)

	err := s.Init(&artifact.Bundle{
		Vectorizer: fittedVectorizer(t),
		Models:     map[string]model.Classifier{},
		Failures:   map[string]error{"adaboost": errors.New("missing file")},
	})
	require.ErrorIs(t, err, ensemble.ErrNoClassifiers)
	assert.False(t, s.Ready())
}

func TestClassify_PerClassifierResults(t *testing.T) {
	t.Parallel()

	v := fittedVectorizer(t)
	s := newService(t)
	require.NoError(t, s.Init(&artifact.Bundle{
		Vectorizer: v,
		Models: map[string]model.Classifier{
			"tea_only":  acceptMatching{dim: v.FusedDim(), column: column(t, v, "tea")},
			"groceries": acceptMatching{dim: v.FusedDim(), column: column(t, v, "whole")},
			"broken":    failing{},
		},
	}))
	assert.Equal(t, []string{"broken", "groceries", "tea_only"}, s.Classifiers())

	res, err := s.Classify("https://shop.example/aisle", listing)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/aisle", res.URL)
	require.Len(t, res.Segments, 3)

	require.Len(t, res.Accepted["tea_only"], 1)
	assert.Contains(t, res.Accepted["tea_only"][0], `id="tea"`)
	require.Len(t, res.Accepted["groceries"], 1)
	assert.Contains(t, res.Accepted["groceries"][0], `id="milk"`)
	assert.NotContains(t, res.Accepted, "broken")
	assert.Contains(t, res.Failures["broken"], "corrupt weights")
}

func TestClassify_AllClassifiersFail(t *testing.T) {
	t.Parallel()

	s := newService(t)
	require.NoError(t, s.Init(&artifact.Bundle{
		Vectorizer: fittedVectorizer(t),
		Models:     map[string]model.Classifier{"broken": failing{}},
	}))

	res, err := s.Classify("", listing)
	require.ErrorIs(t, err, ensemble.ErrAllClassifiersFailed)
	require.NotNil(t, res)
	assert.Contains(t, res.Failures, "broken")
}

func TestClassify_NoSegmentsSkipsClassifiers(t *testing.T) {
	t.Parallel()

	s := newService(t)
	require.NoError(t, s.Init(&artifact.Bundle{
		Vectorizer: fittedVectorizer(t),
		Models:     map[string]model.Classifier{"broken": failing{}},
	}))

	res, err := s.Classify("", `<p>About us</p>`)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)
	assert.Equal(t, map[string][]string{"broken": {}}, res.Accepted)
	assert.Empty(t, res.Failures)
}
