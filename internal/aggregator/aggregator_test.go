package aggregator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/product-detector/internal/aggregator"
	"github.com/jonesrussell/north-cloud/product-detector/internal/domain"
)

var segments = []domain.Segment{
	{Index: 0, HTML: "<li>a</li>"},
	{Index: 1, HTML: "<li>b</li>"},
	{Index: 2, HTML: "<li>c</li>"},
}

func TestGroup_KeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	accepted, failures := aggregator.Group(segments, map[string][]int{
		"adaboost":    {1, 0, 1},
		"naive_bayes": {0, 0, 0},
		"linear_svc":  {1, 1, 1},
	})

	assert.Empty(t, failures)
	assert.Equal(t, []string{"<li>a</li>", "<li>c</li>"}, accepted["adaboost"])
	assert.Equal(t, []string{}, accepted["naive_bayes"])
	assert.Equal(t, []string{"<li>a</li>", "<li>b</li>", "<li>c</li>"}, accepted["linear_svc"])
}

func TestGroup_LengthMismatchIsAFailure(t *testing.T) {
	t.Parallel()

	accepted, failures := aggregator.Group(segments, map[string][]int{
		"ok":    {0, 1, 0},
		"short": {1},
	})

	assert.Equal(t, map[string][]string{"ok": {"<li>b</li>"}}, accepted)
	assert.ErrorContains(t, failures["short"], "1 labels for 3 segments")
}

func TestGroup_NoSegments(t *testing.T) {
	t.Parallel()

	accepted, failures := aggregator.Group(nil, map[string][]int{"m": {}})
	assert.Empty(t, failures)
	assert.Equal(t, []string{}, accepted["m"])
}
