package training_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/product-detector/internal/training"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	train, test := training.Split(10, 0.2, 42)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	all := slices.Concat(train, test)
	slices.Sort(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	train2, test2 := training.Split(10, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test = training.Split(3, 0.01, 42)
	assert.Len(t, test, 1)
	train, test = training.Split(2, 0.99, 42)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)
	train, test = training.Split(1, 0.2, 42)
	assert.Len(t, train, 1)
	assert.Empty(t, test)
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	ev := training.Evaluate([]int{1, 1, 0, 0}, []int{1, 0, 0, 0})
	assert.InDelta(t, 0.75, ev.Accuracy, 1e-9)

	assert.InDelta(t, 1.0, ev.Classes[1].Precision, 1e-9)
	assert.InDelta(t, 0.5, ev.Classes[1].Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, ev.Classes[1].F1, 1e-9)
	assert.Equal(t, 2, ev.Classes[1].Support)

	assert.InDelta(t, 2.0/3.0, ev.Classes[0].Precision, 1e-9)
	assert.InDelta(t, 1.0, ev.Classes[0].Recall, 1e-9)
	assert.InDelta(t, 0.8, ev.Classes[0].F1, 1e-9)

	assert.InDelta(t, (0.8+2.0/3.0)/2, ev.Macro.F1, 1e-9)
	assert.Equal(t, 4, ev.Weighted.Support)

	report := ev.String()
	assert.Contains(t, report, "precision")
	assert.Contains(t, report, "weighted avg")
}

func TestEvaluate_NoPositivesPredicted(t *testing.T) {
	t.Parallel()

	ev := training.Evaluate([]int{1, 0}, []int{0, 0})
	assert.Zero(t, ev.Classes[1].Precision)
	assert.Zero(t, ev.Classes[1].F1)
	assert.Equal(t, training.Evaluation{}, training.Evaluate(nil, nil))
}
