// Package ensemble runs a fixed set of named classifiers over the same
// feature matrix. A classifier that errors or panics is recorded as a
// failure without affecting the others.
package ensemble

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/jonesrussell/north-cloud/product-detector/internal/model"
)

var (
	ErrNoClassifiers        = errors.New("ensemble: no classifiers")
	ErrAllClassifiersFailed = errors.New("ensemble: every classifier failed")
	ErrEmptyInput           = errors.New("ensemble: no rows to predict")
)

// Ensemble is immutable after New.
type Ensemble struct {
	names  []string
	models map[string]model.Classifier
}

// New copies models. It fails when the set is empty or holds a nil model.
func New(models map[string]model.Classifier) (*Ensemble, error) {
	if len(models) == 0 {
		return nil, ErrNoClassifiers
	}
	for name, m := range models {
		if m == nil {
			return nil, fmt.Errorf("ensemble: classifier %q is nil", name)
		}
	}
	return &Ensemble{
		names:  slices.Sorted(maps.Keys(models)),
		models: maps.Clone(models),
	}, nil
}

// Names lists classifiers in sorted order.
func (e *Ensemble) Names() []string { return slices.Clone(e.names) }

// Len is the number of classifiers.
func (e *Ensemble) Len() int { return len(e.names) }

// Predictions holds each classifier's labels or its failure. A name
// appears in exactly one of the two maps.
type Predictions struct {
	Labels   map[string][]int
	Failures map[string]error
}

// Predict labels every row of x with every classifier. The returned error
// is ErrAllClassifiersFailed joined with each failure when no classifier
// succeeded; Predictions is still returned so callers can report them.
// A nil or empty matrix fails with ErrEmptyInput and no Predictions.
func (e *Ensemble) Predict(x mat.Matrix) (*Predictions, error) {
	if d, ok := x.(*mat.Dense); x == nil || (ok && d == nil) {
		return nil, ErrEmptyInput
	}
	rows, _ := x.Dims()
	if rows == 0 {
		return nil, ErrEmptyInput
	}
	p := &Predictions{
		Labels:   make(map[string][]int, len(e.names)),
		Failures: make(map[string]error),
	}

	for _, name := range e.names {
		labels, err := predictOne(e.models[name], x, rows)
		if err != nil {
			p.Failures[name] = err
			continue
		}
		p.Labels[name] = labels
	}

	if len(p.Labels) == 0 {
		errs := []error{ErrAllClassifiersFailed}
		for _, name := range e.names {
			errs = append(errs, fmt.Errorf("%s: %w", name, p.Failures[name]))
		}
		return p, errors.Join(errs...)
	}
	return p, nil
}

func predictOne(m model.Classifier, x mat.Matrix, rows int) (labels []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			labels, err = nil, fmt.Errorf("classifier panicked: %v", r)
		}
	}()

	labels, err = m.Predict(x)
	if err != nil {
		return nil, err
	}
	if len(labels) != rows {
		return nil, fmt.Errorf("classifier returned %d labels for %d rows", len(labels), rows)
	}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, fmt.Errorf("classifier returned label %d for row %d", l, i)
		}
	}
	return labels, nil
}
