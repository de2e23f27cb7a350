// Package model implements the binary classifiers used to label fused
// (page, segment) feature vectors, and their JSON encoding.
//
// Trained models are immutable. Predict only reads model state, so one
// instance may serve any number of goroutines.
package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Model kinds.
const (
	KindLogisticRegression = "logistic_regression"
	KindLinearSVC          = "linear_svc"
	KindAdaBoost           = "adaboost"
	KindNaiveBayes         = "naive_bayes"
	KindRandomForest       = "random_forest"
	KindGradientBoosting   = "gradient_boosting"
)

var (
	ErrDimensionMismatch = errors.New("model: feature dimension mismatch")
	ErrNotTrained        = errors.New("model: not trained")
	ErrUnknownKind       = errors.New("model: unknown kind")
	ErrBadTrainingSet    = errors.New("model: bad training set")
)

// Classifier labels each row of x as 0 or 1.
type Classifier interface {
	Kind() string
	// Dim is the number of columns Predict expects.
	Dim() int
	Predict(x mat.Matrix) ([]int, error)
}

// Trainer is a Classifier that can be fitted.
type Trainer interface {
	Classifier
	Fit(x mat.Matrix, y []int) error
}

// New returns an untrained model of kind. seed drives any randomness in
// training so runs are reproducible.
func New(kind string, seed int64) (Trainer, error) {
	switch kind {
	case KindLogisticRegression:
		return NewLogisticRegression(), nil
	case KindLinearSVC:
		return NewLinearSVC(seed), nil
	case KindAdaBoost:
		return NewAdaBoost(DefaultEstimators), nil
	case KindNaiveBayes:
		return NewNaiveBayes(), nil
	case KindRandomForest:
		return NewRandomForest(DefaultTrees, seed), nil
	case KindGradientBoosting:
		return NewGradientBoosting(DefaultBoostRounds), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

type envelope struct {
	Kind   string          `json:"kind"`
	Dim    int             `json:"dim"`
	Params json.RawMessage `json:"params"`
}

// Encode serialises a trained classifier.
func Encode(c Classifier) ([]byte, error) {
	if c.Dim() == 0 {
		return nil, ErrNotTrained
	}
	params, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", c.Kind(), err)
	}
	return json.Marshal(envelope{Kind: c.Kind(), Dim: c.Dim(), Params: params})
}

// Decode restores a classifier written by Encode.
func Decode(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode model envelope: %w", err)
	}
	m, err := New(env.Kind, 0)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Params, m); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", env.Kind, err)
	}
	if m.Dim() != env.Dim {
		return nil, fmt.Errorf("%w: envelope says %d, params say %d", ErrDimensionMismatch, env.Dim, m.Dim())
	}
	return m, nil
}

func checkTrainingSet(x mat.Matrix, y []int) (rows [][]float64, err error) {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrBadTrainingSet)
	}
	if r != len(y) {
		return nil, fmt.Errorf("%w: %d rows for %d labels", ErrBadTrainingSet, r, len(y))
	}
	for i, label := range y {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("%w: label %d at row %d", ErrBadTrainingSet, label, i)
		}
	}
	rows = make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
	}
	return rows, nil
}

// predictRows applies label to every row of x after checking its width.
func predictRows(x mat.Matrix, dim int, label func(row []float64) int) ([]int, error) {
	if dim == 0 {
		return nil, ErrNotTrained
	}
	r, c := x.Dims()
	if c != dim {
		return nil, fmt.Errorf("%w: want %d columns, got %d", ErrDimensionMismatch, dim, c)
	}
	out := make([]int, r)
	buf := make([]float64, c)
	for i := range out {
		mat.Row(buf, i, x)
		out[i] = label(buf)
	}
	return out, nil
}

func sign(y int) float64 {
	if y == 1 {
		return 1
	}
	return -1
}
