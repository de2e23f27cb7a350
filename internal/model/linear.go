package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear holds the hyperplane shared by the linear models.
type Linear struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func (l *Linear) Dim() int { return len(l.Weights) }

func (l *Linear) decision(row []float64) float64 {
	return floats.Dot(l.Weights, row) + l.Bias
}

// LogisticRegression is fitted by full-batch gradient descent on the
// L2-regularised log loss.
type LogisticRegression struct {
	Linear
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	Lambda       float64 `json:"lambda"`
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{LearningRate: 1, Epochs: 200, Lambda: 1e-4}
}

func (m *LogisticRegression) Kind() string { return KindLogisticRegression }

func (m *LogisticRegression) Fit(x mat.Matrix, y []int) error {
	rows, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}
	n := float64(len(rows))
	w := make([]float64, len(rows[0]))
	grad := make([]float64, len(w))
	var b float64

	for range m.Epochs {
		for j := range grad {
			grad[j] = 0
		}
		var gradB float64
		for i, row := range rows {
			e := sigmoid(floats.Dot(w, row)+b) - float64(y[i])
			floats.AddScaled(grad, e, row)
			gradB += e
		}
		for j := range w {
			w[j] -= m.LearningRate * (grad[j]/n + m.Lambda*w[j])
		}
		b -= m.LearningRate * gradB / n
	}

	m.Weights, m.Bias = w, b
	return nil
}

func (m *LogisticRegression) Predict(x mat.Matrix) ([]int, error) {
	return predictRows(x, m.Dim(), func(row []float64) int {
		if m.decision(row) >= 0 {
			return 1
		}
		return 0
	})
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// LinearSVC minimises the regularised hinge loss with shuffled stochastic
// gradient steps of size eta0 / (1 + eta0*lambda*t).
type LinearSVC struct {
	Linear
	Lambda float64 `json:"lambda"`
	Eta0   float64 `json:"eta0"`
	Epochs int     `json:"epochs"`
	Seed   int64   `json:"seed"`
}

func NewLinearSVC(seed int64) *LinearSVC {
	return &LinearSVC{Lambda: 1e-4, Eta0: 0.5, Epochs: 50, Seed: seed}
}

func (m *LinearSVC) Kind() string { return KindLinearSVC }

func (m *LinearSVC) Fit(x mat.Matrix, y []int) error {
	rows, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(uint64(m.Seed), 0)) //nolint:gosec // reproducible shuffling
	w := make([]float64, len(rows[0]))
	var b float64
	t := 0

	for range m.Epochs {
		for _, i := range rng.Perm(len(rows)) {
			t++
			eta := m.Eta0 / (1 + m.Eta0*m.Lambda*float64(t))
			yi := sign(y[i])
			margin := yi * (floats.Dot(w, rows[i]) + b)
			floats.Scale(1-eta*m.Lambda, w)
			if margin < 1 {
				floats.AddScaled(w, eta*yi, rows[i])
				b += eta * yi
			}
		}
	}

	m.Weights, m.Bias = w, b
	return nil
}

func (m *LinearSVC) Predict(x mat.Matrix) ([]int, error) {
	return predictRows(x, m.Dim(), func(row []float64) int {
		if m.decision(row) >= 0 {
			return 1
		}
		return 0
	})
}
