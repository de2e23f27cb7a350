package model

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NaiveBayes is multinomial naive Bayes with additive smoothing. Negative
// feature values are treated as zero.
type NaiveBayes struct {
	Alpha          float64      `json:"alpha"`
	ClassLogPrior  [2]float64   `json:"class_log_prior"`
	FeatureLogProb [2][]float64 `json:"feature_log_prob"`
}

func NewNaiveBayes() *NaiveBayes {
	return &NaiveBayes{Alpha: 1}
}

func (m *NaiveBayes) Kind() string { return KindNaiveBayes }
func (m *NaiveBayes) Dim() int { return len(m.FeatureLogProb[0]) }

func (m *NaiveBayes) Fit(x mat.Matrix, y []int) error {
	rows, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}
	d := len(rows[0])

	var classRows [2]float64
	counts := [2][]float64{make([]float64, d), make([]float64, d)}
	for i, row := range rows {
		c := y[i]
		classRows[c]++
		for j, v := range row {
			if v > 0 {
				counts[c][j] += v
			}
		}
	}

	// Priors are smoothed too so a class absent from training keeps a
	// finite log probability.
	n := float64(len(rows))
	for c := range 2 {
		m.ClassLogPrior[c] = math.Log((classRows[c] + 1) / (n + 2))
		total := floats.Sum(counts[c]) + m.Alpha*float64(d)
		logProb := make([]float64, d)
		for j, cnt := range counts[c] {
			logProb[j] = math.Log((cnt + m.Alpha) / total)
		}
		m.FeatureLogProb[c] = logProb
	}
	return nil
}

func (m *NaiveBayes) Predict(x mat.Matrix) ([]int, error) {
	return predictRows(x, m.Dim(), func(row []float64) int {
		var score [2]float64
		for c := range 2 {
			score[c] = m.ClassLogPrior[c]
			for j, v := range row {
				if v > 0 {
					score[c] += v * m.FeatureLogProb[c][j]
				}
			}
		}
		if score[1] > score[0] {
			return 1
		}
		return 0
	})
}
