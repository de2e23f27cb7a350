package model

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DefaultEstimators is the boosting round count.
const DefaultEstimators = 100

// Stump predicts 1 when row[Feature] > Threshold, inverted when Polarity
// is negative.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Polarity  int     `json:"polarity"`
	Alpha     float64 `json:"alpha"`
}

func (s Stump) predict(row []float64) int {
	positive := row[s.Feature] > s.Threshold
	if s.Polarity < 0 {
		positive = !positive
	}
	if positive {
		return 1
	}
	return 0
}

// AdaBoost is discrete two-class AdaBoost (SAMME) over decision stumps.
type AdaBoost struct {
	Estimators int     `json:"estimators"`
	Features   int     `json:"features"`
	Stumps     []Stump `json:"stumps"`
}

var errNoWeakLearner = errors.New("model: adaboost found no stump better than chance")

func NewAdaBoost(estimators int) *AdaBoost {
	if estimators <= 0 {
		estimators = DefaultEstimators
	}
	return &AdaBoost{Estimators: estimators}
}

func (m *AdaBoost) Kind() string { return KindAdaBoost }
func (m *AdaBoost) Dim() int { return m.Features }

func (m *AdaBoost) Fit(x mat.Matrix, y []int) error {
	rows, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}
	n, d := len(rows), len(rows[0])
	order := sortedColumns(rows, d)

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}

	var stumps []Stump
	for range m.Estimators {
		s, werr := bestStump(rows, order, y, w)
		if werr >= 0.5 {
			break
		}
		if werr <= 1e-12 {
			s.Alpha = 1
			stumps = append(stumps, s)
			break
		}
		s.Alpha = math.Log((1 - werr) / werr)
		stumps = append(stumps, s)

		var total float64
		for i, row := range rows {
			if s.predict(row) != y[i] {
				w[i] *= math.Exp(s.Alpha)
			}
			total += w[i]
		}
		for i := range w {
			w[i] /= total
		}
	}
	if len(stumps) == 0 {
		return errNoWeakLearner
	}

	m.Features, m.Stumps = d, stumps
	return nil
}

// sortedColumns returns, per feature, the row indices ordered by value.
// Constant columns get a nil entry and are never split on.
func sortedColumns(rows [][]float64, d int) [][]int {
	order := make([][]int, d)
	for j := range d {
		idx := make([]int, len(rows))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return rows[idx[a]][j] < rows[idx[b]][j] })
		if rows[idx[0]][j] == rows[idx[len(idx)-1]][j] {
			continue
		}
		order[j] = idx
	}
	return order
}

// bestStump scans every split of every feature for the lowest weighted
// error. The constant "always positive" and "always negative" stumps are
// the starting candidates.
func bestStump(rows [][]float64, order [][]int, y []int, w []float64) (Stump, float64) {
	var totalPos, total float64
	for i, wi := range w {
		total += wi
		if y[i] == 1 {
			totalPos += wi
		}
	}
	totalNeg := total - totalPos

	best := Stump{Threshold: -math.MaxFloat64, Polarity: 1}
	bestErr := totalNeg
	if totalPos < bestErr {
		best.Polarity, bestErr = -1, totalPos
	}

	for j, idx := range order {
		if idx == nil {
			continue
		}
		var posLeft, negLeft float64
		for k := 0; k < len(idx)-1; k++ {
			i := idx[k]
			if y[i] == 1 {
				posLeft += w[i]
			} else {
				negLeft += w[i]
			}
			lo, hi := rows[i][j], rows[idx[k+1]][j]
			if lo == hi {
				continue
			}
			// Positive above the threshold: left positives and right
			// negatives are wrong.
			errAbove := posLeft + (totalNeg - negLeft)
			errBelow := total - errAbove
			if errAbove < bestErr {
				best = Stump{Feature: j, Threshold: (lo + hi) / 2, Polarity: 1}
				bestErr = errAbove
			}
			if errBelow < bestErr {
				best = Stump{Feature: j, Threshold: (lo + hi) / 2, Polarity: -1}
				bestErr = errBelow
			}
		}
	}
	return best, bestErr / total
}

func (m *AdaBoost) Predict(x mat.Matrix) ([]int, error) {
	return predictRows(x, m.Dim(), func(row []float64) int {
		var score float64
		for _, s := range m.Stumps {
			score += s.Alpha * sign(s.predict(row))
		}
		if score > 0 {
			return 1
		}
		return 0
	})
}
