package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Forest and boosting defaults.
const (
	DefaultTrees        = 100
	DefaultBoostRounds  = 100
	DefaultBoostDepth   = 3
	DefaultLearningRate = 0.1
)

// RandomForest averages fully grown trees, each fitted on a bootstrap
// sample with a random sqrt(d) column subset tried at every split.
type RandomForest struct {
	NumTrees int    `json:"num_trees"`
	MaxDepth int    `json:"max_depth"`
	Seed     int64  `json:"seed"`
	Features int    `json:"features"`
	Trees    []Tree `json:"trees"`
}

func NewRandomForest(trees int, seed int64) *RandomForest {
	if trees <= 0 {
		trees = DefaultTrees
	}
	return &RandomForest{NumTrees: trees, Seed: seed}
}

func (m *RandomForest) Kind() string { return KindRandomForest }
func (m *RandomForest) Dim() int { return m.Features }

func (m *RandomForest) Fit(x mat.Matrix, y []int) error {
	rows, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}
	n, d := len(rows), len(rows[0])
	rng := rand.New(rand.NewPCG(uint64(m.Seed), 1)) //nolint:gosec // reproducible bagging

	target := make([]float64, n)
	for i, label := range y {
		target[i] = float64(label)
	}
	perSplit := max(1, int(math.Sqrt(float64(d))))
	g := &treeGrower{
		rows:     rows,
		target:   target,
		maxDepth: m.MaxDepth,
		minLeaf:  1,
		features: func() []int { return rng.Perm(d)[:perSplit] },
		leaf:     meanTarget(target),
	}

	trees := make([]Tree, m.NumTrees)
	sample := make([]int, n)
	for t := range trees {
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		trees[t] = g.grow(append([]int(nil), sample...))
	}

	m.Features, m.Trees = d, trees
	return nil
}

// Predict labels a row 1 when the mean tree vote is above one half.
func (m *RandomForest) Predict(x mat.Matrix) ([]int, error) {
	return predictRows(x, m.Dim(), func(row []float64) int {
		var votes float64
		for _, t := range m.Trees {
			votes += t.eval(row)
		}
		if votes/float64(len(m.Trees)) > 0.5 {
			return 1
		}
		return 0
	})
}

// GradientBoosting fits shallow regression trees to the log-loss gradient,
// one Newton step per leaf.
type GradientBoosting struct {
	Rounds       int     `json:"rounds"`
	MaxDepth     int     `json:"max_depth"`
	LearningRate float64 `json:"learning_rate"`
	Features     int     `json:"features"`
	Base         float64 `json:"base"`
	Trees        []Tree  `json:"trees"`
}

func NewGradientBoosting(rounds int) *GradientBoosting {
	if rounds <= 0 {
		rounds = DefaultBoostRounds
	}
	return &GradientBoosting{Rounds: rounds, MaxDepth: DefaultBoostDepth, LearningRate: DefaultLearningRate}
}

func (m *GradientBoosting) Kind() string { return KindGradientBoosting }
func (m *GradientBoosting) Dim() int { return m.Features }

func (m *GradientBoosting) Fit(x mat.Matrix, y []int) error {
	rows, err := checkTrainingSet(x, y)
	if err != nil {
		return err
	}
	n, d := len(rows), len(rows[0])

	var positives float64
	for _, label := range y {
		positives += float64(label)
	}
	p0 := min(max(positives/float64(n), 1e-6), 1-1e-6)
	base := math.Log(p0 / (1 - p0))

	score := make([]float64, n)
	prob := make([]float64, n)
	residual := make([]float64, n)
	for i := range score {
		score[i] = base
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	g := &treeGrower{
		rows:     rows,
		target:   residual,
		maxDepth: m.MaxDepth,
		minLeaf:  1,
		features: allColumns(d),
		leaf: func(idx []int) float64 {
			var grad, hess float64
			for _, i := range idx {
				grad += residual[i]
				hess += prob[i] * (1 - prob[i])
			}
			return grad / max(hess, 1e-12)
		},
	}

	trees := make([]Tree, 0, m.Rounds)
	for range m.Rounds {
		for i := range rows {
			prob[i] = sigmoid(score[i])
			residual[i] = float64(y[i]) - prob[i]
		}
		t := g.grow(all)
		trees = append(trees, t)
		for i, row := range rows {
			score[i] += m.LearningRate * t.eval(row)
		}
	}

	m.Features, m.Base, m.Trees = d, base, trees
	return nil
}

func (m *GradientBoosting) Predict(x mat.Matrix) ([]int, error) {
	return predictRows(x, m.Dim(), func(row []float64) int {
		score := m.Base
		for _, t := range m.Trees {
			score += m.LearningRate * t.eval(row)
		}
		if score > 0 {
			return 1
		}
		return 0
	})
}
