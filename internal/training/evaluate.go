package training

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Split shuffles 0..n-1 with seed and returns disjoint train and test index
// sets. The test share is ceil(n*testSize), kept within [1, n-1] when
// n >= 2.
func Split(n int, testSize float64, seed int64) (train, test []int) {
	if n == 0 {
		return nil, nil
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed))) //nolint:gosec // reproducible split
	perm := rng.Perm(n)

	nTest := int(math.Ceil(float64(n) * testSize))
	if n >= 2 {
		nTest = max(1, min(nTest, n-1))
	} else {
		nTest = 0
	}
	return perm[nTest:], perm[:nTest]
}

// ClassMetrics are the per-class scores of a binary classifier.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarises predictions against the truth.
type Evaluation struct {
	Accuracy float64         `json:"accuracy"`
	Classes  [2]ClassMetrics `json:"classes"`
	Macro    ClassMetrics    `json:"macro_avg"`
	Weighted ClassMetrics    `json:"weighted_avg"`
}

// Evaluate compares predicted labels with truth. Undefined ratios are 0.
func Evaluate(truth, predicted []int) Evaluation {
	var ev Evaluation
	if len(truth) == 0 || len(truth) != len(predicted) {
		return ev
	}

	var confusion [2][2]int // [truth][predicted]
	correct := 0
	for i := range truth {
		confusion[truth[i]][predicted[i]]++
		if truth[i] == predicted[i] {
			correct++
		}
	}
	ev.Accuracy = float64(correct) / float64(len(truth))

	for c := range 2 {
		tp := confusion[c][c]
		predictedC := confusion[0][c] + confusion[1][c]
		actualC := confusion[c][0] + confusion[c][1]
		m := ClassMetrics{Support: actualC}
		m.Precision = ratio(tp, predictedC)
		m.Recall = ratio(tp, actualC)
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		ev.Classes[c] = m
	}

	total := float64(len(truth))
	for _, m := range ev.Classes {
		ev.Macro.Precision += m.Precision / 2
		ev.Macro.Recall += m.Recall / 2
		ev.Macro.F1 += m.F1 / 2
		w := float64(m.Support) / total
		ev.Weighted.Precision += m.Precision * w
		ev.Weighted.Recall += m.Recall * w
		ev.Weighted.F1 += m.F1 * w
	}
	ev.Macro.Support = len(truth)
	ev.Weighted.Support = len(truth)
	return ev
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// String renders the evaluation as a plain-text classification report.
func (ev Evaluation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	row := func(name string, m ClassMetrics) {
		fmt.Fprintf(&b, "%14s %9.2f %9.2f %9.2f %9d\n", name, m.Precision, m.Recall, m.F1, m.Support)
	}
	row("0", ev.Classes[0])
	row("1", ev.Classes[1])
	fmt.Fprintf(&b, "%14s %9s %9s %9.2f %9d\n", "accuracy", "", "", ev.Accuracy, ev.Macro.Support)
	row("macro avg", ev.Macro)
	row("weighted avg", ev.Weighted)
	return b.String()
}
