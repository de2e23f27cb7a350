package model

import "sort"

// TreeNode is one node of a regression tree stored as a flat slice. Leaves
// have Left == -1 and carry Value.
type TreeNode struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a binary regression tree. Rows with row[Feature] <= Threshold go
// left.
type Tree []TreeNode

func (t Tree) eval(row []float64) float64 {
	i := 0
	for t[i].Left >= 0 {
		if row[t[i].Feature] <= t[i].Threshold {
			i = t[i].Left
		} else {
			i = t[i].Right
		}
	}
	return t[i].Value
}

// treeGrower fits a squared-error regression tree over rows[idx] against
// target. For 0/1 targets the squared-error reduction ranks splits the same
// way Gini impurity does.
type treeGrower struct {
	rows   [][]float64
	target []float64
	// maxDepth <= 0 means unlimited.
	maxDepth int
	minLeaf  int
	// features picks the candidate columns for one split.
	features func() []int
	// leaf computes the value of a leaf holding idx.
	leaf func(idx []int) float64
}

type growFrame struct {
	node  int
	idx   []int
	depth int
}

func (g *treeGrower) grow(idx []int) Tree {
	tree := Tree{{Left: -1, Right: -1}}
	stack := []growFrame{{node: 0, idx: idx}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		feature, threshold, ok := g.split(f.idx, f.depth)
		if !ok {
			tree[f.node].Value = g.leaf(f.idx)
			continue
		}

		var left, right []int
		for _, i := range f.idx {
			if g.rows[i][feature] <= threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}

		l, r := len(tree), len(tree)+1
		tree = append(tree, TreeNode{Left: -1, Right: -1}, TreeNode{Left: -1, Right: -1})
		tree[f.node] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
		stack = append(stack,
			growFrame{node: r, idx: right, depth: f.depth + 1},
			growFrame{node: l, idx: left, depth: f.depth + 1},
		)
	}
	return tree
}

// split returns the column and threshold with the largest squared-error
// reduction, or ok == false when the node should be a leaf.
func (g *treeGrower) split(idx []int, depth int) (feature int, threshold float64, ok bool) {
	n := len(idx)
	if n < 2*g.minLeaf || (g.maxDepth > 0 && depth >= g.maxDepth) {
		return 0, 0, false
	}

	var sum, sumSq float64
	for _, i := range idx {
		sum += g.target[i]
		sumSq += g.target[i] * g.target[i]
	}
	parent := sumSq - sum*sum/float64(n)
	if parent <= 1e-12 {
		return 0, 0, false
	}

	bestGain := 1e-12
	sorted := make([]int, n)
	for _, j := range g.features() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool { return g.rows[sorted[a]][j] < g.rows[sorted[b]][j] })

		var sumL, sqL float64
		for k := 0; k < n-1; k++ {
			v := g.target[sorted[k]]
			sumL += v
			sqL += v * v

			left := k + 1
			if left < g.minLeaf || n-left < g.minLeaf {
				continue
			}
			lo, hi := g.rows[sorted[k]][j], g.rows[sorted[k+1]][j]
			if lo == hi {
				continue
			}
			sumR, sqR := sum-sumL, sumSq-sqL
			sse := (sqL - sumL*sumL/float64(left)) + (sqR - sumR*sumR/float64(n-left))
			if gain := parent - sse; gain > bestGain {
				bestGain, feature, threshold, ok = gain, j, (lo+hi)/2, true
			}
		}
	}
	return feature, threshold, ok
}

func meanTarget(target []float64) func(idx []int) float64 {
	return func(idx []int) float64 {
		var s float64
		for _, i := range idx {
			s += target[i]
		}
		return s / float64(len(idx))
	}
}

func allColumns(d int) func() []int {
	cols := make([]int, d)
	for j := range cols {
		cols[j] = j
	}
	return func() []int { return cols }
}
