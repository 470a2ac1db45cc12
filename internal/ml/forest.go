package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Forest defaults, matching the original service's fixed seed and tree count.
const (
	forestTrees    = 100
	forestMaxDepth = 10
	forestMinSplit = 2
	forestSeed     = 42
)

// TreeNode is one node of a fitted CART tree. A node with a nil Left is a
// leaf holding Value.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Value     float64
}

// ForestModel is a random forest usable as a regressor or a classifier
// depending on ModelKind. Trees are grown on bootstrap samples with a random
// feature subset considered at each split; the seed is fixed so training is
// deterministic for a given dataset.
type ForestModel struct {
	ModelKind Kind
	NumTrees  int // 0 means the default ensemble size
	Trees     []*TreeNode
	Classes   []float64 // populated for the classifier only
}

var _ Model = (*ForestModel)(nil)

// Kind returns the configured forest variant.
func (m *ForestModel) Kind() Kind { return m.ModelKind }

// Fit grows the ensemble.
func (m *ForestModel) Fit(X [][]float64, y []float64) error {
	if err := checkMatrix(m.ModelKind, X, y); err != nil {
		return err
	}
	classify := m.ModelKind.IsClassifier()
	if classify {
		m.Classes = distinctSorted(y)
	}

	n, d := len(X), len(X[0])
	mtry := d / 3
	if classify {
		mtry = int(math.Sqrt(float64(d)))
	}
	if mtry < 1 {
		mtry = 1
	}

	trees := m.NumTrees
	if trees <= 0 {
		trees = forestTrees
	}

	rng := rand.New(rand.NewSource(forestSeed))
	m.Trees = make([]*TreeNode, trees)
	for t := 0; t < trees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n) // bootstrap sample
		}
		m.Trees[t] = growTree(X, y, idx, forestMaxDepth, mtry, classify, rng)
	}
	return nil
}

// Predict averages the trees for regression and takes a majority vote for
// classification (ties break toward the smaller label).
func (m *ForestModel) Predict(x []float64) float64 {
	if m.ModelKind.IsClassifier() {
		votes := make(map[float64]int, len(m.Classes))
		for _, tree := range m.Trees {
			votes[predictTree(tree, x)]++
		}
		best, bestVotes := 0.0, -1
		for _, class := range m.Classes {
			if v := votes[class]; v > bestVotes {
				best, bestVotes = class, v
			}
		}
		return best
	}
	var sum float64
	for _, tree := range m.Trees {
		sum += predictTree(tree, x)
	}
	return sum / float64(len(m.Trees))
}

func predictTree(node *TreeNode, x []float64) float64 {
	for node.Left != nil {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// growTree builds one CART tree over the rows named by idx.
func growTree(X [][]float64, y []float64, idx []int, depth, mtry int, classify bool, rng *rand.Rand) *TreeNode {
	if depth == 0 || len(idx) < forestMinSplit || isPure(y, idx) {
		return &TreeNode{Value: leafValue(y, idx, classify)}
	}

	feature, threshold, ok := bestSplit(X, y, idx, mtry, classify, rng)
	if !ok {
		return &TreeNode{Value: leafValue(y, idx, classify)}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Value: leafValue(y, idx, classify)}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(X, y, left, depth-1, mtry, classify, rng),
		Right:     growTree(X, y, right, depth-1, mtry, classify, rng),
	}
}

// bestSplit scans a random subset of mtry features for the impurity-minimal
// threshold. Thresholds are midpoints between consecutive distinct values.
func bestSplit(X [][]float64, y []float64, idx []int, mtry int, classify bool, rng *rand.Rand) (int, float64, bool) {
	d := len(X[0])
	features := rng.Perm(d)[:mtry]

	bestScore := math.Inf(1)
	var bestFeature int
	var bestThreshold float64
	found := false

	values := make([]float64, 0, len(idx))
	left := make([]float64, 0, len(idx))
	right := make([]float64, 0, len(idx))
	for _, f := range features {
		values = values[:0]
		for _, i := range idx {
			values = append(values, X[i][f])
		}
		sort.Float64s(values)

		for v := 1; v < len(values); v++ {
			if values[v] == values[v-1] {
				continue
			}
			threshold := (values[v] + values[v-1]) / 2

			left, right = left[:0], right[:0]
			for _, i := range idx {
				if X[i][f] <= threshold {
					left = append(left, y[i])
				} else {
					right = append(right, y[i])
				}
			}
			score := weightedImpurity(left, right, classify)
			if score < bestScore {
				bestScore, bestFeature, bestThreshold, found = score, f, threshold, true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

// weightedImpurity is size-weighted gini for classification and size-weighted
// variance for regression.
func weightedImpurity(left, right []float64, classify bool) float64 {
	total := float64(len(left) + len(right))
	impurity := func(part []float64) float64 {
		if classify {
			return gini(part)
		}
		return variance(part)
	}
	return float64(len(left))/total*impurity(left) + float64(len(right))/total*impurity(right)
}

func gini(y []float64) float64 {
	counts := make(map[float64]int, 4)
	for _, v := range y {
		counts[v]++
	}
	n := float64(len(y))
	g := 1.0
	for _, c := range counts {
		p := float64(c) / n
		g -= p * p
	}
	return g
}

func variance(y []float64) float64 {
	n := float64(len(y))
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= n
	var ss float64
	for _, v := range y {
		ss += (v - mean) * (v - mean)
	}
	return ss / n
}

func isPure(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}

// leafValue is the mean for regression and the majority label (smaller label
// on ties) for classification.
func leafValue(y []float64, idx []int, classify bool) float64 {
	if !classify {
		var sum float64
		for _, i := range idx {
			sum += y[i]
		}
		return sum / float64(len(idx))
	}
	counts := make(map[float64]int, 4)
	for _, i := range idx {
		counts[y[i]]++
	}
	best, bestCount := math.Inf(1), -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
