package classifier

import (
	"math/rand"
	"sort"
)

// Node is one tree node. Leaves have Feature == -1 and carry the malicious fraction in Value.
type Node struct {
	Feature   int
	Threshold float64
	Left      int32
	Right     int32
	Value     float64
}

// Tree is a flattened binary decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

func (t *Tree) predict(x []float64) float64 {
	i := int32(0)
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeBuilder struct {
	X     [][]float64
	y     []int
	p     Params
	rng   *rand.Rand
	nodes []Node
}

func growTree(X [][]float64, y []int, p Params, rng *rand.Rand) Tree {
	n := len(X)
	sample := make([]int, n)
	for i := range sample {
		sample[i] = rng.Intn(n)
	}
	sort.Ints(sample)

	b := &treeBuilder{X: X, y: y, p: p, rng: rng}
	b.build(sample, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) positives(idx []int) int {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	return pos
}

func (b *treeBuilder) leaf(idx []int) int32 {
	b.nodes = append(b.nodes, Node{
		Feature: -1,
		Value:   float64(b.positives(idx)) / float64(len(idx)),
	})
	return int32(len(b.nodes) - 1)
}

func (b *treeBuilder) build(idx []int, depth int) int32 {
	n := len(idx)
	pos := b.positives(idx)
	if pos == 0 || pos == n || n < 2*b.p.MinSamplesLeaf || (b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) {
		return b.leaf(idx)
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return b.leaf(idx)
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	self := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: feature, Threshold: threshold})
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].Left = l
	b.nodes[self].Right = r
	return self
}

// bestSplit searches up to MaxFeatures non-constant features, in random order, for the
// threshold with the lowest weighted Gini impurity. Ties keep the first candidate found.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	total := b.positives(idx)
	minLeaf := b.p.MinSamplesLeaf

	bestFeature, bestThreshold := -1, 0.0
	bestScore := 0.0
	visited := 0

	sorted := make([]int, n)
	for _, f := range b.rng.Perm(len(b.X[0])) {
		if visited >= b.p.MaxFeatures && bestFeature >= 0 {
			break
		}

		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X[sorted[i]][f] < b.X[sorted[j]][f]
		})
		if b.X[sorted[0]][f] == b.X[sorted[n-1]][f] {
			continue
		}
		visited++

		leftPos := 0
		for k := 0; k < n-1; k++ {
			leftPos += b.y[sorted[k]]
			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			leftN := k + 1
			rightN := n - leftN
			if leftN < minLeaf || rightN < minLeaf {
				continue
			}
			score := weightedGini(leftPos, leftN) + weightedGini(total-leftPos, rightN)
			if bestFeature < 0 || score < bestScore {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				bestFeature, bestThreshold, bestScore = f, threshold, score
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

// weightedGini returns count * gini impurity for a node holding pos positives.
func weightedGini(pos, count int) float64 {
	p := float64(pos) / float64(count)
	return float64(count) * 2 * p * (1 - p)
}
