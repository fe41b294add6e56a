package model

import (
	"errors"
	"fmt"
)

// TreeNode is one node of an exported decision tree. Leaves have Left and
// Right set to -1 and carry the class counts (or fractions) in Value.
type TreeNode struct {
	Feature   int        `json:"feature"`
	Threshold float64    `json:"threshold"`
	Left      int        `json:"left"`
	Right     int        `json:"right"`
	Value     [2]float64 `json:"value"`
}

func (n TreeNode) isLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

// Tree is a fitted decision tree in array form.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Forest averages the leaf distributions of its trees. A single decision tree
// is a forest of one.
type Forest struct {
	trees       []Tree
	numFeatures int
}

// NewForest checks every node index before the trees can be walked.
func NewForest(trees []Tree, numFeatures int) (*Forest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrArtifactLoad)
	}
	if numFeatures <= 0 {
		return nil, fmt.Errorf("%w: forest n_features must be positive", ErrArtifactLoad)
	}
	for t, tree := range trees {
		if err := validateTree(tree, numFeatures); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrArtifactLoad, t, err)
		}
	}
	copied := make([]Tree, len(trees))
	for i, tree := range trees {
		copied[i] = Tree{Nodes: append([]TreeNode(nil), tree.Nodes...)}
	}
	return &Forest{trees: copied, numFeatures: numFeatures}, nil
}

func validateTree(tree Tree, numFeatures int) error {
	if len(tree.Nodes) == 0 {
		return errors.New("no nodes")
	}
	for i, node := range tree.Nodes {
		if node.isLeaf() {
			if node.Value[0] < 0 || node.Value[1] < 0 || node.Value[0]+node.Value[1] <= 0 {
				return fmt.Errorf("leaf %d has an empty distribution", i)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= numFeatures {
			return fmt.Errorf("node %d feature index %d out of range", i, node.Feature)
		}
		// children always follow their parent, which also rules out cycles
		if node.Left <= i || node.Left >= len(tree.Nodes) || node.Right <= i || node.Right >= len(tree.Nodes) {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, node.Left, node.Right)
		}
	}
	return nil
}

func (f *Forest) NumFeatures() int {
	return f.numFeatures
}

func (f *Forest) PredictProba(x []float64) ([2]float64, error) {
	if len(x) != f.numFeatures {
		return [2]float64{}, fmt.Errorf("%w: classifier expects %d features, got %d", ErrSchemaMismatch, f.numFeatures, len(x))
	}
	var sum [2]float64
	for _, tree := range f.trees {
		leaf := tree.leaf(x)
		total := leaf.Value[0] + leaf.Value[1]
		sum[0] += leaf.Value[0] / total
		sum[1] += leaf.Value[1] / total
	}
	n := float64(len(f.trees))
	p1 := sum[1] / n
	return [2]float64{1 - p1, p1}, nil
}

func (t Tree) leaf(x []float64) TreeNode {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.isLeaf() {
			return node
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}
