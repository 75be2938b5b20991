package classifier

import (
	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/dep-risk-analyzer/types"
)

// leaf marks a node without children.
const leaf = -1

// Node is one split or leaf of a decision tree. A split sends x to Left
// when x[Feature] <= Threshold. Value holds the per-class weights of a
// leaf.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a tree ensemble exported from training. The predicted class is
// the argmax of the averaged leaf probabilities, the lowest index winning
// ties.
type Forest struct {
	NFeatures int    `json:"n_features"`
	NClasses  int    `json:"n_classes"`
	Trees     []Tree `json:"trees"`

	labels []types.Severity
}

// Validate checks the tree structure so that prediction can never index
// out of range or loop.
func (f *Forest) Validate() error {
	var errs error
	if len(f.Trees) == 0 {
		errs = multierror.Append(errs, xerrors.New("no trees"))
	}
	if f.NClasses <= 0 {
		errs = multierror.Append(errs, xerrors.Errorf("invalid class count: %d", f.NClasses))
	}
	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			errs = multierror.Append(errs, xerrors.Errorf("tree %d: no nodes", t))
			continue
		}
		for n, node := range tree.Nodes {
			if node.Left == leaf {
				if len(node.Value) != f.NClasses {
					errs = multierror.Append(errs, xerrors.Errorf("tree %d node %d: %d class values, want %d",
						t, n, len(node.Value), f.NClasses))
				}
				continue
			}
			// children always come after their parent, which rules out cycles
			if node.Left <= n || node.Left >= len(tree.Nodes) || node.Right <= n || node.Right >= len(tree.Nodes) {
				errs = multierror.Append(errs, xerrors.Errorf("tree %d node %d: invalid children %d/%d",
					t, n, node.Left, node.Right))
			}
			if node.Feature < 0 || (f.NFeatures > 0 && node.Feature >= f.NFeatures) {
				errs = multierror.Append(errs, xerrors.Errorf("tree %d node %d: invalid feature %d", t, n, node.Feature))
			}
		}
	}
	return errs
}

// SetLabels replaces the class label table used to decode predictions.
func (f *Forest) SetLabels(labels []types.Severity) {
	f.labels = labels
}

func (f *Forest) Labels() []types.Severity {
	if f.labels == nil {
		return types.ClassLabels
	}
	return f.labels
}

// PredictProba returns the averaged class probabilities of x. Features
// missing from x are read as 0.
func (f *Forest) PredictProba(x []float64) []float64 {
	proba := make([]float64, f.NClasses)
	for _, tree := range f.Trees {
		value := tree.leaf(x)
		var total float64
		for _, v := range value {
			total += v
		}
		if total == 0 {
			continue
		}
		for c, v := range value {
			proba[c] += v / total
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba
}

func (t Tree) leaf(x []float64) []float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Left == leaf {
			return node.Value
		}
		var v float64
		if node.Feature < len(x) {
			v = x[node.Feature]
		}
		if v <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// PredictClass returns the encoded class index of x.
func (f *Forest) PredictClass(x []float64) int {
	best := 0
	proba := f.PredictProba(x)
	for c, p := range proba {
		if p > proba[best] {
			best = c
		}
	}
	return best
}

func (f *Forest) Predict(fv types.FeatureVector) types.Severity {
	return types.LabelForClass(f.Labels(), f.PredictClass(fv.Values()))
}
