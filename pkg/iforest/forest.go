// Package iforest implements an Isolation Forest outlier detector.
//
// An Isolation Forest isolates observations by recursively picking a random
// feature and a random split value between that feature's minimum and
// maximum. Outliers need fewer splits to be isolated, so their average path
// length across the ensemble is shorter.
//
// Scoring follows the conventions of the widely used scikit-learn model so
// that thresholds tuned against it carry over:
//   - ScoreSamples returns the opposite of the anomaly score, in [-1, 0)
//   - the offset is the Contamination percentile of the training scores
//   - DecisionFunction is ScoreSamples minus the offset (negative = outlier)
//   - Predict returns -1 for outliers and 1 for inliers
//
// Thread Safety: a fitted Forest is read-only and safe for concurrent
// scoring. Fit must not run concurrently with any other method.
package iforest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	// AutoMaxSamples selects min(256, n) samples per tree.
	AutoMaxSamples = 0

	eulerGamma = 0.5772156649015329
)

var (
	ErrNotFitted       = errors.New("iforest: model is not fitted")
	ErrEmptyInput      = errors.New("iforest: empty input")
	ErrFeatureMismatch = errors.New("iforest: feature count mismatch")
)

// Config controls forest construction.
type Config struct {
	NEstimators   int     // Number of trees (default: 100)
	MaxSamples    int     // Samples drawn per tree (AutoMaxSamples: min(256, n))
	Contamination float64 // Expected outlier proportion in training data, (0, 0.5]
	Seed          int64   // Random seed; equal seeds give identical forests
}

// DefaultConfig returns the parameters used by the ransomware anomaly model.
func DefaultConfig() Config {
	return Config{
		NEstimators:   100,
		MaxSamples:    AutoMaxSamples,
		Contamination: 0.1,
		Seed:          42,
	}
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	size      int // Training samples reaching a leaf
	leaf      bool
}

// Forest is an ensemble of isolation trees.
type Forest struct {
	config     Config
	trees      []*node
	sampleSize int
	features   int
	offset     float64
	fitted     bool
}

// New creates an unfitted forest. Invalid fields fall back to defaults.
func New(config Config) *Forest {
	if config.NEstimators <= 0 {
		config.NEstimators = 100
	}
	if config.Contamination <= 0 || config.Contamination > 0.5 {
		config.Contamination = 0.1
	}
	return &Forest{config: config}
}

// Fit builds the ensemble from training rows and calibrates the offset.
func (f *Forest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	features := len(data[0])
	if features == 0 {
		return ErrEmptyInput
	}
	for i, row := range data {
		if len(row) != features {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureMismatch, i, len(row), features)
		}
	}

	n := len(data)
	sampleSize := f.config.MaxSamples
	if sampleSize == AutoMaxSamples {
		sampleSize = min(256, n)
	}
	if sampleSize > n {
		sampleSize = n
	}
	maxDepth := int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2))))

	rng := rand.New(rand.NewSource(f.config.Seed))
	trees := make([]*node, f.config.NEstimators)
	for t := range trees {
		idx := rng.Perm(n)[:sampleSize]
		rows := make([][]float64, sampleSize)
		for i, j := range idx {
			rows[i] = data[j]
		}
		trees[t] = buildTree(rng, rows, 0, maxDepth, features)
	}

	f.trees = trees
	f.sampleSize = sampleSize
	f.features = features
	f.fitted = true

	scores, err := f.ScoreSamples(data)
	if err != nil {
		return err
	}
	f.offset = percentile(scores, 100*f.config.Contamination)
	return nil
}

func buildTree(rng *rand.Rand, rows [][]float64, depth, maxDepth, features int) *node {
	if depth >= maxDepth || len(rows) <= 1 {
		return &node{leaf: true, size: len(rows)}
	}

	// Visit features in random order until one has spread; constant
	// features cannot split the node.
	for _, feature := range rng.Perm(features) {
		lo, hi := rows[0][feature], rows[0][feature]
		for _, r := range rows[1:] {
			lo = math.Min(lo, r[feature])
			hi = math.Max(hi, r[feature])
		}
		if hi <= lo {
			continue
		}

		threshold := lo + rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, r := range rows {
			if r[feature] < threshold {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		return &node{
			feature:   feature,
			threshold: threshold,
			left:      buildTree(rng, left, depth+1, maxDepth, features),
			right:     buildTree(rng, right, depth+1, maxDepth, features),
		}
	}

	return &node{leaf: true, size: len(rows)}
}

func (n *node) pathLength(x []float64) float64 {
	depth := 0.0
	cur := n
	for !cur.leaf {
		if x[cur.feature] < cur.threshold {
			cur = cur.left
		} else {
			cur = cur.right
		}
		depth++
	}
	return depth + averagePathLength(cur.size)
}

// averagePathLength is the mean path length of an unsuccessful search in a
// binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func (f *Forest) check(data [][]float64) error {
	if !f.fitted {
		return ErrNotFitted
	}
	if len(data) == 0 {
		return ErrEmptyInput
	}
	for i, row := range data {
		if len(row) != f.features {
			return fmt.Errorf("%w: row %d has %d features, want %d", ErrFeatureMismatch, i, len(row), f.features)
		}
	}
	return nil
}

// ScoreSamples returns the opposite of the anomaly score of each row.
// Lower values are more abnormal.
func (f *Forest) ScoreSamples(data [][]float64) ([]float64, error) {
	if err := f.check(data); err != nil {
		return nil, err
	}

	norm := averagePathLength(f.sampleSize)
	scores := make([]float64, len(data))
	for i, x := range data {
		var total float64
		for _, t := range f.trees {
			total += t.pathLength(x)
		}
		mean := total / float64(len(f.trees))
		if norm == 0 {
			scores[i] = -1
			continue
		}
		scores[i] = -math.Pow(2, -mean/norm)
	}
	return scores, nil
}

// DecisionFunction returns ScoreSamples shifted by the fitted offset.
// Negative values are outliers.
func (f *Forest) DecisionFunction(data [][]float64) ([]float64, error) {
	scores, err := f.ScoreSamples(data)
	if err != nil {
		return nil, err
	}
	for i := range scores {
		scores[i] -= f.offset
	}
	return scores, nil
}

// Predict labels each row -1 (outlier) or 1 (inlier).
func (f *Forest) Predict(data [][]float64) ([]int, error) {
	decisions, err := f.DecisionFunction(data)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(decisions))
	for i, d := range decisions {
		labels[i] = 1
		if d < 0 {
			labels[i] = -1
		}
	}
	return labels, nil
}

// Offset returns the calibrated decision offset.
func (f *Forest) Offset() float64 { return f.offset }

// Fitted reports whether Fit completed successfully.
func (f *Forest) Fitted() bool { return f.fitted }

// percentile computes the q-th percentile with linear interpolation between
// closest ranks.
func percentile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
