package ports

import (
	"context"
	"time"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// OutlierModel scores feature vectors against a model trained once at
// startup.
//
// Implementations:
//   - iforest.Forest: Isolation Forest seeded with a fixed random state
//
// Contract:
//   - MUST be deterministic for a fixed seed
//   - MUST be safe for concurrent calls once fitted
type OutlierModel interface {
	// Predict labels each row -1 (outlier) or 1 (inlier).
	Predict(features [][]float64) ([]int, error)

	// DecisionFunction returns a continuous score per row; lower values
	// are more anomalous and negative values are outliers.
	DecisionFunction(features [][]float64) ([]float64, error)
}

// ContentMatcher checks one file against a rule file.
//
// Implementations:
//   - CLIMatcher: runs the yara command line tool
//   - LibMatcher: in-process libyara (build tag "yara")
//   - BreakerMatcher: circuit-breaker decorator around either
//
// Contract:
//   - matched is true when the tool reports any match output
//   - a non-nil error means the tool could not give an answer; callers
//     treat it as "no match"
type ContentMatcher interface {
	Match(ctx context.Context, rulePath, filePath string) (matched bool, output string, err error)
}

// Sample is the result of one sampler pass.
type Sample struct {
	Snapshot domain.SampleSnapshot
	Files    []string // Regular files found under the monitored trees
	CPUErr   error    // Non-nil when CPU could not be measured this tick
}

// Sampler measures CPU and walks the monitored trees once per loop tick.
type Sampler interface {
	Sample(ctx context.Context) Sample
}

// AnomalyEvaluator applies the anomaly gate to a snapshot.
type AnomalyEvaluator interface {
	Evaluate(snapshot domain.SampleSnapshot) domain.AnomalyVerdict
}

// SignatureScanner scans discovered files and reports new matches.
type SignatureScanner interface {
	Scan(ctx context.Context, paths []string) int
	Reset()
}

// WatchAdapter delivers file-system events into the sink while running.
type WatchAdapter interface {
	Start() error
	Stop() error
}

// ScanObserver is told the outcome and latency of every content match.
// Implemented by the Prometheus adapter.
type ScanObserver interface {
	ObserveScan(duration time.Duration, matched bool, err error)
}
