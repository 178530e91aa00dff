package detection

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/ports"
	"github.com/xoelrdgz/ransomradar/pkg/iforest"
)

// Gate preconditions. The model is only consulted once both volume and CPU
// are high, and its verdict must be both an outlier label and a decision
// score below ScoreThreshold.
const (
	MinFileCount   = 30
	MinCPUPercent  = 70.0
	ScoreThreshold = -0.05

	modelContamination = 0.15
	modelEstimators    = 500
	modelSeed          = 42
)

var errEmptyPrediction = errors.New("model returned no prediction")

// SeedData is the fixed training set: four quiet hosts followed by six
// samples of ransomware-like activity, as [file_count, cpu/100].
func SeedData() [][]float64 {
	return [][]float64{
		{5, 0.05}, {10, 0.1}, {15, 0.15}, {20, 0.2},
		{40, 0.5}, {50, 0.6}, {55, 0.65}, {58, 0.7}, {60, 0.8}, {100, 1.0},
	}
}

// NewSeededModel trains the outlier model on SeedData. The contamination is
// fixed at 0.15; the configured value is only reported.
func NewSeededModel(configuredContamination float64) (*iforest.Forest, error) {
	forest := iforest.New(iforest.Config{
		NEstimators:   modelEstimators,
		MaxSamples:    iforest.AutoMaxSamples,
		Contamination: modelContamination,
		Seed:          modelSeed,
	})
	if err := forest.Fit(SeedData()); err != nil {
		return nil, fmt.Errorf("failed to train anomaly model: %w", err)
	}

	ev := log.Info().
		Float64("contamination", modelContamination).
		Float64("offset", forest.Offset())
	if configuredContamination != modelContamination {
		ev = ev.Float64("configured_contamination", configuredContamination).
			Str("note", "configured contamination is not applied")
	}
	ev.Msg("Anomaly model trained")

	return forest, nil
}

type AnomalyScorer struct {
	model ports.OutlierModel
	sink  ports.EventSink
}

func NewAnomalyScorer(model ports.OutlierModel, sink ports.EventSink) *AnomalyScorer {
	return &AnomalyScorer{model: model, sink: sink}
}

// Evaluate applies the four-way gate to one snapshot and logs an anomaly
// event when it holds. Model failures surface on the behavioral channel.
func (a *AnomalyScorer) Evaluate(snapshot domain.SampleSnapshot) domain.AnomalyVerdict {
	var verdict domain.AnomalyVerdict
	if snapshot.FileCount < MinFileCount || snapshot.CPUPercent < MinCPUPercent {
		return verdict
	}
	verdict.Evaluated = true

	prediction, score, err := a.score(snapshot.Features())
	if err != nil {
		log.Error().Err(err).Int("files", snapshot.FileCount).Float64("cpu", snapshot.CPUPercent).Msg("Anomaly detection error")
		a.sink.Log(domain.ChannelBehavioral, fmt.Sprintf("Anomaly detection error: %v", err))
		return verdict
	}
	verdict.Prediction = prediction
	verdict.Score = score

	log.Debug().
		Int("files", snapshot.FileCount).
		Float64("cpu", snapshot.CPUPercent).
		Float64("score", score).
		Int("prediction", prediction).
		Msg("Anomaly test")

	if prediction == -1 && score < ScoreThreshold {
		verdict.IsAnomalous = true
		a.sink.Log(domain.ChannelAnomaly, fmt.Sprintf("ANOMALY DETECTED! Files: %d, CPU: %.1f%%, Score: %.2f",
			snapshot.FileCount, snapshot.CPUPercent, score))
	}
	return verdict
}

func (a *AnomalyScorer) score(features []float64) (int, float64, error) {
	x := [][]float64{features}

	labels, err := a.model.Predict(x)
	if err != nil {
		return 0, 0, err
	}
	scores, err := a.model.DecisionFunction(x)
	if err != nil {
		return 0, 0, err
	}
	if len(labels) == 0 || len(scores) == 0 {
		return 0, 0, errEmptyPrediction
	}
	if math.IsNaN(scores[0]) {
		return 0, 0, fmt.Errorf("model returned NaN score")
	}
	return labels[0], scores[0], nil
}
