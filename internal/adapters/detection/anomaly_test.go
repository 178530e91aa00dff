package detection

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

type recordedEvent struct {
	channel domain.Channel
	message string
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) Log(channel domain.Channel, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{channel, message})
}

func (s *recordingSink) Emit(event *domain.Event) { s.Log(event.Channel, event.Message) }

func (s *recordingSink) on(channel domain.Channel) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.channel == channel {
			out = append(out, e.message)
		}
	}
	return out
}

type stubModel struct {
	label int
	score float64
	err   error
	calls atomic.Int64
}

func (m *stubModel) Predict(x [][]float64) ([]int, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return []int{m.label}, nil
}

func (m *stubModel) DecisionFunction(x [][]float64) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float64{m.score}, nil
}

func TestAnomalyScorer_Gate(t *testing.T) {
	tests := []struct {
		name       string
		files      int
		cpu        float64
		label      int
		score      float64
		wantAlert  bool
		wantCalled bool
	}{
		{"all conditions hold", 35, 75, -1, -0.10, true, true},
		{"too few files", 20, 90, -1, -0.30, false, false},
		{"cpu too low", 80, 50, -1, -0.30, false, false},
		{"inlier label", 35, 75, 1, -0.10, false, true},
		{"score above threshold", 35, 75, -1, -0.03, false, true},
		{"score at threshold", 35, 75, -1, -0.05, false, true},
		{"boundary values", 30, 70, -1, -0.06, true, true},
		{"fifty files at 80 percent flagged", 50, 80, -1, -0.12, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			model := &stubModel{label: tc.label, score: tc.score}
			scorer := NewAnomalyScorer(model, sink)

			verdict := scorer.Evaluate(domain.SampleSnapshot{FileCount: tc.files, CPUPercent: tc.cpu})

			assert.Equal(t, tc.wantAlert, verdict.IsAnomalous)
			assert.Equal(t, tc.wantCalled, verdict.Evaluated)
			assert.Equal(t, tc.wantCalled, model.calls.Load() == 1)
			if tc.wantAlert {
				assert.Len(t, sink.on(domain.ChannelAnomaly), 1)
			} else {
				assert.Empty(t, sink.on(domain.ChannelAnomaly))
			}
		})
	}
}

func TestAnomalyScorer_MessageFormat(t *testing.T) {
	sink := &recordingSink{}
	scorer := NewAnomalyScorer(&stubModel{label: -1, score: -0.1234}, sink)

	scorer.Evaluate(domain.SampleSnapshot{FileCount: 50, CPUPercent: 80})

	assert.Equal(t, []string{"ANOMALY DETECTED! Files: 50, CPU: 80.0%, Score: -0.12"}, sink.on(domain.ChannelAnomaly))
}

func TestAnomalyScorer_ModelError(t *testing.T) {
	sink := &recordingSink{}
	scorer := NewAnomalyScorer(&stubModel{err: errors.New("bad input")}, sink)

	verdict := scorer.Evaluate(domain.SampleSnapshot{FileCount: 50, CPUPercent: 80})

	assert.False(t, verdict.IsAnomalous)
	assert.Empty(t, sink.on(domain.ChannelAnomaly))
	assert.Equal(t, []string{"Anomaly detection error: bad input"}, sink.on(domain.ChannelBehavioral))
}

func TestNewSeededModel(t *testing.T) {
	model, err := NewSeededModel(0.05)
	require.NoError(t, err)
	assert.True(t, model.Fitted())

	again, err := NewSeededModel(0.3)
	require.NoError(t, err)
	assert.Equal(t, model.Offset(), again.Offset())

	quiet, err := model.DecisionFunction([][]float64{{12, 0.12}})
	require.NoError(t, err)
	burst, err := model.DecisionFunction([][]float64{{5000, 1.0}})
	require.NoError(t, err)
	assert.Less(t, burst[0], quiet[0])
}

func TestSeededModel_Verdicts(t *testing.T) {
	model, err := NewSeededModel(0.05)
	require.NoError(t, err)

	tests := []struct {
		name      string
		files     int
		cpu       float64
		anomalous bool
	}{
		{"busy but inside the seed range", 50, 80, false},
		{"gate minimum", 35, 75, false},
		{"saturated host", 100, 100, true},
		{"file burst", 200, 95, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			verdict := NewAnomalyScorer(model, sink).Evaluate(domain.SampleSnapshot{FileCount: tc.files, CPUPercent: tc.cpu})

			assert.True(t, verdict.Evaluated)
			assert.Equal(t, tc.anomalous, verdict.IsAnomalous)
			if !tc.anomalous {
				assert.Equal(t, 1, verdict.Prediction)
				assert.Positive(t, verdict.Score)
				assert.Empty(t, sink.on(domain.ChannelAnomaly))
				return
			}
			assert.Equal(t, -1, verdict.Prediction)
			assert.Less(t, verdict.Score, ScoreThreshold)
			msgs := sink.on(domain.ChannelAnomaly)
			require.Len(t, msgs, 1)
			assert.Regexp(t, `^ANOMALY DETECTED! Files: \d+, CPU: \d+\.\d%, Score: -\d+\.\d{2}$`, msgs[0])
		})
	}
}
