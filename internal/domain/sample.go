package domain

import "time"

// SampleSnapshot is one loop iteration's view of host activity.
type SampleSnapshot struct {
	FileCount  int       `json:"file_count"`
	CPUPercent float64   `json:"cpu_percent"`
	Timestamp  time.Time `json:"timestamp"`
}

// Features is the outlier-model input: file count and CPU as a fraction.
func (s SampleSnapshot) Features() []float64 {
	return []float64{float64(s.FileCount), s.CPUPercent / 100}
}

// AnomalyVerdict is the outcome of scoring a snapshot.
type AnomalyVerdict struct {
	IsAnomalous bool    `json:"is_anomalous"`
	Prediction  int     `json:"prediction"`
	Score       float64 `json:"score"`
	Evaluated   bool    `json:"evaluated"` // False when the volume/CPU preconditions failed
}
