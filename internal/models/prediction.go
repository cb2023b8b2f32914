package models

import "time"

// FeatureNames is the fixed order of the feature vector consumed by trained models.
// Changing it invalidates every model file written against it.
var FeatureNames = [4]string{"heart_rate", "sleep_hours", "steps_k", "stress_level"}

// FeatureVector is the numeric model input: heart rate, sleep hours, steps/1000, stress level.
type FeatureVector [4]float64

// Prediction sources
const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
	SourceDefault   = "default"
)

// Prediction is the concentration estimate for one user and one day
type Prediction struct {
	ConcentrationScore float64   `json:"concentration_score"` // 0-100
	Confidence         float64   `json:"confidence"`          // 0-1
	Recommendations    []string  `json:"recommendations"`
	ComputedAt         time.Time `json:"computed_at"`
	Source             string    `json:"source"` // model, heuristic or default
}

// HistoryRecord is a raw signal record appended to the per-user history
type HistoryRecord struct {
	UserID     string    `json:"user_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Signals    Signals   `json:"signals"`
}

// PredictionRecord is a computed prediction appended to the prediction history
type PredictionRecord struct {
	UserID     string     `json:"user_id"`
	Day        time.Time  `json:"day"`
	Prediction Prediction `json:"prediction"`
}

// DayPrediction pairs a calendar day with its memoized prediction, if any
type DayPrediction struct {
	Date       string      `json:"date"` // YYYY-MM-DD
	Prediction *Prediction `json:"prediction,omitempty"`
}
