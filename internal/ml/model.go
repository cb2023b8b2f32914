package ml

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"

	"focus-backend/internal/logging"
	"focus-backend/internal/models"
)

// PredictiveModel is anything that can turn a feature vector into a concentration
// score and a confidence. Implementations are not trusted to bound their outputs.
type PredictiveModel interface {
	PredictScore(ctx context.Context, features models.FeatureVector) (float64, error)
	PredictConfidence(ctx context.Context, features models.FeatureVector) (float64, error)
}

const defaultModelConfidence = 0.8

// LinearModel is a linear regression over the feature vector, stored as JSON.
//
//	{"version": "2024-06", "intercept": 60,
//	 "coefficients": {"heart_rate": -0.1, "sleep_hours": 3, "steps_k": 0.8, "stress_level": -3},
//	 "confidence": 0.85}
type LinearModel struct {
	Version      string             `json:"version"`
	Coefficients map[string]float64 `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
	Confidence   float64            `json:"confidence"` // reported confidence, 0-1

	weights [len(models.FeatureNames)]float64
}

// LoadModel reads and validates a linear model file. Every failure wraps ErrModelUnavailable.
func LoadModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model file: %w", ErrModelUnavailable, err)
	}

	var model LinearModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal model: %w", ErrModelUnavailable, err)
	}

	if err := model.compile(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	logging.Info().Str("path", path).Str("version", model.Version).Msg("Loaded concentration model")
	return &model, nil
}

// NewLinearModel builds a model in code. It fails on the same conditions as LoadModel.
func NewLinearModel(version string, coefficients map[string]float64, intercept, confidence float64) (*LinearModel, error) {
	m := &LinearModel{
		Version:      version,
		Coefficients: coefficients,
		Intercept:    intercept,
		Confidence:   confidence,
	}
	if err := m.compile(); err != nil {
		return nil, err
	}
	return m, nil
}

// compile validates the model and lays coefficients out in feature order
func (m *LinearModel) compile() error {
	if len(m.Coefficients) == 0 {
		return invalidModel("no coefficients")
	}

	index := make(map[string]int, len(models.FeatureNames))
	for i, name := range models.FeatureNames {
		index[name] = i
	}

	for name, w := range m.Coefficients {
		i, ok := index[name]
		if !ok {
			return invalidModel("unknown feature %q in coefficients", name)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return invalidModel("coefficient %q is not finite", name)
		}
		m.weights[i] = w
	}

	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return invalidModel("intercept is not finite")
	}
	if m.Confidence == 0 {
		m.Confidence = defaultModelConfidence
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return invalidModel("confidence %.2f outside [0,1]", m.Confidence)
	}
	return nil
}

func invalidModel(format string, args ...any) error {
	return fmt.Errorf("failed to validate model: %w: %s", ErrInvalidModel, fmt.Sprintf(format, args...))
}

// PredictScore implements PredictiveModel.
func (m *LinearModel) PredictScore(ctx context.Context, features models.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	score := m.Intercept
	for i, x := range features {
		score += m.weights[i] * x
	}
	return score, nil
}

// PredictConfidence implements PredictiveModel.
func (m *LinearModel) PredictConfidence(ctx context.Context, _ models.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.Confidence, nil
}

// CreateSampleModel writes a sample model file for demonstration.
// Roughly tracks the heuristic: more sleep helps, stress and a racing heart hurt.
func CreateSampleModel(path string) error {
	model := LinearModel{
		Version: "sample-1",
		Coefficients: map[string]float64{
			"heart_rate":   -0.15,
			"sleep_hours":  3.0,
			"steps_k":      0.8,
			"stress_level": -3.0,
		},
		Intercept:  68.0,
		Confidence: 0.85,
	}

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}

	logging.Info().Str("path", path).Msg("Created sample model")
	return nil
}
