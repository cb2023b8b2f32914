package ml

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-backend/internal/features"
	"focus-backend/internal/models"
)

// stubModel returns fixed outputs, an error, a panic or a delay depending on its fields
type stubModel struct {
	score      float64
	confidence float64
	err        error
	panicMsg   string
	delay      time.Duration
	calls      atomic.Int32
}

func (m *stubModel) PredictScore(ctx context.Context, _ models.FeatureVector) (float64, error) {
	m.calls.Add(1)
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if m.err != nil {
		return 0, m.err
	}
	return m.score, nil
}

func (m *stubModel) PredictConfidence(_ context.Context, _ models.FeatureVector) (float64, error) {
	return m.confidence, nil
}

var lowSignals = models.SignalSet{
	HeartRate: models.Float(55), SleepHours: models.Float(5),
	Steps: models.Float(3000), StressLevel: models.Float(9),
}

func scoreWith(a *Adapter, s models.SignalSet) Result {
	resolved := features.Resolve(s)
	return a.Score(context.Background(), features.Vector(resolved), resolved)
}

func TestAdapter_NoModelUsesHeuristic(t *testing.T) {
	a := NewAdapter(nil, DefaultAdapterConfig())

	res := scoreWith(a, lowSignals)

	assert.False(t, a.HasModel())
	assert.Equal(t, Result{Score: 38, Confidence: 0.7, Source: models.SourceHeuristic}, res)
}

func TestAdapter_ModelOutputIsClamped(t *testing.T) {
	a := NewAdapter(&stubModel{score: 140, confidence: 1.7}, DefaultAdapterConfig())

	res := scoreWith(a, lowSignals)

	assert.Equal(t, Result{Score: 100, Confidence: 1, Source: models.SourceModel}, res)

	a.SetModel(&stubModel{score: -20, confidence: -0.5}, ModelInfo{})
	res = scoreWith(a, lowSignals)
	assert.Equal(t, Result{Score: 0, Confidence: 0, Source: models.SourceModel}, res)
}

func TestAdapter_FallsBackOnFailures(t *testing.T) {
	heuristic := Result{Score: 38, Confidence: 0.7, Source: models.SourceHeuristic}

	tests := []struct {
		name  string
		model *stubModel
	}{
		{"error", &stubModel{err: errors.New("boom")}},
		{"panic", &stubModel{panicMsg: "index out of range"}},
		{"timeout", &stubModel{score: 90, confidence: 0.9, delay: time.Second}},
	}

	cfg := DefaultAdapterConfig()
	cfg.InferenceTimeout = 20 * time.Millisecond

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(tt.model, cfg)
			assert.Equal(t, heuristic, scoreWith(a, lowSignals))
		})
	}
}

func TestAdapter_InvalidFeaturesFallBack(t *testing.T) {
	model := &stubModel{score: 90, confidence: 0.9}
	a := NewAdapter(model, DefaultAdapterConfig())

	signals := features.Resolve(lowSignals)
	bad := features.Vector(signals)
	bad[1] = math.NaN()

	res := a.Score(context.Background(), bad, signals)

	assert.Equal(t, models.SourceHeuristic, res.Source)
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestAdapter_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	model := &stubModel{err: errors.New("model backend down")}
	cfg := DefaultAdapterConfig()
	cfg.BreakerMaxFailures = 3
	cfg.BreakerOpenTimeout = time.Minute
	a := NewAdapter(model, cfg)

	for i := 0; i < 10; i++ {
		res := scoreWith(a, lowSignals)
		assert.Equal(t, models.SourceHeuristic, res.Source)
	}

	assert.Equal(t, int32(3), model.calls.Load())
}

func TestAdapter_ReloadSwapsModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"a","intercept":42,"coefficients":{"steps_k":0}}`), 0o644))

	cfg := DefaultAdapterConfig()
	cfg.ModelPath = path
	a := LoadAdapter(cfg)

	require.True(t, a.HasModel())
	assert.Equal(t, "a", a.Info().Version)
	assert.Equal(t, 42.0, scoreWith(a, lowSignals).Score)

	require.NoError(t, os.WriteFile(path, []byte(`{"version":"b","intercept":61,"coefficients":{"steps_k":0}}`), 0o644))
	require.NoError(t, a.Reload(path))
	assert.Equal(t, "b", a.Info().Version)
	assert.Equal(t, 61.0, scoreWith(a, lowSignals).Score)

	// A broken file keeps the previous model
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	err := a.Reload(path)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, "b", a.Info().Version)
}

func TestLoadAdapter_MissingFileDegradesToHeuristic(t *testing.T) {
	cfg := DefaultAdapterConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.json")

	a := LoadAdapter(cfg)

	assert.False(t, a.HasModel())
	assert.False(t, a.Info().Loaded)
	assert.Equal(t, models.SourceHeuristic, scoreWith(a, lowSignals).Source)
}
