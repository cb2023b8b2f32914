package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"focus-backend/internal/logging"
	"focus-backend/internal/metrics"
	"focus-backend/internal/models"
)

const breakerName = "concentration-model"

// AdapterConfig holds configuration for the model adapter
type AdapterConfig struct {
	ModelPath          string        // backing model file, empty for heuristic-only mode
	InferenceTimeout   time.Duration // budget for one inference call
	BreakerMaxFailures uint32        // consecutive failures that open the circuit
	BreakerOpenTimeout time.Duration // how long the circuit stays open before probing
}

// DefaultAdapterConfig returns default configuration
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModelPath:          "./model/concentration_model.json",
		InferenceTimeout:   200 * time.Millisecond,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Result is a scored prediction before recommendations are attached
type Result struct {
	Score      float64
	Confidence float64
	Source     string // models.SourceModel or models.SourceHeuristic
}

// ModelInfo describes the backing model currently in use
type ModelInfo struct {
	Loaded   bool      `json:"loaded"`
	Version  string    `json:"version,omitempty"`
	Path     string    `json:"path,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

type modelOutput struct {
	score      float64
	confidence float64
}

// loadedModel is swapped atomically on reload; the breaker starts fresh with each model
type loadedModel struct {
	model PredictiveModel
	info  ModelInfo
	cb    *gobreaker.CircuitBreaker[modelOutput]
}

// Adapter scores feature vectors with an optional trained model and falls back
// to the heuristic scorer on any failure. It never returns an error.
type Adapter struct {
	config  AdapterConfig
	current atomic.Pointer[loadedModel]
	log     zerolog.Logger
}

// NewAdapter creates an adapter around model. A nil model runs in heuristic mode.
func NewAdapter(model PredictiveModel, config AdapterConfig) *Adapter {
	if config.InferenceTimeout <= 0 {
		config.InferenceTimeout = 200 * time.Millisecond
	}
	if config.BreakerMaxFailures == 0 {
		config.BreakerMaxFailures = 5
	}
	if config.BreakerOpenTimeout <= 0 {
		config.BreakerOpenTimeout = 30 * time.Second
	}

	a := &Adapter{
		config: config,
		log:    logging.Component("model"),
	}
	a.SetModel(model, ModelInfo{Version: versionOf(model)})
	return a
}

// LoadAdapter creates an adapter and loads the model at config.ModelPath once.
// A missing or corrupt file is not an error: the adapter runs in heuristic mode.
func LoadAdapter(config AdapterConfig) *Adapter {
	a := NewAdapter(nil, config)
	if config.ModelPath == "" {
		a.log.Info().Msg("No model path configured, using heuristic scoring")
		return a
	}
	if err := a.Reload(config.ModelPath); err != nil {
		a.log.Warn().Err(err).Str("path", config.ModelPath).Msg("Model unavailable, using heuristic scoring")
	}
	return a
}

// Reload loads the model at path and swaps it in. On failure the current model stays.
func (a *Adapter) Reload(path string) error {
	model, err := LoadModel(path)
	if err != nil {
		return err
	}
	a.SetModel(model, ModelInfo{Version: model.Version, Path: path})
	return nil
}

// SetModel replaces the backing model. A nil model switches to heuristic mode.
func (a *Adapter) SetModel(model PredictiveModel, info ModelInfo) {
	if model == nil {
		a.current.Store(&loadedModel{})
		metrics.ModelLoaded.Set(0)
		return
	}
	info.Loaded = true
	info.LoadedAt = time.Now()
	a.current.Store(&loadedModel{
		model: model,
		info:  info,
		cb:    a.newBreaker(),
	})
	metrics.ModelLoaded.Set(1)
}

// HasModel reports whether a backing model is loaded
func (a *Adapter) HasModel() bool {
	lm := a.current.Load()
	return lm != nil && lm.model != nil
}

// Info describes the model currently in use
func (a *Adapter) Info() ModelInfo {
	if lm := a.current.Load(); lm != nil {
		return lm.info
	}
	return ModelInfo{}
}

// Score returns the model's bounded score and confidence, or the heuristic result
// for signals when the model is absent or fails.
func (a *Adapter) Score(ctx context.Context, features models.FeatureVector, signals models.Signals) Result {
	lm := a.current.Load()
	if lm == nil || lm.model == nil {
		metrics.ModelFallbacks.WithLabelValues("no_model").Inc()
		return heuristicResult(signals)
	}

	start := time.Now()
	out, err := lm.cb.Execute(func() (modelOutput, error) {
		return a.infer(ctx, lm.model, features)
	})
	metrics.ModelInferenceDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := fallbackReason(err)
		metrics.ModelFallbacks.WithLabelValues(reason).Inc()
		a.log.Warn().Err(err).Str("reason", reason).Msg("Model inference failed, falling back to heuristic")
		return heuristicResult(signals)
	}

	return Result{
		Score:      ClampScore(out.score),
		Confidence: ClampConfidence(out.confidence),
		Source:     models.SourceModel,
	}
}

// infer runs both model calls under the inference budget. Panics become errors.
func (a *Adapter) infer(ctx context.Context, model PredictiveModel, features models.FeatureVector) (modelOutput, error) {
	for _, x := range features {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return modelOutput{}, ErrInvalidFeatures
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.InferenceTimeout)
	defer cancel()

	type answer struct {
		out modelOutput
		err error
	}
	done := make(chan answer, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- answer{err: fmt.Errorf("%w: model panicked: %v", ErrInferenceFailure, r)}
			}
		}()

		score, err := model.PredictScore(ctx, features)
		if err != nil {
			done <- answer{err: fmt.Errorf("%w: failed to predict score: %w", ErrInferenceFailure, err)}
			return
		}
		confidence, err := model.PredictConfidence(ctx, features)
		if err != nil {
			done <- answer{err: fmt.Errorf("%w: failed to predict confidence: %w", ErrInferenceFailure, err)}
			return
		}
		if math.IsNaN(score) || math.IsInf(score, 0) || math.IsNaN(confidence) || math.IsInf(confidence, 0) {
			done <- answer{err: fmt.Errorf("%w: model returned non-finite output", ErrInferenceFailure)}
			return
		}
		done <- answer{out: modelOutput{score: score, confidence: confidence}}
	}()

	select {
	case ans := <-done:
		return ans.out, ans.err
	case <-ctx.Done():
		return modelOutput{}, fmt.Errorf("%w after %v", ErrInferenceTimeout, a.config.InferenceTimeout)
	}
}

func (a *Adapter) newBreaker() *gobreaker.CircuitBreaker[modelOutput] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	return gobreaker.NewCircuitBreaker[modelOutput](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     a.config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= a.config.BreakerMaxFailures
		},
		// A bad vector is the caller's fault, not the model's
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidFeatures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.log.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

func heuristicResult(signals models.Signals) Result {
	score, confidence := ScoreHeuristic(signals)
	return Result{Score: score, Confidence: confidence, Source: models.SourceHeuristic}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrInferenceTimeout):
		return "timeout"
	case errors.Is(err, ErrInvalidFeatures):
		return "invalid_input"
	default:
		return "error"
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func versionOf(model PredictiveModel) string {
	if lm, ok := model.(*LinearModel); ok {
		return lm.Version
	}
	return ""
}
