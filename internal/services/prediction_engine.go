package services

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"focus-backend/internal/cache"
	"focus-backend/internal/database"
	"focus-backend/internal/features"
	"focus-backend/internal/logging"
	"focus-backend/internal/metrics"
	"focus-backend/internal/ml"
	"focus-backend/internal/models"
	"focus-backend/internal/recommend"
)

// Degraded prediction returned when computing fails outright
const (
	DefaultScore      = 65.0
	DefaultConfidence = 0.7
)

// Scorer turns features into a score. *ml.Adapter is the production implementation.
type Scorer interface {
	Score(ctx context.Context, features models.FeatureVector, signals models.Signals) ml.Result
}

// PredictionEngineConfig holds optional collaborators of the engine
type PredictionEngineConfig struct {
	Sink  database.HistorySink // receives every freshly computed prediction, may be nil
	Clock func() time.Time     // defaults to time.Now
}

// PredictionEngine answers "how focused will this user be on this day" with at most
// one computation per (user, day) while the cache entry lives.
type PredictionEngine struct {
	store  cache.Store
	scorer Scorer
	sink   database.HistorySink
	now    func() time.Time
	group  singleflight.Group
	log    zerolog.Logger
}

// NewPredictionEngine creates an engine over store and scorer
func NewPredictionEngine(store cache.Store, scorer Scorer, config PredictionEngineConfig) *PredictionEngine {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &PredictionEngine{
		store:  store,
		scorer: scorer,
		sink:   config.Sink,
		now:    config.Clock,
		log:    logging.Component("prediction-engine"),
	}
}

// DefaultPrediction is the degraded result used when the compute path fails
func DefaultPrediction(at time.Time) models.Prediction {
	return models.Prediction{
		ConcentrationScore: DefaultScore,
		Confidence:         DefaultConfidence,
		Recommendations:    []string{recommend.AdviceGeneric},
		ComputedAt:         at,
		Source:             models.SourceDefault,
	}
}

// Predict returns the memoized prediction for (userID, day) or computes, stores and
// returns a new one. It never fails: cache problems degrade to recomputation and
// compute problems degrade to DefaultPrediction.
//
// Once a day is cached, later calls return it unchanged even if signals differ.
func (e *PredictionEngine) Predict(ctx context.Context, userID string, day time.Time, signals models.SignalSet) models.Prediction {
	key := cache.NewKey(userID, day)

	if p, ok := e.lookup(ctx, key); ok {
		return p
	}

	// Concurrent misses for one key share a single computation.
	// The shared work must not die with the first caller's context.
	flightCtx := context.WithoutCancel(ctx)
	v, _, shared := e.group.Do(key.String(), func() (any, error) {
		if p, ok := e.lookup(flightCtx, key); ok {
			return p, nil
		}
		return e.computeAndStore(flightCtx, key, signals), nil
	})

	p := v.(models.Prediction)
	if shared {
		p.Recommendations = slices.Clone(p.Recommendations)
	}
	return p
}

// Lookup returns the cached prediction for (userID, day) without computing one.
func (e *PredictionEngine) Lookup(ctx context.Context, userID string, day time.Time) (models.Prediction, bool) {
	return e.lookup(ctx, cache.NewKey(userID, day))
}

// LookupRange returns one entry per calendar day in [from, to], oldest first.
// Days without a cached prediction carry a nil Prediction.
func (e *PredictionEngine) LookupRange(ctx context.Context, userID string, from, to time.Time) []models.DayPrediction {
	start := cache.NewKey(userID, from).Day
	end := cache.NewKey(userID, to).Day

	var out []models.DayPrediction
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		entry := models.DayPrediction{Date: d.Format(cache.DayLayout)}
		if p, ok := e.lookup(ctx, cache.Key{UserID: userID, Day: d}); ok {
			entry.Prediction = &p
		}
		out = append(out, entry)
	}
	return out
}

// Invalidate drops the cached prediction for (userID, day) so the next Predict recomputes.
func (e *PredictionEngine) Invalidate(ctx context.Context, userID string, day time.Time) error {
	key := cache.NewKey(userID, day)
	if err := e.storeDelete(ctx, key); err != nil {
		metrics.CacheErrors.WithLabelValues(e.store.Name(), "delete").Inc()
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	e.log.Info().Str("user_id", userID).Str("day", key.DayString()).Msg("Prediction invalidated")
	return nil
}

// lookup reads the cache; backend errors and panics are logged and reported as a miss
func (e *PredictionEngine) lookup(ctx context.Context, key cache.Key) (models.Prediction, bool) {
	backend := e.store.Name()

	p, ok, err := e.storeGet(ctx, key)
	if err != nil {
		metrics.CacheErrors.WithLabelValues(backend, "get").Inc()
		e.log.Warn().Err(err).Str("key", key.String()).Msg("Cache lookup failed, treating as miss")
		return models.Prediction{}, false
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues(backend).Inc()
		return models.Prediction{}, false
	}

	metrics.CacheHits.WithLabelValues(backend).Inc()
	return p, true
}

func (e *PredictionEngine) computeAndStore(ctx context.Context, key cache.Key, signals models.SignalSet) models.Prediction {
	p, err := e.compute(ctx, signals)
	if err != nil {
		// Degraded results are not cached so the next request gets another chance
		e.log.Error().Err(err).Str("key", key.String()).Msg("Prediction failed, returning default")
		p = DefaultPrediction(e.now())
		metrics.PredictionsTotal.WithLabelValues(p.Source).Inc()
		return p
	}

	metrics.PredictionsTotal.WithLabelValues(p.Source).Inc()
	metrics.PredictionScore.Observe(p.ConcentrationScore)

	if err := e.storePut(ctx, key, p); err != nil {
		metrics.CacheErrors.WithLabelValues(e.store.Name(), "put").Inc()
		e.log.Warn().Err(err).Str("key", key.String()).Msg("Failed to store prediction")
	}

	if e.sink != nil {
		record := &models.PredictionRecord{UserID: key.UserID, Day: key.Day, Prediction: p}
		if err := e.sink.SavePrediction(ctx, record); err != nil {
			e.log.Warn().Err(err).Str("key", key.String()).Msg("Failed to record prediction history")
		}
	}

	e.log.Debug().
		Str("user_id", key.UserID).
		Str("day", key.DayString()).
		Float64("score", p.ConcentrationScore).
		Str("source", p.Source).
		Msg("Prediction computed")

	return p
}

// compute runs feature extraction, scoring and recommendation. Panics become errors.
// The score and confidence are bounded here whatever the scorer returned.
func (e *PredictionEngine) compute(ctx context.Context, signals models.SignalSet) (p models.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in prediction: %v\n%s", r, debug.Stack())
		}
	}()

	resolved := features.Resolve(signals)
	res := e.scorer.Score(ctx, features.Vector(resolved), resolved)

	if !isFinite(res.Score) || math.IsNaN(res.Confidence) {
		return models.Prediction{}, fmt.Errorf("failed to score signals: %w: score=%v confidence=%v",
			ml.ErrInferenceFailure, res.Score, res.Confidence)
	}
	score := ml.ClampScore(res.Score)

	return models.Prediction{
		ConcentrationScore: score,
		Confidence:         ml.ClampConfidence(res.Confidence),
		Recommendations:    recommend.Generate(score, resolved),
		ComputedAt:         e.now(),
		Source:             res.Source,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// storeGet, storePut and storeDelete turn a panicking backend into an error

func (e *PredictionEngine) storeGet(ctx context.Context, key cache.Key) (p models.Prediction, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, ok, err = models.Prediction{}, false, fmt.Errorf("panic in cache get: %v", r)
		}
	}()
	return e.store.Get(ctx, key)
}

func (e *PredictionEngine) storePut(ctx context.Context, key cache.Key, p models.Prediction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in cache put: %v", r)
		}
	}()
	return e.store.Put(ctx, key, p)
}

func (e *PredictionEngine) storeDelete(ctx context.Context, key cache.Key) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in cache delete: %v", r)
		}
	}()
	return e.store.Delete(ctx, key)
}
