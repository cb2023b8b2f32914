package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-backend/internal/cache"
	"focus-backend/internal/database"
	"focus-backend/internal/ml"
	"focus-backend/internal/models"
	"focus-backend/internal/recommend"
)

var (
	fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day1     = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2     = time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
)

func fixedClock() time.Time { return fixedNow }

// failingModel always errors
type failingModel struct{}

func (failingModel) PredictScore(context.Context, models.FeatureVector) (float64, error) {
	return 0, errors.New("model exploded")
}

func (failingModel) PredictConfidence(context.Context, models.FeatureVector) (float64, error) {
	return 0, errors.New("model exploded")
}

// panicScorer panics from inside the compute path
type panicScorer struct{}

func (panicScorer) Score(context.Context, models.FeatureVector, models.Signals) ml.Result {
	panic("scorer bug")
}

// countingScorer delegates to the heuristic adapter and counts calls
type countingScorer struct {
	inner *ml.Adapter
	calls atomic.Int32
	delay time.Duration
}

func (s *countingScorer) Score(ctx context.Context, fv models.FeatureVector, signals models.Signals) ml.Result {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return s.inner.Score(ctx, fv, signals)
}

// brokenStore fails every operation
type brokenStore struct{ puts atomic.Int32 }

func (s *brokenStore) Get(context.Context, cache.Key) (models.Prediction, bool, error) {
	return models.Prediction{}, false, errors.New("cache unreachable")
}

func (s *brokenStore) Put(context.Context, cache.Key, models.Prediction) error {
	s.puts.Add(1)
	return errors.New("cache unreachable")
}

func (s *brokenStore) Delete(context.Context, cache.Key) error { return errors.New("cache unreachable") }
func (s *brokenStore) Name() string                            { return "broken" }
func (s *brokenStore) Close() error                            { return nil }

// fixedScorer returns the same raw result whatever the input
type fixedScorer struct{ result ml.Result }

func (s fixedScorer) Score(context.Context, models.FeatureVector, models.Signals) ml.Result {
	return s.result
}

// panickingStore panics on every operation
type panickingStore struct{}

func (panickingStore) Get(context.Context, cache.Key) (models.Prediction, bool, error) {
	panic("backend bug")
}

func (panickingStore) Put(context.Context, cache.Key, models.Prediction) error {
	panic("backend bug")
}

func (panickingStore) Delete(context.Context, cache.Key) error { panic("backend bug") }
func (panickingStore) Name() string                            { return "panicking" }
func (panickingStore) Close() error                            { return nil }

var goodDay = models.SignalSet{
	HeartRate: models.Float(72), SleepHours: models.Float(8),
	Steps: models.Float(8000), StressLevel: models.Float(4),
}

var roughDay = models.SignalSet{
	HeartRate: models.Float(55), SleepHours: models.Float(5),
	Steps: models.Float(3000), StressLevel: models.Float(9),
}

func newEngine(scorer Scorer) (*PredictionEngine, *cache.Memory) {
	store := cache.NewMemory(cache.DefaultMemoryConfig())
	return NewPredictionEngine(store, scorer, PredictionEngineConfig{Clock: fixedClock}), store
}

func TestPredict_HeuristicWithoutModel(t *testing.T) {
	engine, _ := newEngine(ml.NewAdapter(nil, ml.DefaultAdapterConfig()))

	p := engine.Predict(context.Background(), "u1", day1, goodDay)

	assert.Equal(t, models.Prediction{
		ConcentrationScore: 83,
		Confidence:         0.7,
		Recommendations:    []string{recommend.AdviceGood, recommend.AdviceRoutine},
		ComputedAt:         fixedNow,
		Source:             models.SourceHeuristic,
	}, p)
}

func TestPredict_SecondCallIsCacheHitEvenWithDifferentSignals(t *testing.T) {
	scorer := &countingScorer{inner: ml.NewAdapter(nil, ml.DefaultAdapterConfig())}
	engine, _ := newEngine(scorer)
	ctx := context.Background()

	first := engine.Predict(ctx, "u1", day1, goodDay)
	second := engine.Predict(ctx, "u1", day1.Add(15*time.Hour), roughDay)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), scorer.calls.Load())

	// a different day is computed from its own signals
	other := engine.Predict(ctx, "u1", day2, roughDay)
	assert.Equal(t, 38.0, other.ConcentrationScore)
	assert.Equal(t, int32(2), scorer.calls.Load())
}

func TestPredict_FailingModelMatchesHeuristic(t *testing.T) {
	withModel, _ := newEngine(ml.NewAdapter(failingModel{}, ml.DefaultAdapterConfig()))
	heuristicOnly, _ := newEngine(ml.NewAdapter(nil, ml.DefaultAdapterConfig()))
	ctx := context.Background()

	assert.Equal(t,
		heuristicOnly.Predict(ctx, "u1", day1, roughDay),
		withModel.Predict(ctx, "u1", day1, roughDay),
	)
}

func TestPredict_PanicYieldsDefaultAndIsNotCached(t *testing.T) {
	engine, store := newEngine(panicScorer{})
	ctx := context.Background()

	p := engine.Predict(ctx, "u1", day1, goodDay)

	assert.Equal(t, DefaultPrediction(fixedNow), p)
	assert.Equal(t, []string{"Take short breaks and keep a steady routine"}, p.Recommendations)
	assert.Equal(t, 0, store.Len())
}

func TestPredict_CacheErrorsAreMisses(t *testing.T) {
	store := &brokenStore{}
	engine := NewPredictionEngine(store, ml.NewAdapter(nil, ml.DefaultAdapterConfig()), PredictionEngineConfig{Clock: fixedClock})

	p := engine.Predict(context.Background(), "u1", day1, roughDay)

	assert.Equal(t, 38.0, p.ConcentrationScore)
	assert.Equal(t, models.SourceHeuristic, p.Source)
	assert.Equal(t, int32(1), store.puts.Load())
}

func TestPredict_BoundsScorerOutput(t *testing.T) {
	tests := []struct {
		name      string
		raw       float64
		wantScore float64
	}{
		{"above range", 150, 100},
		{"below range", -20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			engine, store := newEngine(fixedScorer{ml.Result{Score: tt.raw, Confidence: 3, Source: models.SourceModel}})

			p := engine.Predict(ctx, "u1", day1, goodDay)
			assert.Equal(t, tt.wantScore, p.ConcentrationScore)
			assert.Equal(t, 1.0, p.Confidence)

			cached, ok, err := store.Get(ctx, cache.NewKey("u1", day1))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.wantScore, cached.ConcentrationScore)
			assert.Equal(t, 1.0, cached.Confidence)
		})
	}
}

func TestPredict_NonFiniteScoreYieldsDefault(t *testing.T) {
	for _, raw := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		engine, store := newEngine(fixedScorer{ml.Result{Score: raw, Confidence: 0.9, Source: models.SourceModel}})

		p := engine.Predict(context.Background(), "u1", day1, goodDay)

		assert.Equal(t, DefaultPrediction(fixedNow), p)
		assert.Equal(t, 0, store.Len())
	}
}

func TestPredict_PanickingStoreIsAMiss(t *testing.T) {
	scorer := &countingScorer{inner: ml.NewAdapter(nil, ml.DefaultAdapterConfig())}
	engine := NewPredictionEngine(panickingStore{}, scorer, PredictionEngineConfig{Clock: fixedClock})
	ctx := context.Background()

	var p models.Prediction
	require.NotPanics(t, func() { p = engine.Predict(ctx, "u1", day1, roughDay) })
	assert.Equal(t, 38.0, p.ConcentrationScore)
	assert.Equal(t, models.SourceHeuristic, p.Source)

	// nothing could be cached, so the next call computes again
	engine.Predict(ctx, "u1", day1, roughDay)
	assert.Equal(t, int32(2), scorer.calls.Load())

	assert.Error(t, engine.Invalidate(ctx, "u1", day1))
}

func TestPredict_ConcurrentMissesComputeOnce(t *testing.T) {
	scorer := &countingScorer{inner: ml.NewAdapter(nil, ml.DefaultAdapterConfig()), delay: 50 * time.Millisecond}
	engine, _ := newEngine(scorer)

	const callers = 16
	results := make([]models.Prediction, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Predict(context.Background(), "u1", day1, goodDay)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), scorer.calls.Load())
	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestPredict_RecordsHistory(t *testing.T) {
	sink := database.NewMemorySink()
	store := cache.NewMemory(cache.DefaultMemoryConfig())
	engine := NewPredictionEngine(store, ml.NewAdapter(nil, ml.DefaultAdapterConfig()), PredictionEngineConfig{
		Sink:  sink,
		Clock: fixedClock,
	})
	ctx := context.Background()

	p := engine.Predict(ctx, "u1", day1, goodDay)
	engine.Predict(ctx, "u1", day1, goodDay)

	records := sink.Predictions("u1")
	require.Len(t, records, 1)
	assert.Equal(t, p, records[0].Prediction)
	assert.Equal(t, day1, records[0].Day)
}

func TestInvalidate_ForcesRecompute(t *testing.T) {
	scorer := &countingScorer{inner: ml.NewAdapter(nil, ml.DefaultAdapterConfig())}
	engine, _ := newEngine(scorer)
	ctx := context.Background()

	engine.Predict(ctx, "u1", day1, goodDay)
	require.NoError(t, engine.Invalidate(ctx, "u1", day1))

	_, ok := engine.Lookup(ctx, "u1", day1)
	assert.False(t, ok)

	p := engine.Predict(ctx, "u1", day1, roughDay)
	assert.Equal(t, 38.0, p.ConcentrationScore)
	assert.Equal(t, int32(2), scorer.calls.Load())
}

func TestInvalidate_ReportsStoreErrors(t *testing.T) {
	engine := NewPredictionEngine(&brokenStore{}, ml.NewAdapter(nil, ml.DefaultAdapterConfig()), PredictionEngineConfig{})

	assert.Error(t, engine.Invalidate(context.Background(), "u1", day1))
}

func TestLookupRange(t *testing.T) {
	engine, _ := newEngine(ml.NewAdapter(nil, ml.DefaultAdapterConfig()))
	ctx := context.Background()

	engine.Predict(ctx, "u1", day2, goodDay)

	days := engine.LookupRange(ctx, "u1", day1, day2.AddDate(0, 0, 1))

	require.Len(t, days, 3)
	assert.Equal(t, "2024-03-01", days[0].Date)
	assert.Nil(t, days[0].Prediction)
	assert.Equal(t, "2024-03-02", days[1].Date)
	require.NotNil(t, days[1].Prediction)
	assert.Equal(t, 83.0, days[1].Prediction.ConcentrationScore)
	assert.Nil(t, days[2].Prediction)
}
