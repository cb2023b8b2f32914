package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focus-backend/internal/cache"
	"focus-backend/internal/database"
	"focus-backend/internal/ml"
	"focus-backend/internal/models"
	"focus-backend/internal/profile"
	"focus-backend/internal/services"
)

var now = time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC)

type testServer struct {
	router http.Handler
	sink   *database.MemorySink
	engine *services.PredictionEngine
	model  *ml.Adapter
}

func newTestServer(t *testing.T, modelPath string) *testServer {
	t.Helper()
	clock := func() time.Time { return now }

	sink := database.NewMemorySink()
	adapter := ml.NewAdapter(nil, ml.DefaultAdapterConfig())
	engine := services.NewPredictionEngine(
		cache.NewMemory(cache.DefaultMemoryConfig()),
		adapter,
		services.PredictionEngineConfig{Sink: sink, Clock: clock},
	)
	signals := services.NewSignalService(engine, sink, services.DefaultSignalServiceConfig())

	cfg := DefaultHandlerConfig()
	cfg.Clock = clock
	cfg.ModelPath = modelPath

	mwCfg := DefaultMiddlewareConfig()
	mwCfg.RateLimitDisabled = true

	h := NewHandler(engine, signals, profile.NewStore(), adapter, cfg)
	return &testServer{
		router: NewRouter(h, NewMiddleware(mwCfg)),
		sink:   sink,
		engine: engine,
		model:  adapter,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decode[map[string]any](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["model_loaded"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestPredictConcentration(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/predict/concentration",
		`{"user_id":"u1","heart_rate":55,"sleep_hours":5,"steps":3000,"stress_level":9}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PredictionResponse](t, rec)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, "2024-03-10", resp.Date)
	assert.Equal(t, 38.0, resp.ConcentrationScore)
	assert.Equal(t, 0.7, resp.Confidence)
	assert.Equal(t, models.SourceHeuristic, resp.Source)
	assert.Len(t, resp.Recommendations, 4)
}

func TestPredictConcentration_SameDayIsMemoized(t *testing.T) {
	s := newTestServer(t, "")

	first := s.do(t, http.MethodPost, "/predict/concentration", `{"user_id":"u1","date":"2024-03-01","stress_level":9}`)
	second := s.do(t, http.MethodPost, "/predict/concentration", `{"user_id":"u1","date":"2024-03-01","stress_level":1}`)

	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestPredictConcentration_ValidationErrors(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing user", `{"heart_rate":70}`, CodeValidation},
		{"heart rate too low", `{"user_id":"u1","heart_rate":10}`, CodeValidation},
		{"stress too high", `{"user_id":"u1","stress_level":11}`, CodeValidation},
		{"bad date", `{"user_id":"u1","date":"2024/03/01"}`, CodeValidation},
		{"not json", `heart_rate=70`, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/predict/concentration", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[APIResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestStoreHealthMetrics(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodPost, "/api/health-metrics", `{"user_id":"u1","date":"2024-03-09","heart_rate":66}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[APIResponse](t, rec)
	assert.True(t, resp.Success)

	history := s.sink.Signals("u1")
	require.Len(t, history, 1)
	assert.Equal(t, 66.0, history[0].Signals.HeartRate)
	assert.Equal(t, "2024-03-09", history[0].RecordedAt.Format("2006-01-02"))
}

func TestUserPredictions_DefaultWindow(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/predict/concentration", `{"user_id":"u1","date":"2024-03-08"}`)

	rec := s.do(t, http.MethodGet, "/api/user/u1/predictions", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		StartDate   string                 `json:"start_date"`
		EndDate     string                 `json:"end_date"`
		Predictions []models.DayPrediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-04", body.StartDate)
	assert.Equal(t, "2024-03-10", body.EndDate)
	require.Len(t, body.Predictions, 7)
	assert.Nil(t, body.Predictions[0].Prediction)
	assert.Equal(t, "2024-03-08", body.Predictions[4].Date)
	assert.NotNil(t, body.Predictions[4].Prediction)
}

func TestUserPredictions_RangeValidation(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/api/user/u1/predictions?start_date=2024-03-10&end_date=2024-03-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/u1/predictions?start_date=2024-01-01&end_date=2024-03-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/user/u1/predictions?start_date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidation, decode[APIResponse](t, rec).Error)

	rec = s.do(t, http.MethodGet, "/api/user/u1/predictions?start_date=2024-03-01&end_date=2024-03-31", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidatePrediction(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodPost, "/predict/concentration", `{"user_id":"u1","date":"2024-03-08"}`)

	rec := s.do(t, http.MethodDelete, "/api/user/u1/predictions/2024-03-08", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := s.engine.Lookup(context.Background(), "u1", time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	rec = s.do(t, http.MethodDelete, "/api/user/u1/predictions/not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserProfile(t *testing.T) {
	s := newTestServer(t, "")

	rec := s.do(t, http.MethodGet, "/api/user/u7/profile", "")

	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[models.UserProfile](t, rec)
	assert.Equal(t, "u7", p.UserID)
	assert.Equal(t, profile.DefaultActivityGoal, p.ActivityGoal)
}

func TestReloadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	s := newTestServer(t, path)

	rec := s.do(t, http.MethodPost, "/api/model/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeModelReload, decode[APIResponse](t, rec).Error)

	require.NoError(t, ml.CreateSampleModel(path))
	rec = s.do(t, http.MethodPost, "/api/model/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.model.HasModel())

	rec = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, true, decode[map[string]any](t, rec)["model_loaded"])

}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	s.do(t, http.MethodGet, "/health", "")

	rec := s.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "focus_api_requests_total")
}
