package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"focus-backend/internal/cache"
	"focus-backend/internal/ml"
	"focus-backend/internal/models"
	"focus-backend/internal/profile"
	"focus-backend/internal/services"
	"focus-backend/internal/validation"
)

const maxBodyBytes = 1 << 20

// HandlerConfig holds configuration for the HTTP handlers
type HandlerConfig struct {
	ServiceName   string
	Version       string
	ModelPath     string           // reloaded by POST /api/model/reload
	DefaultWindow int              // days returned by the predictions endpoint without a range
	MaxWindow     int              // largest accepted range in days
	Clock         func() time.Time // defaults to time.Now
}

// DefaultHandlerConfig returns default configuration
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		ServiceName:   "concentration-prediction-api",
		Version:       "1.0.0",
		ModelPath:     ml.DefaultAdapterConfig().ModelPath,
		DefaultWindow: 7,
		MaxWindow:     31,
	}
}

// Handler serves the HTTP endpoints
type Handler struct {
	engine   *services.PredictionEngine
	signals  *services.SignalService
	profiles *profile.Store
	model    *ml.Adapter
	config   HandlerConfig
}

// NewHandler creates the HTTP handlers
func NewHandler(
	engine *services.PredictionEngine,
	signals *services.SignalService,
	profiles *profile.Store,
	model *ml.Adapter,
	config HandlerConfig,
) *Handler {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.DefaultWindow <= 0 {
		config.DefaultWindow = 7
	}
	if config.MaxWindow <= 0 {
		config.MaxWindow = 31
	}
	return &Handler{
		engine:   engine,
		signals:  signals,
		profiles: profiles,
		model:    model,
		config:   config,
	}
}

// SignalRequest is the body of the prediction and health-metrics endpoints
type SignalRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Date   string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	models.SignalSet
}

// PredictionResponse is a prediction for one user and day
type PredictionResponse struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	models.Prediction
}

// Root reports the service identity
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Focus concentration prediction API",
		"version": h.config.Version,
		"status":  "running",
	})
}

// Health reports liveness and whether a trained model is loaded
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	info := h.model.Info()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"service":       h.config.ServiceName,
		"model_loaded":  info.Loaded,
		"model_version": info.Version,
	})
}

// PredictConcentration returns the memoized prediction for the user and day
func (h *Handler) PredictConcentration(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSignalRequest(w, r)
	if !ok {
		return
	}

	day := h.today()
	if req.Date != "" {
		day, _ = time.Parse(cache.DayLayout, req.Date)
	}

	p := h.engine.Predict(r.Context(), req.UserID, day, req.SignalSet)

	respondJSON(w, http.StatusOK, PredictionResponse{
		UserID:     req.UserID,
		Date:       day.Format(cache.DayLayout),
		Prediction: p,
	})
}

// StoreHealthMetrics appends a signal record to the user's history
func (h *Handler) StoreHealthMetrics(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSignalRequest(w, r)
	if !ok {
		return
	}

	at := h.config.Clock().UTC()
	if req.Date != "" {
		at, _ = time.Parse(cache.DayLayout, req.Date)
	}

	record, err := h.signals.Record(r.Context(), req.UserID, req.SignalSet, at)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to store health metrics", err)
		return
	}

	respondJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Health metrics stored",
		Data: map[string]any{
			"user_id": record.UserID,
			"date":    record.RecordedAt.Format(cache.DayLayout),
		},
	})
}

// UserPredictions lists memoized predictions per day for a date window
func (h *Handler) UserPredictions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	end := h.today()
	if v := r.URL.Query().Get("end_date"); v != "" {
		parsed, err := time.Parse(cache.DayLayout, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, CodeValidation, "end_date must be a date in YYYY-MM-DD format", nil)
			return
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -(h.config.DefaultWindow - 1))
	if v := r.URL.Query().Get("start_date"); v != "" {
		parsed, err := time.Parse(cache.DayLayout, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, CodeValidation, "start_date must be a date in YYYY-MM-DD format", nil)
			return
		}
		start = parsed
	}

	if start.After(end) {
		respondError(w, http.StatusBadRequest, CodeValidation, "start_date must not be after end_date", nil)
		return
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > h.config.MaxWindow {
		respondError(w, http.StatusBadRequest, CodeValidation, "date range is too large", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"start_date":  start.Format(cache.DayLayout),
		"end_date":    end.Format(cache.DayLayout),
		"predictions": h.engine.LookupRange(r.Context(), userID, start, end),
	})
}

// InvalidatePrediction drops one cached day so the next request recomputes it
func (h *Handler) InvalidatePrediction(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	day, err := time.Parse(cache.DayLayout, chi.URLParam(r, "date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, "date must be a date in YYYY-MM-DD format", nil)
		return
	}

	if err := h.engine.Invalidate(r.Context(), userID, day); err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to invalidate prediction", err)
		return
	}

	respondJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Prediction invalidated",
		Data:    map[string]any{"user_id": userID, "date": day.Format(cache.DayLayout)},
	})
}

// UserProfile returns the user's profile, creating a default one on first lookup
func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.profiles.GetOrCreate(r.Context(), chi.URLParam(r, "user_id")))
}

// ReloadModel reloads the trained model from the configured path
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.model.Reload(h.config.ModelPath); err != nil {
		respondError(w, http.StatusInternalServerError, CodeModelReload, "Failed to reload model", err)
		return
	}

	respondJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Model reloaded",
		Data:    h.model.Info(),
	})
}

// decodeSignalRequest decodes and validates the body, writing the error response itself
func (h *Handler) decodeSignalRequest(w http.ResponseWriter, r *http.Request) (*SignalRequest, bool) {
	var req SignalRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil {
		message := "Request body must be a JSON object"
		if errors.Is(err, io.EOF) {
			message = "Request body is empty"
		}
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, message, nil)
		return nil, false
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, verr.Error(), nil)
		return nil, false
	}
	return &req, true
}

// today is the current calendar day in UTC
func (h *Handler) today() time.Time {
	return cache.NewKey("", h.config.Clock().UTC()).Day
}
