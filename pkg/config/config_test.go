package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("MODEL_INFERENCE_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 10000, cfg.CacheMaxEntries)
	assert.Equal(t, 200*time.Millisecond, cfg.ModelInferenceTimeout)
	assert.Equal(t, "focus/+/signals", cfg.MQTTTopicSignals)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "Badger")
	t.Setenv("CACHE_TTL", "2h")
	t.Setenv("CACHE_MAX_ENTRIES", "500")
	t.Setenv("MODEL_INFERENCE_TIMEOUT", "0.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("MQTT_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, CacheBackendBadger, cfg.CacheBackend)
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 500, cfg.CacheMaxEntries)
	assert.Equal(t, 500*time.Millisecond, cfg.ModelInferenceTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.MQTTEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "lots")
	t.Setenv("RATE_LIMIT_DISABLED", "maybe")
	t.Setenv("CACHE_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 10000, cfg.CacheMaxEntries)
	assert.False(t, cfg.RateLimitDisabled)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestValidate_RejectsNonsense(t *testing.T) {
	cfg := Load()
	cfg.CacheBackend = "redis"
	cfg.CacheTTL = 0
	cfg.MQTTTopicPrediction = "focus/prediction"

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
	assert.Contains(t, err.Error(), "CACHE_TTL")
	assert.Contains(t, err.Error(), "MQTT_TOPIC_PREDICTION")
}
