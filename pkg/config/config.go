package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"focus-backend/internal/logging"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendBadger = "badger"
)

type Config struct {
	// HTTP Configuration
	HTTPAddr          string
	ServiceName       string
	Version           string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	ShutdownTimeout   time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// MQTT Configuration
	MQTTEnabled         bool
	MQTTBroker          string
	MQTTClientID        string
	MQTTUsername        string
	MQTTPassword        string
	MQTTTopicSignals    string
	MQTTTopicPrediction string

	// ClickHouse Configuration, empty address keeps history in memory
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// ML Model Configuration
	ModelPath             string
	ModelInferenceTimeout time.Duration
	BreakerMaxFailures    int
	BreakerOpenTimeout    time.Duration

	// Prediction Cache Configuration
	CacheBackend         string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheShards          int
	CacheDir             string
	CacheCleanupInterval time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		// HTTP Configuration
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		ServiceName:       getEnv("SERVICE_NAME", "concentration-prediction-api"),
		Version:           getEnv("SERVICE_VERSION", "1.0.0"),
		CORSOrigins:       getEnvList("CORS_ORIGINS", []string{"*"}),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitDisabled: getEnvBool("RATE_LIMIT_DISABLED", false),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// MQTT Configuration
		MQTTEnabled:         getEnvBool("MQTT_ENABLED", true),
		MQTTBroker:          getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", "focus-backend"),
		MQTTUsername:        getEnv("MQTT_USERNAME", ""),
		MQTTPassword:        getEnv("MQTT_PASSWORD", ""),
		MQTTTopicSignals:    getEnv("MQTT_TOPIC_SIGNALS", "focus/+/signals"),
		MQTTTopicPrediction: getEnv("MQTT_TOPIC_PREDICTION", "focus/{user_id}/prediction"),

		// ClickHouse Configuration
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "focus"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		// ML Model Configuration
		ModelPath:             getEnv("MODEL_PATH", "./model/concentration_model.json"),
		ModelInferenceTimeout: getEnvDuration("MODEL_INFERENCE_TIMEOUT", 200*time.Millisecond),
		BreakerMaxFailures:    getEnvInt("MODEL_BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout:    getEnvDuration("MODEL_BREAKER_OPEN_TIMEOUT", 30*time.Second),

		// Prediction Cache Configuration
		CacheBackend:         strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
		CacheTTL:             getEnvDuration("CACHE_TTL", 24*time.Hour),
		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 10000),
		CacheShards:          getEnvInt("CACHE_SHARDS", 16),
		CacheDir:             getEnv("CACHE_DIR", "./data/prediction-cache"),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.CacheBackend != CacheBackendMemory && c.CacheBackend != CacheBackendBadger {
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendBadger, c.CacheBackend))
	}
	if c.CacheBackend == CacheBackendBadger && c.CacheDir == "" {
		errs = append(errs, errors.New("CACHE_DIR is required for the badger cache backend"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.CacheMaxEntries <= 0 {
		errs = append(errs, errors.New("CACHE_MAX_ENTRIES must be positive"))
	}
	if c.CacheShards <= 0 {
		errs = append(errs, errors.New("CACHE_SHARDS must be positive"))
	}
	if c.ModelInferenceTimeout <= 0 {
		errs = append(errs, errors.New("MODEL_INFERENCE_TIMEOUT must be positive"))
	}
	if c.BreakerMaxFailures <= 0 {
		errs = append(errs, errors.New("MODEL_BREAKER_MAX_FAILURES must be positive"))
	}
	if c.RateLimitRequests <= 0 && !c.RateLimitDisabled {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.MQTTEnabled && c.MQTTBroker == "" {
		errs = append(errs, errors.New("MQTT_BROKER is required when MQTT is enabled"))
	}
	if c.MQTTEnabled && !strings.Contains(c.MQTTTopicPrediction, "{user_id}") {
		errs = append(errs, errors.New("MQTT_TOPIC_PREDICTION must contain {user_id}"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to parse int, using default")
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to parse float, using default")
		return defaultValue
	}
	return floatValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to parse bool, using default")
		return defaultValue
	}
	return boolValue
}

// getEnvDuration accepts Go durations ("200ms", "24h") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvFloat(key, -1); secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}

	logging.Warn().Str("key", key).Str("value", value).Msg("Failed to parse duration, using default")
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
