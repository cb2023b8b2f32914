package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focus-backend/internal/api"
	"focus-backend/internal/cache"
	"focus-backend/internal/database"
	"focus-backend/internal/logging"
	"focus-backend/internal/ml"
	"focus-backend/internal/mqtt"
	"focus-backend/internal/profile"
	"focus-backend/internal/services"
	"focus-backend/internal/supervisor"
	"focus-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Info().Str("version", cfg.Version).Msg("Starting focus prediction service")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === History sink ===
	var sink database.HistorySink
	if cfg.ClickHouseAddr != "" {
		db, err := database.NewClickHouseDB(ctx, database.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePass,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize ClickHouse")
		}
		sink = db
	} else {
		logging.Warn().Msg("CLICKHOUSE_ADDR not set, history is kept in memory only")
		sink = database.NewMemorySink()
	}
	defer sink.Close()

	// === Supervisor tree ===
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	// === Prediction cache ===
	memory := cache.NewMemory(cache.MemoryConfig{
		Capacity: cfg.CacheMaxEntries,
		TTL:      cfg.CacheTTL,
		Shards:   cfg.CacheShards,
	})
	tree.AddDataService(supervisor.NewCacheJanitorService(memory, cfg.CacheCleanupInterval))

	var store cache.Store = memory
	if cfg.CacheBackend == config.CacheBackendBadger {
		badgerCfg := cache.DefaultBadgerConfig()
		badgerCfg.Dir = cfg.CacheDir
		badgerCfg.TTL = cfg.CacheTTL

		persistent, err := cache.OpenBadger(badgerCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open prediction cache")
		}
		tree.AddDataService(persistent)
		store = cache.NewTiered(memory, persistent)
	}
	defer store.Close()

	logging.Info().Str("backend", store.Name()).Dur("ttl", cfg.CacheTTL).Int("max_entries", cfg.CacheMaxEntries).Msg("Prediction cache ready")

	// === Model adapter ===
	adapter := ml.LoadAdapter(ml.AdapterConfig{
		ModelPath:          cfg.ModelPath,
		InferenceTimeout:   cfg.ModelInferenceTimeout,
		BreakerMaxFailures: uint32(cfg.BreakerMaxFailures),
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	})

	// === Services ===
	engine := services.NewPredictionEngine(store, adapter, services.PredictionEngineConfig{Sink: sink})
	signalService := services.NewSignalService(engine, sink, services.DefaultSignalServiceConfig())

	if cfg.MQTTEnabled {
		tree.AddMessagingService(signalService)
		tree.AddMessagingService(supervisor.NewMQTTService(
			supervisor.MQTTServiceConfig{
				Client: mqtt.ClientConfig{
					Broker:       cfg.MQTTBroker,
					ClientID:     cfg.MQTTClientID,
					Username:     cfg.MQTTUsername,
					Password:     cfg.MQTTPassword,
					UniqueSuffix: true,
				},
				Subscriber: mqtt.SubscriberConfig{SignalTopic: cfg.MQTTTopicSignals},
				Publisher:  mqtt.PublisherConfig{PredictionTopic: cfg.MQTTTopicPrediction},
			},
			signalService.SignalChan,
			signalService.PredictionChan,
		))
	} else {
		logging.Info().Msg("MQTT disabled, serving HTTP only")
	}

	// === HTTP API ===
	handlerCfg := api.DefaultHandlerConfig()
	handlerCfg.ServiceName = cfg.ServiceName
	handlerCfg.Version = cfg.Version
	handlerCfg.ModelPath = cfg.ModelPath

	mwCfg := api.DefaultMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.CORSOrigins
	mwCfg.RateLimitRequests = cfg.RateLimitRequests
	mwCfg.RateLimitWindow = cfg.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.RateLimitDisabled

	handler := api.NewHandler(engine, signalService, profile.NewStore(), adapter, handlerCfg)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler, api.NewMiddleware(mwCfg)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.ShutdownTimeout))

	logging.Info().
		Str("http_addr", cfg.HTTPAddr).
		Bool("mqtt", cfg.MQTTEnabled).
		Str("signal_topic", cfg.MQTTTopicSignals).
		Bool("model_loaded", adapter.HasModel()).
		Msg("Focus prediction service is running")

	// Blocks until SIGINT/SIGTERM
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor stopped unexpectedly")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Some services did not stop in time")
	}

	logging.Info().Msg("Shutdown complete")
}
