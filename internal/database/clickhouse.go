package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/goccy/go-json"

	"focus-backend/internal/logging"
	"focus-backend/internal/metrics"
	"focus-backend/internal/models"
)

// ClickHouseConfig holds connection settings
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB connects to ClickHouse and creates the tables if needed
func NewClickHouseDB(ctx context.Context, config ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logging.Info().Str("addr", config.Addr).Str("database", config.Database).Msg("Connected to ClickHouse")

	db := &ClickHouseDB{conn: conn}
	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	logging.Info().Msg("Database schema initialized successfully")
	return nil
}

// SaveSignals appends a raw signal record to signal_history
func (db *ClickHouseDB) SaveSignals(ctx context.Context, record *models.HistoryRecord) error {
	query := `
		INSERT INTO signal_history (recorded_at, user_id, heart_rate, sleep_hours, steps,
			stress_level, activity_level, caffeine_intake, water_intake)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	s := record.Signals
	err := db.conn.Exec(ctx, query,
		record.RecordedAt,
		record.UserID,
		s.HeartRate,
		s.SleepHours,
		s.Steps,
		s.StressLevel,
		s.ActivityLevel,
		s.CaffeineIntake,
		s.WaterIntake,
	)
	if err != nil {
		metrics.HistoryWrites.WithLabelValues("signals", "error").Inc()
		return fmt.Errorf("failed to insert signal record: %w", err)
	}

	metrics.HistoryWrites.WithLabelValues("signals", "ok").Inc()
	return nil
}

// SavePrediction appends a computed prediction to prediction_history
func (db *ClickHouseDB) SavePrediction(ctx context.Context, record *models.PredictionRecord) error {
	recs, err := json.Marshal(record.Prediction.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	query := `
		INSERT INTO prediction_history (computed_at, day, user_id, concentration_score,
			confidence, source, recommendations)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	p := record.Prediction
	err = db.conn.Exec(ctx, query,
		p.ComputedAt,
		record.Day,
		record.UserID,
		p.ConcentrationScore,
		p.Confidence,
		p.Source,
		string(recs),
	)
	if err != nil {
		metrics.HistoryWrites.WithLabelValues("prediction", "error").Inc()
		return fmt.Errorf("failed to insert prediction record: %w", err)
	}

	metrics.HistoryWrites.WithLabelValues("prediction", "ok").Inc()
	return nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	return db.conn.Close()
}
