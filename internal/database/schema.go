package database

// SQL schemas for all ClickHouse tables

const (
	// SignalHistoryTableSQL creates the signal_history table
	SignalHistoryTableSQL = `
		CREATE TABLE IF NOT EXISTS signal_history (
			recorded_at DateTime64(3),
			user_id String,
			heart_rate Float64,
			sleep_hours Float64,
			steps Float64,
			stress_level Float64,
			activity_level Float64,
			caffeine_intake Float64,
			water_intake Float64
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(recorded_at)
		ORDER BY (user_id, recorded_at)
	`

	// PredictionHistoryTableSQL creates the prediction_history table.
	// Recommendations are stored as a JSON array string.
	PredictionHistoryTableSQL = `
		CREATE TABLE IF NOT EXISTS prediction_history (
			computed_at DateTime64(3),
			day Date,
			user_id String,
			concentration_score Float64,
			confidence Float64,
			source LowCardinality(String),
			recommendations String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(day)
		ORDER BY (user_id, day, computed_at)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		SignalHistoryTableSQL,
		PredictionHistoryTableSQL,
	}
}
