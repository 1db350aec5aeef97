package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Sync outcomes recorded per run.
const (
	OutcomeCommitted   = "committed"
	OutcomeUnchanged   = "unchanged"
	OutcomeUnavailable = "unavailable"
	OutcomeInvalid     = "invalid"
	OutcomeFailed      = "failed"
)

// SyncMetric records metadata for a single sync run.
type SyncMetric struct {
	Outcome         string    `json:"outcome"`
	Attempts        int       `json:"attempts"`
	ItemCount       int       `json:"items"`
	SnapshotVersion int64     `json:"snapshot_version"`
	LatencyMS       int64     `json:"latency_ms"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Recorder is implemented by anything that can persist sync metrics.
type Recorder interface {
	RecordSync(ctx context.Context, m SyncMetric) error
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordSync saves a sync metric to the database.
func (s *Store) RecordSync(ctx context.Context, m SyncMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (outcome, attempts, item_count, snapshot_version, latency_ms, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Outcome, m.Attempts, m.ItemCount, m.SnapshotVersion, m.LatencyMS, m.Error, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync metric: %w", err)
	}
	return nil
}

// DailySyncs represents sync totals for a single day.
type DailySyncs struct {
	Date          string
	Total         int
	Committed     int
	Unchanged     int
	Failed        int
	TotalAttempts int
	AvgLatencyMS  int64
}

// GetDailySyncs retrieves sync totals for the last N days, newest first.
func (s *Store) GetDailySyncs(ctx context.Context, days int) ([]DailySyncs, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', timestamp) AS day,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'committed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'unchanged' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome IN ('unavailable', 'invalid', 'failed') THEN 1 ELSE 0 END),
		       SUM(attempts),
		       CAST(AVG(latency_ms) AS INTEGER)
		FROM sync_runs
		WHERE timestamp >= ?
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily syncs: %w", err)
	}
	defer rows.Close()

	var results []DailySyncs
	for rows.Next() {
		var (
			day sql.NullString
			d   DailySyncs
		)
		if err := rows.Scan(&day, &d.Total, &d.Committed, &d.Unchanged, &d.Failed, &d.TotalAttempts, &d.AvgLatencyMS); err != nil {
			return nil, fmt.Errorf("failed to scan daily syncs: %w", err)
		}
		d.Date = "Unknown"
		if day.Valid {
			d.Date = day.String
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// LastSync returns the most recent sync run, or sql.ErrNoRows.
func (s *Store) LastSync(ctx context.Context) (SyncMetric, error) {
	var m SyncMetric
	err := s.db.QueryRowContext(ctx, `
		SELECT outcome, attempts, item_count, snapshot_version, latency_ms, error, timestamp
		FROM sync_runs ORDER BY timestamp DESC, id DESC LIMIT 1`,
	).Scan(&m.Outcome, &m.Attempts, &m.ItemCount, &m.SnapshotVersion, &m.LatencyMS, &m.Error, &m.Timestamp)
	if err != nil {
		return SyncMetric{}, err
	}
	return m, nil
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_runs WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sync metrics: %w", err)
	}
	return res.RowsAffected()
}
