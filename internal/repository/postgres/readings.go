package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RMahshie/gsmscope/internal/repository"
	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/google/uuid"
)

const schema = `
	CREATE TABLE IF NOT EXISTS operator_readings (
		id                 UUID PRIMARY KEY,
		cycle_id           UUID NOT NULL,
		cycle              INTEGER NOT NULL,
		operator           TEXT NOT NULL,
		average_power_dbm  DOUBLE PRECISION NOT NULL,
		sample_count       INTEGER NOT NULL,
		min_power_dbm      DOUBLE PRECISION NOT NULL,
		max_power_dbm      DOUBLE PRECISION NOT NULL,
		peak_frequency_mhz DOUBLE PRECISION NOT NULL,
		trend              TEXT NOT NULL,
		recorded_at        TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS operator_readings_operator_recorded_at
		ON operator_readings (operator, recorded_at DESC);`

// PostgresReadingRepository implements ReadingRepository for PostgreSQL
type PostgresReadingRepository struct {
	db *sql.DB
}

// NewPostgresReadingRepository creates a new PostgreSQL reading repository
func NewPostgresReadingRepository(db *sql.DB) repository.ReadingRepository {
	return &PostgresReadingRepository{db: db}
}

// EnsureSchema creates the readings table when missing
func (r *PostgresReadingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// StoreSnapshot inserts one row per operator with data. Stale snapshots carry no
// new measurement and are ignored.
func (r *PostgresReadingRepository) StoreSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.Stale || snap.CycleID == "" {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO operator_readings (id, cycle_id, cycle, operator, average_power_dbm, sample_count,
			min_power_dbm, max_power_dbm, peak_frequency_mhz, trend, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, row := range snap.Rows {
		if row.Reading == nil {
			continue
		}
		recordedAt := row.Reading.Timestamp
		if recordedAt.IsZero() {
			recordedAt = snap.CompletedAt
		}
		_, err := tx.ExecContext(ctx, query,
			uuid.New().String(),
			snap.CycleID,
			snap.Cycle,
			row.Operator,
			row.Reading.AveragePowerDBm,
			row.Reading.SampleCount,
			row.Reading.MinPowerDBm,
			row.Reading.MaxPowerDBm,
			row.Reading.PeakFrequencyMHz,
			string(row.Trend),
			recordedAt)
		if err != nil {
			return fmt.Errorf("failed to store reading for %s: %w", row.Operator, err)
		}
	}

	return tx.Commit()
}

// Recent returns the newest stored readings of operator, most recent first
func (r *PostgresReadingRepository) Recent(ctx context.Context, operator string, limit int) ([]*models.HistoryEntry, error) {
	query := `
		SELECT id, cycle_id, operator, average_power_dbm, sample_count, min_power_dbm,
			max_power_dbm, peak_frequency_mhz, trend, recorded_at
		FROM operator_readings
		WHERE operator = $1
		ORDER BY recorded_at DESC, cycle DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, operator, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*models.HistoryEntry{}
	for rows.Next() {
		var entry models.HistoryEntry
		var trend string

		err := rows.Scan(
			&entry.ID,
			&entry.CycleID,
			&entry.Operator,
			&entry.AveragePowerDBm,
			&entry.SampleCount,
			&entry.MinPowerDBm,
			&entry.MaxPowerDBm,
			&entry.PeakFrequencyMHz,
			&trend,
			&entry.RecordedAt)
		if err != nil {
			return nil, err
		}
		entry.Trend = models.Trend(trend)

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// HistoryObserver stores every published snapshot through a repository
type HistoryObserver struct {
	repo repository.ReadingRepository
}

// NewHistoryObserver wraps repo as a cycle observer
func NewHistoryObserver(repo repository.ReadingRepository) *HistoryObserver {
	return &HistoryObserver{repo: repo}
}

// OnCycle stores the snapshot
func (o *HistoryObserver) OnCycle(ctx context.Context, snap *models.Snapshot) error {
	return o.repo.StoreSnapshot(ctx, snap)
}
