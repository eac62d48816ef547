package weather

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
)

// Repository defines the interface for weather persistence.
type Repository interface {
	// PruneAndInsert deletes samples recorded at or before cutoff and inserts s,
	// in one transaction. A zero cutoff skips pruning.
	PruneAndInsert(ctx context.Context, s *Sample, cutoff time.Time) (pruned int64, err error)
	Latest(ctx context.Context) (*Sample, error)
	// Range returns samples with from <= recorded_at <= to, newest first.
	Range(ctx context.Context, from, to time.Time) ([]Sample, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// PruneAndInsert applies retention and appends a sample atomically.
func (r *SQLiteRepository) PruneAndInsert(ctx context.Context, s *Sample, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var pruned int64
	if !cutoff.IsZero() {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM weather WHERE recorded_at <= ?`, database.FormatTime(cutoff))
		if err != nil {
			return 0, fmt.Errorf("%w: pruning samples: %w", ErrPersistence, err)
		}
		if pruned, err = result.RowsAffected(); err != nil {
			return 0, fmt.Errorf("%w: checking rows affected: %w", ErrPersistence, err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO weather (recorded_at, humidity, temperature) VALUES (?, ?, ?)`,
		database.FormatTime(s.RecordedAt), s.Humidity, s.Temperature,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting sample: %w", ErrPersistence, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: reading sample id: %w", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing sample: %w", ErrPersistence, err)
	}
	s.ID = id
	return pruned, nil
}

// Latest returns the most recent sample.
func (r *SQLiteRepository) Latest(ctx context.Context) (*Sample, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, recorded_at, humidity, temperature
		FROM weather ORDER BY recorded_at DESC, id DESC LIMIT 1`)
	s, err := scanSample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSamples
		}
		return nil, fmt.Errorf("%w: querying latest sample: %w", ErrPersistence, err)
	}
	return s, nil
}

// Range returns samples between from and to inclusive, newest first.
func (r *SQLiteRepository) Range(ctx context.Context, from, to time.Time) ([]Sample, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recorded_at, humidity, temperature
		FROM weather
		WHERE recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at DESC, id DESC`,
		database.FormatTime(from), database.FormatTime(to))
	if err != nil {
		return nil, fmt.Errorf("%w: querying samples: %w", ErrPersistence, err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning sample: %w", ErrPersistence, err)
		}
		samples = append(samples, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating samples: %w", ErrPersistence, err)
	}
	return samples, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*Sample, error) {
	var (
		s          Sample
		recordedAt string
	)
	if err := row.Scan(&s.ID, &recordedAt, &s.Humidity, &s.Temperature); err != nil {
		return nil, err
	}
	t, err := database.ParseTime(recordedAt)
	if err != nil {
		return nil, err
	}
	s.RecordedAt = t
	return &s, nil
}
