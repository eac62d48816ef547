package outlet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
)

// Repository defines the interface for outlet persistence.
type Repository interface {
	// List returns every outlet from a single consistent read.
	List(ctx context.Context) ([]Outlet, error)
	Get(ctx context.Context, id int) (*Outlet, error)

	// SetOverrideUntil sets override_until on every outlet in one transaction
	// and returns the IDs of outlets that were not already overridden at at.
	SetOverrideUntil(ctx context.Context, until, at time.Time) ([]int, error)

	// SetLastRan moves last_ran forward.
	SetLastRan(ctx context.Context, id int, at time.Time) error

	// RecordEvents appends physical state changes to the history.
	RecordEvents(ctx context.Context, events []Event) error

	ListEvents(ctx context.Context, outletID, limit int) ([]Event, error)
	PruneEvents(ctx context.Context, cutoff time.Time) (int64, error)

	// Upsert creates or redefines an outlet. Runtime timestamps are untouched.
	Upsert(ctx context.Context, o *Outlet) error
}

const outletColumns = `id, name, schedule, override_until, last_ran, initial_state, schedule_active`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List retrieves all outlets ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Outlet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+outletColumns+` FROM outlets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying outlets: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var outlets []Outlet
	for rows.Next() {
		o, err := scanOutlet(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning outlet: %w", ErrPersistence, err)
		}
		outlets = append(outlets, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating outlets: %w", ErrPersistence, err)
	}
	return outlets, nil
}

// Get retrieves one outlet by pin number.
func (r *SQLiteRepository) Get(ctx context.Context, id int) (*Outlet, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+outletColumns+` FROM outlets WHERE id = ?`, id)
	o, err := scanOutlet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOutletNotFound
		}
		return nil, fmt.Errorf("%w: querying outlet %d: %w", ErrPersistence, id, err)
	}
	return o, nil
}

// SetOverrideUntil applies a motion override to all outlets atomically.
//
// Parameters:
//   - until: new override_until for every outlet
//   - at: time of the motion event; outlets whose override had lapsed by
//     then are reported as entering override
//
// No history is written here: the caller records an override event for
// each entering outlet once its relay has actually been driven on.
//
// Returns:
//   - []int: IDs of outlets newly entering override, ascending
//   - error: wraps ErrPersistence; no row is changed on failure
func (r *SQLiteRepository) SetOverrideUntil(ctx context.Context, until, at time.Time) ([]int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	atStr := database.FormatTime(at)

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM outlets WHERE override_until IS NULL OR override_until <= ? ORDER BY id`, atStr)
	if err != nil {
		return nil, fmt.Errorf("%w: querying lapsed overrides: %w", ErrPersistence, err)
	}
	var entering []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning outlet id: %w", ErrPersistence, err)
		}
		entering = append(entering, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: iterating outlet ids: %w", ErrPersistence, err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`UPDATE outlets SET override_until = ?, updated_at = ?`,
		database.FormatTime(until), atStr,
	); err != nil {
		return nil, fmt.Errorf("%w: updating override_until: %w", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing override: %w", ErrPersistence, err)
	}
	return entering, nil
}

// SetLastRan stamps a scheduler toggle before the relay is written, so a
// crash between the two cannot let the outlet toggle again inside the
// debounce window. The toggle event is recorded separately, after the write.
//
// last_ran only moves forward: a value earlier than the stored one is
// rejected with ErrLastRanRegression and nothing is written.
func (r *SQLiteRepository) SetLastRan(ctx context.Context, id int, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	atStr := database.FormatTime(at)
	result, err := tx.ExecContext(ctx,
		`UPDATE outlets SET last_ran = ?, updated_at = ?
		 WHERE id = ? AND (last_ran IS NULL OR last_ran <= ?)`,
		atStr, atStr, id, atStr,
	)
	if err != nil {
		return fmt.Errorf("%w: updating last_ran: %w", ErrPersistence, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking rows affected: %w", ErrPersistence, err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM outlets WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOutletNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: checking outlet %d: %w", ErrPersistence, id, err)
		}
		return fmt.Errorf("%w: outlet %d at %s", ErrLastRanRegression, id, atStr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing last_ran: %w", ErrPersistence, err)
	}
	return nil
}

// RecordEvents writes events in a single transaction: all of them or none.
// Events without an ID get a fresh UUID.
func (r *SQLiteRepository) RecordEvents(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrPersistence, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, e := range events {
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing events: %w", ErrPersistence, err)
	}
	return nil
}

// ListEvents returns the most recent events for an outlet, newest first.
// A limit of zero or less means no limit.
func (r *SQLiteRepository) ListEvents(ctx context.Context, outletID, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, outlet_id, action, state, source, created_at
		FROM outlet_events
		WHERE outlet_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, outletID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying events: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			action    string
			state     int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.OutletID, &action, &state, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scanning event: %w", ErrPersistence, err)
		}
		e.Action = Action(action)
		e.State = state == 1
		if e.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating events: %w", ErrPersistence, err)
	}
	return events, nil
}

// PruneEvents deletes events created at or before cutoff.
func (r *SQLiteRepository) PruneEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outlet_events WHERE created_at <= ?`, database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("%w: pruning events: %w", ErrPersistence, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: checking rows affected: %w", ErrPersistence, err)
	}
	return n, nil
}

// Upsert inserts an outlet or updates its definition columns.
func (r *SQLiteRepository) Upsert(ctx context.Context, o *Outlet) error {
	if o.ID <= 0 {
		return fmt.Errorf("%w: id must be a positive GPIO pin, got %d", ErrInvalidOutlet, o.ID)
	}
	if o.Name == "" {
		return fmt.Errorf("%w: outlet %d has no name", ErrInvalidOutlet, o.ID)
	}

	now := database.FormatTime(time.Now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outlets (id, name, schedule, initial_state, schedule_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			initial_state = excluded.initial_state,
			schedule_active = excluded.schedule_active,
			updated_at = excluded.updated_at`,
		o.ID, o.Name, o.Schedule, boolToInt(o.InitialState), boolToInt(o.ScheduleActive), now, now,
	)
	if err != nil {
		return fmt.Errorf("%w: upserting outlet %d: %w", ErrPersistence, o.ID, err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, e Event) error {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outlet_events (id, outlet_id, action, state, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, e.OutletID, string(e.Action), boolToInt(e.State), e.Source, database.FormatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: recording %s event for outlet %d: %w", ErrPersistence, e.Action, e.OutletID, err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutlet(row rowScanner) (*Outlet, error) {
	var (
		o              Outlet
		overrideUntil  sql.NullString
		lastRan        sql.NullString
		initialState   int
		scheduleActive int
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Schedule, &overrideUntil, &lastRan, &initialState, &scheduleActive); err != nil {
		return nil, err
	}

	var err error
	if o.OverrideUntil, err = database.ScanNullTime(overrideUntil); err != nil {
		return nil, fmt.Errorf("override_until: %w", err)
	}
	if o.LastRan, err = database.ScanNullTime(lastRan); err != nil {
		return nil, fmt.Errorf("last_ran: %w", err)
	}
	o.InitialState = initialState == 1
	o.ScheduleActive = scheduleActive == 1
	return &o, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
