package watertemp

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
	"github.com/nerrad567/birdhouse-core/internal/weather"
	_ "github.com/nerrad567/birdhouse-core/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "birdhouse.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

var t0 = time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

type recordingMirror struct {
	mu     sync.Mutex
	temps  []float64
	units  []string
	pubErr error
}

func (m *recordingMirror) WriteWaterTemp(_ time.Time, temperature float64, unit string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temps = append(m.temps, temperature)
	m.units = append(m.units, unit)
}

func (m *recordingMirror) PublishWaterTemp(Sample, string) error {
	return m.pubErr
}

func TestReading_Validate(t *testing.T) {
	tests := []struct {
		name    string
		temp    float64
		wantErr bool
	}{
		{"pond", 14.5, false},
		{"freezing", 0, false},
		{"below freezing", -2.5, false},
		{"sensor minimum", MinCelsius, false},
		{"sensor maximum", MaxCelsius, false},
		{"below range", MinCelsius - 0.1, true},
		{"above range", MaxCelsius + 0.1, true},
		{"not a number", math.NaN(), true},
		{"infinite", math.Inf(1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Reading{Temperature: tt.temp}.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidReading) {
				t.Errorf("Validate() error = %v, want ErrInvalidReading", err)
			}
		})
	}
}

func TestWindow(t *testing.T) {
	loc := time.FixedZone("test", -5*3600)
	now := time.Date(2026, 3, 31, 15, 30, 0, 0, loc)

	tests := []struct {
		period   weather.Period
		wantFrom time.Time
	}{
		{weather.PeriodDaily, time.Date(2026, 3, 31, 0, 0, 0, 0, loc)},
		{weather.PeriodWeekly, time.Date(2026, 3, 24, 0, 0, 0, 0, loc)},
		{weather.PeriodMonthly, time.Date(2026, 3, 3, 0, 0, 0, 0, loc)}, // Feb 31 normalises
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			from, to, err := Window(tt.period, now, loc)
			if err != nil {
				t.Fatalf("Window() error = %v", err)
			}
			if !from.Equal(tt.wantFrom) || !to.Equal(now) {
				t.Errorf("Window() = %v..%v, want %v..%v", from, to, tt.wantFrom, now)
			}
		})
	}

	for _, p := range []weather.Period{weather.PeriodNow, "yearly"} {
		if _, _, err := Window(p, now, loc); !errors.Is(err, ErrUnknownPeriod) {
			t.Errorf("Window(%s) error = %v, want ErrUnknownPeriod", p, err)
		}
	}
}

func TestWindow_UsesLocalMidnight(t *testing.T) {
	// 02:00 UTC is still the previous evening in UTC-5.
	loc := time.FixedZone("test", -5*3600)
	now := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	from, _, err := Window(weather.PeriodDaily, now, loc)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)
	if !from.Equal(want) {
		t.Errorf("daily from = %v, want %v", from, want)
	}
}

func TestIngester_StoresValidReading(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	mirror := &recordingMirror{}
	ing := NewIngester(repo, WithMirror(mirror), WithPublisher(mirror))

	s, err := ing.Ingest(ctx, Reading{Temperature: 10}, t0, 7)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if s.ID == 0 || s.Temperature != 50 {
		t.Errorf("Ingest() = %+v, want stored Fahrenheit sample", s)
	}

	latest, err := repo.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if !latest.RecordedAt.Equal(t0) || latest.Temperature != 50 {
		t.Errorf("Latest() = %+v", latest)
	}
	if len(mirror.temps) != 1 || mirror.units[0] != "F" {
		t.Errorf("mirror got %v %v", mirror.temps, mirror.units)
	}
}

func TestIngester_RejectsInvalidReading(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	mirror := &recordingMirror{}
	ing := NewIngester(repo, WithUnit(weather.Celsius), WithMirror(mirror))

	_, err := ing.Ingest(ctx, Reading{Temperature: 300}, t0, 7)
	if !errors.Is(err, ErrInvalidReading) {
		t.Fatalf("Ingest() error = %v, want ErrInvalidReading", err)
	}
	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Latest() error = %v, want ErrNoSamples after rejection", err)
	}
	if len(mirror.temps) != 0 {
		t.Error("rejected reading must not be mirrored")
	}
}

func TestIngester_RetentionIsInclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))
	ing := NewIngester(repo, WithUnit(weather.Celsius))

	boundary := t0.Add(-7 * 24 * time.Hour)
	for _, at := range []time.Time{
		boundary.Add(-time.Hour),
		boundary,
		boundary.Add(time.Second),
	} {
		if _, err := ing.Ingest(ctx, Reading{Temperature: 9}, at, 0); err != nil {
			t.Fatalf("seeding at %v: %v", at, err)
		}
	}

	if _, err := ing.Ingest(ctx, Reading{Temperature: 11}, t0, 7); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	samples, err := repo.Range(ctx, t0.AddDate(-1, 0, 0), t0)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("Range() returned %d samples, want 2 (boundary sample pruned)", len(samples))
	}
	if !samples[0].RecordedAt.Equal(t0) || !samples[1].RecordedAt.Equal(boundary.Add(time.Second)) {
		t.Errorf("remaining samples = %+v", samples)
	}
}

func TestIngester_PublisherFailureIsNotFatal(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ing := NewIngester(repo, WithPublisher(&recordingMirror{pubErr: errors.New("broker down")}))

	if _, err := ing.Ingest(context.Background(), Reading{Temperature: 12}, t0, 7); err != nil {
		t.Errorf("Ingest() error = %v, want nil", err)
	}
}

func TestIngester_PersistenceFailureLeavesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM water_temp`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO water_temp`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	mirror := &recordingMirror{}
	ing := NewIngester(NewSQLiteRepository(db), WithMirror(mirror))
	_, err = ing.Ingest(context.Background(), Reading{Temperature: 12}, t0, 7)
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Ingest() error = %v, want ErrPersistence", err)
	}
	if len(mirror.temps) != 0 {
		t.Error("failed sample must not be mirrored")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepository_RangeIsInclusiveNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupTestDB(t))

	for i := 0; i < 4; i++ {
		s := &Sample{RecordedAt: t0.Add(time.Duration(i) * time.Hour), Temperature: float64(60 + i)}
		if _, err := repo.PruneAndInsert(ctx, s, time.Time{}); err != nil {
			t.Fatalf("PruneAndInsert() error = %v", err)
		}
	}

	got, err := repo.Range(ctx, t0.Add(time.Hour), t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 2 || got[0].Temperature != 62 || got[1].Temperature != 61 {
		t.Errorf("Range() = %+v, want samples 62 then 61", got)
	}

	empty, err := repo.Range(ctx, t0.Add(24*time.Hour), t0.Add(48*time.Hour))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("Range(empty) = %#v, %v; want non-nil empty slice", empty, err)
	}
}

func TestRepository_LatestEmpty(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	if _, err := repo.Latest(context.Background()); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Latest() error = %v, want ErrNoSamples", err)
	}
}
