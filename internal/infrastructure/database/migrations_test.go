package database

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"
	"time"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useMigrations swaps the package-level migration source for one test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS, MigrationsDir = fsys, dir
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, "testdata")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	before := time.Now().Add(-time.Second)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_outlets") {
		t.Fatal("table test_outlets not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 0 {
		t.Fatalf("applied = %d, pending = %d; want 1, 0", len(applied), len(pending))
	}
	rec := applied[0]
	if rec.Version != "20260101_000000" || rec.Name != "create_test_outlets" {
		t.Errorf("record = %+v", rec)
	}
	if rec.AppliedAt.Before(before) {
		t.Errorf("AppliedAt = %v, want after %v", rec.AppliedAt, before)
	}

	// Idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureRollsBackThatMigration(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"m/20260101_000000_weather.up.sql":   {Data: []byte("CREATE TABLE w (id INTEGER);")},
		"m/20260102_000000_broken.up.sql":    {Data: []byte("CREATE TABLE b (id INTEGER); NOT SQL;")},
		"m/20260103_000000_never_run.up.sql": {Data: []byte("CREATE TABLE n (id INTEGER);")},
	}, "m")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	if !tableExists(t, db, "w") {
		t.Error("first migration should stay committed")
	}
	if tableExists(t, db, "b") || tableExists(t, db, "n") {
		t.Error("broken and later migrations must not leave tables behind")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 2 {
		t.Errorf("applied = %d, pending = %d; want 1, 2", len(applied), len(pending))
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrationsFS, "testdata")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "test_outlets") {
		t.Error("table test_outlets should have been dropped")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("applied = %d, pending = %d; want 0, 1", len(applied), len(pending))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		swap    fstest.MapFS
		wantErr error
	}{
		{
			name: "irreversible",
			files: fstest.MapFS{
				"20260101_000000_seed.up.sql": {Data: []byte("CREATE TABLE s (id INTEGER);")},
			},
			wantErr: ErrIrreversible,
		},
		{
			name: "file removed after apply",
			files: fstest.MapFS{
				"20260101_000000_seed.up.sql":   {Data: []byte("CREATE TABLE s (id INTEGER);")},
				"20260101_000000_seed.down.sql": {Data: []byte("DROP TABLE s;")},
			},
			swap:    fstest.MapFS{},
			wantErr: ErrMigrationNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMigrations(t, tt.files, ".")
			db := openTestDB(t)
			defer db.Close() //nolint:errcheck // test cleanup

			ctx := context.Background()
			if err := db.Migrate(ctx); err != nil {
				t.Fatalf("Migrate() error = %v", err)
			}
			if tt.swap != nil {
				MigrationsFS = tt.swap
			}
			if err := db.MigrateDown(ctx); !errors.Is(err, tt.wantErr) {
				t.Errorf("MigrateDown() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	for name, fsys := range map[string]fs.FS{
		"nil filesystem":    nil,
		"missing directory": fstest.MapFS{},
	} {
		t.Run(name, func(t *testing.T) {
			useMigrations(t, fsys, "migrations")
			db := openTestDB(t)
			defer db.Close() //nolint:errcheck // test cleanup

			if err := db.Migrate(context.Background()); err != nil {
				t.Fatalf("Migrate() error = %v", err)
			}
		})
	}
}

func TestLoadMigrations_Duplicate(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_000000_outlets.up.sql": {Data: []byte("SELECT 1;")},
		"20260101_000000_weather.up.sql": {Data: []byte("SELECT 1;")},
	}, ".")

	if _, err := loadMigrations(); !errors.Is(err, ErrDuplicateMigration) {
		t.Errorf("loadMigrations() error = %v, want ErrDuplicateMigration", err)
	}
}

func TestLoadMigrations_SortedAndPaired(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260302_000000_add_events.up.sql":       {Data: []byte("B")},
		"20260301_120000_initial_schema.up.sql":   {Data: []byte("A")},
		"20260301_120000_initial_schema.down.sql": {Data: []byte("undo A")},
		"20260303_000000_orphan.down.sql":         {Data: []byte("ignored")},
		"README.md":                               {Data: []byte("ignored")},
	}, ".")

	got, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Version != "20260301_120000" || got[0].DownSQL != "undo A" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Name != "add_events" || got[1].DownSQL != "" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"up", "20260301_120000_initial_schema.up.sql", "20260301_120000", true, true},
		{"down", "20260301_120000_initial_schema.down.sql", "20260301_120000", false, true},
		{"not sql", "readme.txt", "", false, false},
		{"missing direction", "20260301_120000_initial_schema.sql", "", false, false},
		{"no version", "invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && (version != tt.wantVersion || isUp != tt.wantIsUp) {
				t.Errorf("got (%q, %v), want (%q, %v)", version, isUp, tt.wantVersion, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260301_120000_initial_schema.up.sql":      "initial_schema",
		"20260302_000000_add_outlet_events.down.sql": "add_outlet_events",
		"weird.up.sql": "weird",
	}
	for filename, want := range tests {
		if got := extractMigrationName(filename); got != want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", filename, got, want)
		}
	}
}
