package migrations

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
)

func TestEveryUpHasDown(t *testing.T) {
	ups, err := fs.Glob(Files, "*.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(Files, down); err != nil {
			t.Errorf("%s has no %s", up, down)
		}
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "bh.db"), WALMode: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"outlets", "outlet_events", "weather", "water_temp"} {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			t.Errorf("table %s not usable after Migrate: %v", table, err)
		}
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	for range applied {
		if err := db.MigrateDown(ctx); err != nil {
			t.Fatalf("MigrateDown() error = %v", err)
		}
	}
	if len(pending) != 0 {
		t.Errorf("pending after Migrate = %d, want 0", len(pending))
	}

	var n int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'outlets'").Scan(&n)
	if err != nil || n != 0 {
		t.Errorf("outlets table after full rollback: count=%d err=%v", n, err)
	}
}
