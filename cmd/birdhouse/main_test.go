package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/database"
	"github.com/nerrad567/birdhouse-core/internal/outlet"
)

// writeTestConfig writes a config using the fake GPIO driver and returns its
// path and the database path.
func writeTestConfig(t *testing.T, apiPort int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "birdhouse.db")

	apiSection := "api:\n  enabled: false\n"
	if apiPort > 0 {
		apiSection = fmt.Sprintf("api:\n  enabled: true\n  host: 127.0.0.1\n  port: %d\n", apiPort)
	}

	content := fmt.Sprintf(`
site:
  id: test-site
  timezone: UTC
database:
  path: %q
gpio:
  driver: fake
logging:
  level: error
  format: text
scheduler:
  cycle_interval_ms: 20
motion_timeout: 5
history_days: 7
%s
outlets:
  - id: 17
    name: Heat lamp
    schedule: "0 20 * * *"
    schedule_active: true
  - id: 27
    name: Feeder
    initial_state: true
`, dbPath, apiSection)

	path := filepath.Join(dir, "birdhouse.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path, dbPath
}

// execute runs the CLI with args and returns its standard output.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func openStore(t *testing.T, dbPath string) *outlet.SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return outlet.NewSQLiteRepository(db.DB)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, context.Background(), "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "birdhouse dev") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/birdhouse.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_ConfigFromEnvironment(t *testing.T) {
	path, _ := writeTestConfig(t, 0)
	t.Setenv("BIRDHOUSE_CONFIG", path)

	cfg, got, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if got != path || cfg.GPIO.Driver != "fake" {
		t.Errorf("loadConfig() = %q, driver %q", got, cfg.GPIO.Driver)
	}
}

func TestMigrateCommand(t *testing.T) {
	path, _ := writeTestConfig(t, 0)
	ctx := context.Background()

	out, err := execute(t, ctx, "--config", path, "migrate")
	if err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	for _, want := range []string{"applied  20260301_120000", "applied  20261015_090000"} {
		if !strings.Contains(out, want) {
			t.Errorf("migrate output = %q, missing %q", out, want)
		}
	}

	out, err = execute(t, ctx, "--config", path, "migrate", "--down")
	if err != nil {
		t.Fatalf("migrate --down error = %v", err)
	}
	// One step back: only the newest migration is rolled back.
	for _, want := range []string{"applied  20260301_120000", "pending  20261015_090000"} {
		if !strings.Contains(out, want) {
			t.Errorf("migrate --down output = %q, missing %q", out, want)
		}
	}
}

func TestOutletsSeedAndList(t *testing.T) {
	path, dbPath := writeTestConfig(t, 0)
	ctx := context.Background()

	out, err := execute(t, ctx, "--config", path, "outlets", "seed")
	if err != nil {
		t.Fatalf("outlets seed error = %v", err)
	}
	if !strings.Contains(out, "seeded 2 outlets") {
		t.Errorf("seed output = %q", out)
	}

	// Seeding again is idempotent.
	if _, err := execute(t, ctx, "--config", path, "outlets", "seed"); err != nil {
		t.Fatalf("second seed error = %v", err)
	}
	outlets, err := openStore(t, dbPath).List(ctx)
	if err != nil || len(outlets) != 2 {
		t.Fatalf("List() = %v, %v", outlets, err)
	}

	out, err = execute(t, ctx, "--config", path, "outlets")
	if err != nil {
		t.Fatalf("outlets error = %v", err)
	}
	for _, want := range []string{"Heat lamp", "0 20 * * *", "Feeder", "off"} {
		if !strings.Contains(out, want) {
			t.Errorf("outlets output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	path, dbPath := writeTestConfig(t, 0)
	if _, err := execute(t, context.Background(), "--config", path, "outlets", "seed"); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	events, err := openStore(t, dbPath).ListEvents(context.Background(), 27, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Action != outlet.ActionStartup || !events[0].State {
		t.Errorf("events for outlet 27 = %+v, want one startup event at ON", events)
	}
}

func TestRun_MotionOverHTTP(t *testing.T) {
	port := freePort(t)
	path, dbPath := writeTestConfig(t, port)
	if _, err := execute(t, context.Background(), "--config", path, "outlets", "seed"); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run() error = %v", err)
		}
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d/api/v1", port)
	waitFor(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	resp, err := http.Post(base+"/motion", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /motion error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /motion status = %d, want 202", resp.StatusCode)
	}

	store := openStore(t, dbPath)
	waitFor(t, func() bool {
		o, err := store.Get(context.Background(), 17)
		return err == nil && o.OverrideUntil != nil
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
