package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a collaborator.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusBackoff  Status = "backoff"
	StatusFailed   Status = "failed"
)

// maxLogLine bounds a single captured output line.
const maxLogLine = 64 << 10

// Config describes one collaborator.
type Config struct {
	// Name is a human-readable identifier for logging, e.g. "motion".
	Name string

	// Command is the executable; Args are passed to it.
	Command string
	Args    []string

	// Env are additional KEY=value pairs on top of the daemon's environment.
	Env []string

	// WorkDir is the working directory; empty inherits the daemon's.
	WorkDir string

	// RestartDelay is the first backoff delay; it doubles per attempt up to
	// MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last to reset the backoff.
	StableThreshold time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OnStart is called each time the process starts.
	OnStart func()
}

// Logger defines the logging interface for the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises one collaborator process.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	output        *sync.WaitGroup
	status        Status
	attempts      int // consecutive restarts since the last stable run
	restarts      int // restarts over the manager's lifetime
	lastError     error
	startTime     time.Time
	stopRequested bool
	stopCh        chan struct{}
	done          chan struct{}
}

// NewManager creates a manager, filling zero durations with defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.MaxRestartDelay <= 0 {
		cfg.MaxRestartDelay = 5 * time.Minute
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = 2 * time.Minute
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Name returns the collaborator name.
func (m *Manager) Name() string {
	return m.config.Name
}

// Start launches the process and supervises it until Stop or ctx ends.
// A failure to launch the first time is returned.
func (m *Manager) Start(ctx context.Context) error {
	if m.config.Command == "" {
		return fmt.Errorf("%w: %s has no command", ErrInvalidConfig, m.config.Name)
	}

	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting || m.status == StatusBackoff {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	if err := m.launch(ctx); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.supervise(ctx)
	return nil
}

func (m *Manager) launch(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, m.config.Command, m.config.Args...) //nolint:gosec // command comes from the operator's config

	// Own process group so Stop reaches grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	cmd.Dir = m.config.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	output := &sync.WaitGroup{}
	output.Add(2)
	go m.captureOutput(output, "stdout", stdout)
	go m.captureOutput(output, "stderr", stderr)

	m.mu.Lock()
	m.cmd = cmd
	m.output = output
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()

	m.logger.Info("collaborator started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)
	if m.config.OnStart != nil {
		m.config.OnStart()
	}
	return nil
}

// captureOutput logs each line the process writes.
func (m *Manager) captureOutput(wg *sync.WaitGroup, stream string, r io.Reader) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLogLine)
	for sc.Scan() {
		m.logger.Info("collaborator output",
			"name", m.config.Name,
			"stream", stream,
			"line", sc.Text(),
		)
	}
}

// supervise waits for each run to end and restarts it with backoff.
func (m *Manager) supervise(ctx context.Context) {
	defer close(m.done)

	for {
		m.mu.RLock()
		cmd, output := m.cmd, m.output
		m.mu.RUnlock()

		// Pipes must be drained before Wait closes them.
		output.Wait()
		err := cmd.Wait()

		m.mu.Lock()
		stopRequested := m.stopRequested
		ranFor := time.Since(m.startTime)
		m.mu.Unlock()

		if stopRequested || ctx.Err() != nil {
			m.setStopped(nil)
			m.logger.Info("collaborator stopped", "name", m.config.Name)
			return
		}

		m.logger.Warn("collaborator exited unexpectedly",
			"name", m.config.Name,
			"error", err,
			"ran_for", ranFor.Round(time.Millisecond),
		)

		if !IsRecoverable(err) {
			m.setFailed(err)
			return
		}

		m.mu.Lock()
		m.lastError = err
		if ranFor >= m.config.StableThreshold {
			m.attempts = 0
		}
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		if m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts {
			m.logger.Error("collaborator restart limit reached",
				"name", m.config.Name,
				"attempts", attempt-1,
			)
			m.setFailed(err)
			return
		}

		m.mu.Lock()
		m.restarts++
		m.status = StatusBackoff
		m.mu.Unlock()

		delay := m.calculateBackoffDelay(attempt)
		m.logger.Info("restarting collaborator",
			"name", m.config.Name,
			"attempt", attempt,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			m.setStopped(nil)
			return
		case <-m.stopCh:
			m.setStopped(nil)
			return
		case <-time.After(delay):
		}

		for {
			if err := m.launch(ctx); err == nil {
				break
			} else if !m.waitRetry(ctx, err) {
				return
			}
		}
	}
}

// waitRetry records a failed relaunch and sleeps the next backoff step.
// It returns false when supervision should end.
func (m *Manager) waitRetry(ctx context.Context, err error) bool {
	m.logger.Error("failed to restart collaborator", "name", m.config.Name, "error", err)

	m.mu.Lock()
	m.lastError = err
	m.attempts++
	attempt := m.attempts
	stop := m.stopRequested
	m.mu.Unlock()

	if stop || (m.config.MaxRestartAttempts > 0 && attempt > m.config.MaxRestartAttempts) {
		m.setFailed(err)
		return false
	}
	select {
	case <-ctx.Done():
		m.setStopped(nil)
		return false
	case <-m.stopCh:
		m.setStopped(nil)
		return false
	case <-time.After(m.calculateBackoffDelay(attempt)):
		return true
	}
}

func (m *Manager) setStopped(err error) {
	m.mu.Lock()
	m.status = StatusStopped
	if err != nil {
		m.lastError = err
	}
	m.mu.Unlock()
}

func (m *Manager) setFailed(err error) {
	m.mu.Lock()
	m.status = StatusFailed
	m.lastError = err
	m.mu.Unlock()
}

// calculateBackoffDelay returns RestartDelay * 2^(attempt-1), capped at
// MaxRestartDelay.
func (m *Manager) calculateBackoffDelay(attempt int) time.Duration {
	delay := m.config.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= m.config.MaxRestartDelay {
			return m.config.MaxRestartDelay
		}
	}
	return delay
}

// Stop terminates the process group: SIGTERM, then SIGKILL after
// GracefulTimeout. It waits for supervision to end.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.stopRequested && m.stopCh != nil {
		close(m.stopCh)
	}
	m.stopRequested = true
	cmd := m.cmd
	done := m.done
	status := m.status
	m.mu.Unlock()

	if done == nil || status == StatusStopped || status == StatusFailed {
		return nil
	}
	if cmd == nil || cmd.Process == nil || status == StatusBackoff {
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	m.logger.Info("stopping collaborator", "name", m.config.Name, "pid", pid)

	// Negative PID signals the whole group created via Setpgid.
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		m.logger.Warn("failed to send SIGTERM", "name", m.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(m.config.GracefulTimeout):
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", m.config.Name,
			"timeout", m.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", m.config.Name, err)
	}
	<-done
	return nil
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// Stats describes a collaborator for the API.
type Stats struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	PID       int    `json:"pid,omitempty"`
	UptimeSec int64  `json:"uptime_seconds,omitempty"`
	Restarts  int    `json:"restarts"`
	LastError string `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:     m.config.Name,
		Status:   m.status,
		Restarts: m.restarts,
	}
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		stats.PID = m.cmd.Process.Pid
		stats.UptimeSec = int64(time.Since(m.startTime).Seconds())
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}
