package controlloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/automation"
	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// Logger defines the logging interface used by the Loop.
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

// Scheduler is the outlet scheduler.
type Scheduler interface {
	Start(ctx context.Context, now time.Time) error
	RunCycle(ctx context.Context, now time.Time) (automation.CycleReport, error)
}

// Overrider applies motion events.
type Overrider interface {
	OnMotionDetected(ctx context.Context, now time.Time, minutes int) (automation.OverrideResult, error)
}

// Ingester stores sensor readings.
type Ingester interface {
	Ingest(ctx context.Context, r weather.Reading, now time.Time, retentionDays int) (*weather.Sample, error)
}

// WaterIngester stores water temperature readings.
type WaterIngester interface {
	Ingest(ctx context.Context, r watertemp.Reading, now time.Time, retentionDays int) (*watertemp.Sample, error)
}

// EventPruner trims outlet history at start-up.
type EventPruner interface {
	PruneEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder receives per-iteration results, e.g. Prometheus collectors.
type Recorder interface {
	ObserveCycle(report automation.CycleReport, took time.Duration, err error)
	ObserveMotion(res automation.OverrideResult, err error)
	ObserveWeather(s *weather.Sample, err error)
	ObserveWaterTemp(s *watertemp.Sample, err error)
}

// Config holds loop timing and retention settings.
type Config struct {
	// CycleInterval is the pause between iterations.
	CycleInterval time.Duration

	// SampleInterval is the nominal weather sampling period.
	SampleInterval time.Duration

	// MotionTimeout is the override duration in minutes.
	MotionTimeout int

	// HistoryDays is the retention horizon for weather and water temperature
	// samples and outlet events.
	HistoryDays int
}

// Loop is the single-threaded control loop.
type Loop struct {
	cfg       Config
	scheduler Scheduler
	overrider Overrider
	ingester  Ingester
	water     WaterIngester
	inputs    *Inputs
	pruner    EventPruner
	recorder  Recorder
	logger    Logger
	now       func() time.Time

	nextSample time.Time
}

// Option configures a Loop.
type Option func(*Loop)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) { l.recorder = r }
}

// WithWaterIngester stores pending water temperature readings on the
// weather sampling timer.
func WithWaterIngester(w WaterIngester) Option {
	return func(l *Loop) { l.water = w }
}

// WithEventPruner prunes outlet history older than HistoryDays at start-up.
func WithEventPruner(p EventPruner) Option {
	return func(l *Loop) { l.pruner = p }
}

// WithLogger sets the logger.
func WithLogger(log Logger) Option {
	return func(l *Loop) {
		if log != nil {
			l.logger = log
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// New creates a control loop.
func New(cfg Config, scheduler Scheduler, overrider Overrider, ingester Ingester, inputs *Inputs, opts ...Option) *Loop {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = time.Second
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 5 * time.Second
	}
	l := &Loop{
		cfg:       cfg,
		scheduler: scheduler,
		overrider: overrider,
		ingester:  ingester,
		inputs:    inputs,
		logger:    noopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run initialises the outlets and iterates until ctx is cancelled.
//
// A start-up persistence failure is returned. Errors inside iterations are
// logged and the loop continues; the next iteration re-reads the store.
// No outlet is reset on exit.
func (l *Loop) Run(ctx context.Context) error {
	start := l.now()

	if l.pruner != nil && l.cfg.HistoryDays > 0 {
		cutoff := start.Add(-time.Duration(l.cfg.HistoryDays) * 24 * time.Hour)
		if n, err := l.pruner.PruneEvents(ctx, cutoff); err != nil {
			l.logger.Warn("pruning outlet history failed", "error", err)
		} else if n > 0 {
			l.logger.Info("outlet history pruned", "removed", n)
		}
	}

	if err := l.scheduler.Start(ctx, start); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	ticker := time.NewTicker(l.cfg.CycleInterval)
	defer ticker.Stop()

	l.logger.Info("control loop started",
		"cycle_interval", l.cfg.CycleInterval,
		"sample_interval", l.cfg.SampleInterval,
	)

	for {
		if err := l.Iterate(ctx, l.now()); err != nil {
			l.logger.Error("control loop iteration failed", "error", err)
		}

		select {
		case <-ctx.Done():
			l.logger.Info("control loop stopped")
			return nil
		case <-ticker.C:
		case <-l.inputs.Wake():
		}
	}
}

// Iterate runs one iteration at now: sensor ingest if due, override if
// motion is pending, then one scheduler cycle. Every step runs even if an
// earlier one failed; the failures are joined.
func (l *Loop) Iterate(ctx context.Context, now time.Time) error {
	var errs []error

	if l.sampleDue(now) {
		if err := l.ingest(ctx, now); err != nil {
			errs = append(errs, err)
		}
		if err := l.ingestWater(ctx, now); err != nil {
			errs = append(errs, err)
		}
	}

	if l.inputs.TakeMotion() {
		res, err := l.overrider.OnMotionDetected(ctx, now, l.cfg.MotionTimeout)
		if l.recorder != nil {
			l.recorder.ObserveMotion(res, err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("motion override: %w", err))
		}
	}

	started := time.Now()
	report, err := l.scheduler.RunCycle(ctx, now)
	if l.recorder != nil {
		l.recorder.ObserveCycle(report, time.Since(started), err)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("scheduler cycle: %w", err))
	}

	return errors.Join(errs...)
}

// sampleDue compares now against the next-due time and advances it. When
// several periods were missed the timer fires once and realigns to now.
func (l *Loop) sampleDue(now time.Time) bool {
	if !l.nextSample.IsZero() && now.Before(l.nextSample) {
		return false
	}
	next := l.nextSample.Add(l.cfg.SampleInterval)
	if l.nextSample.IsZero() || !next.After(now) {
		next = now.Add(l.cfg.SampleInterval)
	}
	l.nextSample = next
	return true
}

// NextSample returns when weather ingest is next due.
func (l *Loop) NextSample() time.Time {
	return l.nextSample
}

func (l *Loop) ingest(ctx context.Context, now time.Time) error {
	reading, ok := l.inputs.TakeReading()
	if !ok {
		return nil
	}

	sample, err := l.ingester.Ingest(ctx, reading, now, l.cfg.HistoryDays)
	if l.recorder != nil {
		l.recorder.ObserveWeather(sample, err)
	}
	if err != nil {
		if errors.Is(err, weather.ErrInvalidReading) {
			// Already reported by the ingester; no retry.
			return nil
		}
		return fmt.Errorf("weather ingest: %w", err)
	}
	return nil
}

func (l *Loop) ingestWater(ctx context.Context, now time.Time) error {
	if l.water == nil {
		return nil
	}
	reading, ok := l.inputs.TakeWaterReading()
	if !ok {
		return nil
	}

	sample, err := l.water.Ingest(ctx, reading, now, l.cfg.HistoryDays)
	if l.recorder != nil {
		l.recorder.ObserveWaterTemp(sample, err)
	}
	if err != nil {
		if errors.Is(err, watertemp.ErrInvalidReading) {
			return nil
		}
		return fmt.Errorf("water temperature ingest: %w", err)
	}
	return nil
}
