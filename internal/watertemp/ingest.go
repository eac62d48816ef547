package watertemp

import (
	"context"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// Logger defines the logging interface used by the Ingester.
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

// Mirror receives every stored sample, e.g. an InfluxDB writer.
type Mirror interface {
	WriteWaterTemp(recordedAt time.Time, temperature float64, unit string)
}

// Publisher announces every stored sample, e.g. on MQTT.
type Publisher interface {
	PublishWaterTemp(s Sample, unit string) error
}

// Ingester validates readings and appends them to the water temperature log.
type Ingester struct {
	repo      Repository
	unit      weather.Unit
	mirror    Mirror
	publisher Publisher
	logger    Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithUnit sets the stored temperature unit. Default Fahrenheit, matching
// the weather log.
func WithUnit(u weather.Unit) Option {
	return func(i *Ingester) { i.unit = u }
}

// WithMirror forwards stored samples to m.
func WithMirror(m Mirror) Option {
	return func(i *Ingester) { i.mirror = m }
}

// WithPublisher announces stored samples through p.
func WithPublisher(p Publisher) Option {
	return func(i *Ingester) { i.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(i *Ingester) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIngester creates an Ingester writing to repo.
func NewIngester(repo Repository, opts ...Option) *Ingester {
	i := &Ingester{
		repo:   repo,
		unit:   weather.Fahrenheit,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Unit returns the stored temperature unit.
func (i *Ingester) Unit() weather.Unit {
	return i.unit
}

// Ingest validates r and stores it as recorded at now, pruning samples at or
// older than now minus retentionDays in the same transaction. A retentionDays
// of zero or less disables pruning.
//
// Returns ErrInvalidReading (nothing stored) or ErrPersistence (nothing
// stored, nothing pruned). Mirror and publisher failures are logged only.
func (i *Ingester) Ingest(ctx context.Context, r Reading, now time.Time, retentionDays int) (*Sample, error) {
	if err := r.Validate(); err != nil {
		i.logger.Warn("discarding water temperature reading",
			"temperature", r.Temperature,
			"error", err,
		)
		return nil, err
	}

	s := &Sample{
		RecordedAt:  now.UTC(),
		Temperature: i.unit.FromCelsius(r.Temperature),
	}

	var cutoff time.Time
	if retentionDays > 0 {
		cutoff = now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	}

	pruned, err := i.repo.PruneAndInsert(ctx, s, cutoff)
	if err != nil {
		return nil, err
	}

	i.logger.Debug("water temperature stored",
		"temperature", s.Temperature,
		"unit", string(i.unit),
		"pruned", pruned,
	)

	if i.mirror != nil {
		i.mirror.WriteWaterTemp(s.RecordedAt, s.Temperature, string(i.unit))
	}
	if i.publisher != nil {
		if err := i.publisher.PublishWaterTemp(*s, string(i.unit)); err != nil {
			i.logger.Warn("publishing water temperature failed", "error", err)
		}
	}
	return s, nil
}
