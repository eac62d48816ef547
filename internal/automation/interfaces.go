package automation

import (
	"context"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/outlet"
)

// Logger defines the logging interface used by the Engine and OverrideController.
// This allows the package to remain decoupled from specific logging implementations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Matcher decides whether a cron expression fires at a given minute.
type Matcher interface {
	Matches(expr string, t time.Time) (bool, error)
}

// Switch is the physical outlet sink, addressed by GPIO pin.
type Switch interface {
	ReadState(pin int) (bool, error)
	WriteState(pin int, on bool) error
}

// Store is the subset of outlet persistence the engine needs.
type Store interface {
	List(ctx context.Context) ([]outlet.Outlet, error)
	SetOverrideUntil(ctx context.Context, until, at time.Time) ([]int, error)
	SetLastRan(ctx context.Context, id int, at time.Time) error
	RecordEvents(ctx context.Context, events []outlet.Event) error
}

// StateListener is told about every physical level the engine writes.
// Implementations must not block; the MQTT bridge publishes asynchronously.
type StateListener interface {
	OutletStateChanged(id int, on bool, source string)
}

// Listeners fans a state change out to several listeners in order.
type Listeners []StateListener

// OutletStateChanged implements StateListener.
func (ls Listeners) OutletStateChanged(id int, on bool, source string) {
	for _, l := range ls {
		if l != nil {
			l.OutletStateChanged(id, on, source)
		}
	}
}
