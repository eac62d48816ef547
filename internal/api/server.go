package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/config"
	"github.com/nerrad567/birdhouse-core/internal/infrastructure/logging"
	"github.com/nerrad567/birdhouse-core/internal/outlet"
	"github.com/nerrad567/birdhouse-core/internal/process"
	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// OutletReader is the read side of the outlet store.
type OutletReader interface {
	List(ctx context.Context) ([]outlet.Outlet, error)
	Get(ctx context.Context, id int) (*outlet.Outlet, error)
	ListEvents(ctx context.Context, outletID, limit int) ([]outlet.Event, error)
}

// StateReader reads the live level of an outlet pin.
type StateReader interface {
	ReadState(pin int) (bool, error)
}

// MotionSignaler raises the pending-motion flag.
type MotionSignaler interface {
	SignalMotion()
}

// HealthChecker is a dependency whose health is reported by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionReporter reports broker connectivity.
type ConnectionReporter interface {
	IsConnected() bool
}

// ProcessReporter lists supervised collaborator processes.
type ProcessReporter interface {
	Stats() []process.Stats
}

// DBStatsProvider exposes connection pool statistics.
type DBStatsProvider interface {
	HealthChecker
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Outlets  OutletReader
	Weather  weather.Repository
	Unit     weather.Unit
	Location *time.Location

	// Optional dependencies.
	WaterTemp watertemp.Repository
	Switch    StateReader
	Motion    MotionSignaler
	Gatherer  prometheus.Gatherer
	DB        DBStatsProvider
	MQTT      ConnectionReporter
	Processes ProcessReporter
	Version   string

	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Server is the birdhouse HTTP API server.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	outlets   OutletReader
	weather   weather.Repository
	water     watertemp.Repository
	unit      weather.Unit
	loc       *time.Location
	sw        StateReader
	motion    MotionSignaler
	gatherer  prometheus.Gatherer
	db        DBStatsProvider
	mqtt      ConnectionReporter
	processes ProcessReporter
	version   string
	now       func() time.Time
	startTime time.Time

	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Outlets == nil {
		return nil, fmt.Errorf("outlet store is required")
	}
	if deps.Weather == nil {
		return nil, fmt.Errorf("weather log is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		outlets:   deps.Outlets,
		weather:   deps.Weather,
		water:     deps.WaterTemp,
		unit:      deps.Unit,
		loc:       deps.Location,
		sw:        deps.Switch,
		motion:    deps.Motion,
		gatherer:  deps.Gatherer,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		processes: deps.Processes,
		version:   deps.Version,
		now:       deps.Now,
	}
	if s.unit == "" {
		s.unit = weather.Fahrenheit
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.startTime = s.now()
	return s, nil
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Bind synchronously so a port clash is reported to the caller.
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("api listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
