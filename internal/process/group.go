package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/config"
)

// Group supervises every configured collaborator.
type Group struct {
	managers []*Manager
	logger   Logger
}

// NewGroup builds one manager per collaborator definition.
func NewGroup(defs []config.CollaboratorConfig, logger Logger) *Group {
	if logger == nil {
		logger = noopLogger{}
	}
	g := &Group{logger: logger}
	for _, d := range defs {
		m := NewManager(Config{
			Name:               d.Name,
			Command:            d.Command,
			Args:               d.Args,
			Env:                d.Env,
			RestartDelay:       time.Duration(d.RestartDelay) * time.Second,
			MaxRestartAttempts: d.MaxRestarts,
		})
		m.SetLogger(logger)
		g.managers = append(g.managers, m)
	}
	return g
}

// Len returns the number of supervised collaborators.
func (g *Group) Len() int {
	return len(g.managers)
}

// Start launches every collaborator. A collaborator that cannot be
// launched is logged and reported; the others still start.
func (g *Group) Start(ctx context.Context) error {
	var errs []error
	for _, m := range g.managers {
		if err := m.Start(ctx); err != nil {
			g.logger.Error("collaborator failed to start", "name", m.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Stop stops every collaborator in reverse start order.
func (g *Group) Stop() error {
	var errs []error
	for i := len(g.managers) - 1; i >= 0; i-- {
		if err := g.managers[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns per-collaborator statistics in configuration order.
func (g *Group) Stats() []Stats {
	out := make([]Stats, 0, len(g.managers))
	for _, m := range g.managers {
		out = append(out, m.Stats())
	}
	return out
}
