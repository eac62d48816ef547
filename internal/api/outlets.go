package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/birdhouse-core/internal/outlet"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// outletView is an outlet row plus what the API derives from it.
type outletView struct {
	outlet.Outlet
	Overridden bool    `json:"overridden"`
	On         *bool   `json:"on,omitempty"`
	StateError *string `json:"state_error,omitempty"`
}

func (s *Server) view(o outlet.Outlet) outletView {
	v := outletView{Outlet: o, Overridden: o.Overridden(s.now())}
	if s.sw == nil {
		return v
	}
	on, err := s.sw.ReadState(o.ID)
	if err != nil {
		msg := err.Error()
		v.StateError = &msg
		return v
	}
	v.On = &on
	return v
}

// handleListOutlets returns every outlet with its live level.
func (s *Server) handleListOutlets(w http.ResponseWriter, r *http.Request) {
	outlets, err := s.outlets.List(r.Context())
	if err != nil {
		s.logger.Error("listing outlets", "error", err)
		writeInternalError(w, "failed to list outlets")
		return
	}

	views := make([]outletView, 0, len(outlets))
	for _, o := range outlets {
		views = append(views, s.view(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outlets": views,
		"count":   len(views),
	})
}

// handleGetOutlet returns one outlet.
func (s *Server) handleGetOutlet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOutletID(w, r)
	if !ok {
		return
	}

	o, err := s.outlets.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, outlet.ErrOutletNotFound) {
			writeNotFound(w, "outlet not found")
			return
		}
		s.logger.Error("loading outlet", "outlet", id, "error", err)
		writeInternalError(w, "failed to load outlet")
		return
	}
	writeJSON(w, http.StatusOK, s.view(*o))
}

// handleListOutletEvents returns the outlet's audit trail, newest first.
func (s *Server) handleListOutletEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOutletID(w, r)
	if !ok {
		return
	}

	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEventLimit {
			writeBadRequest(w, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	if _, err := s.outlets.Get(r.Context(), id); err != nil {
		if errors.Is(err, outlet.ErrOutletNotFound) {
			writeNotFound(w, "outlet not found")
			return
		}
		writeInternalError(w, "failed to load outlet")
		return
	}

	events, err := s.outlets.ListEvents(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("listing outlet events", "outlet", id, "error", err)
		writeInternalError(w, "failed to load outlet events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outlet_id": id,
		"events":    events,
		"count":     len(events),
	})
}

func parseOutletID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid outlet ID")
		return 0, false
	}
	return id, true
}
