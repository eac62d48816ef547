package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/birdhouse-core/internal/watertemp"
	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// handleWaterTempNow returns the most recent water temperature sample.
func (s *Server) handleWaterTempNow(w http.ResponseWriter, r *http.Request) {
	sample, err := s.water.Latest(r.Context())
	if err != nil {
		if errors.Is(err, watertemp.ErrNoSamples) {
			writeNotFound(w, "no water temperature samples recorded")
			return
		}
		s.logger.Error("loading latest water temperature", "error", err)
		writeInternalError(w, "failed to load water temperature")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// handleWaterTempPeriod returns every sample since the local midnight that
// opens the daily, weekly or monthly window, newest first.
func (s *Server) handleWaterTempPeriod(w http.ResponseWriter, r *http.Request) {
	period := weather.Period(chi.URLParam(r, "period"))
	from, to, err := watertemp.Window(period, s.now(), s.loc)
	if err != nil {
		writeNotFound(w, "unknown water temperature period")
		return
	}

	samples, err := s.water.Range(r.Context(), from, to)
	if err != nil {
		s.logger.Error("loading water temperature range", "period", string(period), "error", err)
		writeInternalError(w, "failed to load water temperature")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}
