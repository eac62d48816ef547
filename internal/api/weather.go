package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/birdhouse-core/internal/weather"
)

// handleWeatherNow returns the most recent sample.
func (s *Server) handleWeatherNow(w http.ResponseWriter, r *http.Request) {
	sample, err := s.weather.Latest(r.Context())
	if err != nil {
		if errors.Is(err, weather.ErrNoSamples) {
			writeNotFound(w, "no weather samples recorded")
			return
		}
		s.logger.Error("loading latest weather sample", "error", err)
		writeInternalError(w, "failed to load weather")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// handleWeatherPeriod returns every sample in the daily, weekly or monthly
// window, newest first.
func (s *Server) handleWeatherPeriod(w http.ResponseWriter, r *http.Request) {
	period := weather.Period(chi.URLParam(r, "period"))
	from, to, err := period.Window(s.now(), s.loc)
	if err != nil {
		writeNotFound(w, "unknown weather period")
		return
	}

	samples, err := s.weather.Range(r.Context(), from, to)
	if err != nil {
		s.logger.Error("loading weather range", "period", string(period), "error", err)
		writeInternalError(w, "failed to load weather")
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

// handleWeatherSummary returns descriptive statistics for ?range=
// (daily, weekly or monthly; daily when omitted).
func (s *Server) handleWeatherSummary(w http.ResponseWriter, r *http.Request) {
	period := weather.PeriodDaily
	if v := r.URL.Query().Get("range"); v != "" {
		period = weather.Period(v)
	}
	from, to, err := period.Window(s.now(), s.loc)
	if err != nil {
		writeBadRequest(w, "range must be daily, weekly or monthly")
		return
	}

	summary, err := weather.Summarize(r.Context(), s.weather, from, to, s.unit)
	if err != nil {
		s.logger.Error("summarising weather", "period", string(period), "error", err)
		writeInternalError(w, "failed to summarise weather")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
