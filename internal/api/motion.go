package api

import (
	"net/http"
)

// handleMotion raises the pending-motion flag. The override itself runs on
// the next control loop iteration, so the request is only accepted.
func (s *Server) handleMotion(w http.ResponseWriter, r *http.Request) {
	if s.motion == nil {
		writeUnavailable(w, "motion input unavailable")
		return
	}

	s.motion.SignalMotion()
	s.logger.Info("motion signalled over HTTP",
		"request_id", r.Context().Value(ctxKeyRequestID))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
