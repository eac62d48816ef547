// Package api implements the birdhouse HTTP API.
//
// This package provides:
//   - Weather history endpoints (now, daily, weekly, monthly, summary)
//   - Water temperature history (now, daily, weekly, monthly), when a
//     water log is configured
//   - Read-only outlet status and event history
//   - A motion trigger for detectors that speak HTTP instead of MQTT
//   - Prometheus metrics at /metrics and a JSON system view
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// Handlers never write to the outlet store or the GPIO lines. A motion
// request only raises the pending-motion flag the control loop consumes.
package api
