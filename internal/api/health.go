package api

import (
	"net/http"
	"time"
)

// HealthHandler reports liveness for the load balancer. It deliberately
// checks nothing downstream: the decision path keeps serving without Redis
// or ClickHouse, so their health must not fail instances out of rotation.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "health"
	const method = "GET"

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"addecision"}`))

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}
