package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// Check reports whether one dependency is healthy. A nil error means ok.
type Check func() error

// Gauge reports a point-in-time value for the detailed health endpoint.
type Gauge func() int

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	ready        atomic.Bool
	shuttingDown atomic.Bool
	startTime    time.Time

	mu     sync.RWMutex
	checks map[string]Check
	gauges map[string]Gauge
}

// NewHealthChecker creates a HealthChecker that starts ready.
func NewHealthChecker() *HealthChecker {
	h := &HealthChecker{
		startTime: time.Now(),
		checks:    make(map[string]Check),
		gauges:    make(map[string]Gauge),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// SetShuttingDown marks the process as draining. Readiness fails from then on.
func (h *HealthChecker) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// AddCheck registers a readiness check under name, replacing any previous one.
func (h *HealthChecker) AddCheck(name string, c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}

// AddGauge registers a value reported by the detailed endpoint.
func (h *HealthChecker) AddGauge(name string, g Gauge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gauges[name] = g
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
	Gauges map[string]int    `json:"gauges,omitempty"`
}

// evaluate runs every check and returns the per-check results and whether all passed.
func (h *HealthChecker) evaluate() (map[string]string, bool) {
	results := make(map[string]string)
	allOK := true

	if h.ready.Load() {
		results["ready"] = healthStatusOK
	} else {
		results["ready"] = healthStatusNotReady
		allOK = false
	}
	if h.shuttingDown.Load() {
		results["shutdown"] = healthStatusShuttingDown
		allOK = false
	} else {
		results["shutdown"] = healthStatusOK
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name](); err != nil {
			results[name] = err.Error()
			allOK = false
		} else {
			results[name] = healthStatusOK
		}
	}
	h.mu.RUnlock()

	return results, allOK
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// It only reports that the process is serving.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.evaluate()
		if ok {
			writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.evaluate()

		h.mu.RLock()
		gauges := make(map[string]int, len(h.gauges))
		for name, g := range h.gauges {
			gauges[name] = g()
		}
		h.mu.RUnlock()

		response := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
			Checks: checks,
			Gauges: gauges,
		}

		status := http.StatusOK
		switch {
		case h.shuttingDown.Load():
			response.Status = healthStatusShuttingDown
			status = http.StatusServiceUnavailable
		case !ok:
			response.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
