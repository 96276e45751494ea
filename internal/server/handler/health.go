package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Each named check is run on every
// request; a nil map means the endpoint only reports liveness.
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 3 * time.Second, logger: logger}
}

// HealthCheck responds 200 when every dependency answers and 503 otherwise.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	writeJSON(w, code, body)
}
