package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/auctionbot/internal/watcher"
)

// StatusSource reports the watcher's latest observation and outcome.
type StatusSource interface {
	Status() watcher.Status
}

// StatusHandler serves the bot's runtime status.
type StatusHandler struct {
	source    StatusSource
	mode      string
	contract  string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler for the given run mode and
// auction contract.
func NewStatusHandler(source StatusSource, mode, contract string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{source: source, mode: mode, contract: contract, startedAt: startedAt.UTC()}
}

type statusResponse struct {
	Mode          string         `json:"mode"`
	Contract      string         `json:"contract"`
	StartedAt     time.Time      `json:"started_at"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Watcher       watcher.Status `json:"watcher"`
}

// GetStatus responds with the mode, contract and the last decision.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(h.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:          h.mode,
		Contract:      h.contract,
		StartedAt:     h.startedAt,
		UptimeSeconds: uptime,
		Watcher:       h.source.Status(),
	})
}
