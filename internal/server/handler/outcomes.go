package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// OutcomeHandler pages through the bid and settlement outcome stream.
type OutcomeHandler struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewOutcomeHandler creates an OutcomeHandler reading from bus.
func NewOutcomeHandler(bus domain.SignalBus, logger *slog.Logger) *OutcomeHandler {
	return &OutcomeHandler{bus: bus, logger: logger}
}

type outcomeJSON struct {
	StreamID string          `json:"stream_id"`
	Outcome  json.RawMessage `json:"outcome"`
}

type outcomePage struct {
	Outcomes []outcomeJSON `json:"outcomes"`
	// Next is the cursor for the following page; pass it back as ?after=.
	Next string `json:"next"`
}

// ListOutcomes returns outcomes oldest first, starting after the given
// stream id.
// GET /api/outcomes?after=&limit=
func (h *OutcomeHandler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	opts := parseListOpts(r)

	msgs, err := h.bus.StreamRead(r.Context(), domain.StreamOutcomes, after, opts.Limit)
	if err != nil {
		h.logger.Error("list outcomes", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read outcomes")
		return
	}

	page := outcomePage{Outcomes: make([]outcomeJSON, 0, len(msgs)), Next: after}
	for _, m := range msgs {
		if !json.Valid(m.Payload) {
			continue
		}
		page.Outcomes = append(page.Outcomes, outcomeJSON{StreamID: m.ID, Outcome: m.Payload})
		page.Next = m.ID
	}
	writeJSON(w, http.StatusOK, page)
}
