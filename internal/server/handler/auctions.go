package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// recordLister is the query side only a database-backed store offers.
type recordLister interface {
	ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.AuctionRecord, error)
}

// AuctionHandler serves the persisted auction records and audit log.
type AuctionHandler struct {
	records domain.AuctionRecordReader
	lister  recordLister
	audit   domain.AuditStore
	logger  *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler. records may be a full
// domain.AuctionRecordStore or a read-back sink such as the JSON file or S3
// sink; listing is only served by the former. audit may be nil.
func NewAuctionHandler(records domain.AuctionRecordReader, audit domain.AuditStore, logger *slog.Logger) *AuctionHandler {
	lister, _ := records.(recordLister)
	return &AuctionHandler{records: records, lister: lister, audit: audit, logger: logger}
}

type auctionJSON struct {
	AuctionID  string    `json:"auction_id"`
	Bidder     string    `json:"bidder"`
	Amount     string    `json:"amount"`
	Settled    bool      `json:"settled"`
	ObservedAt time.Time `json:"observed_at"`
}

func toAuctionJSON(rec domain.AuctionRecord) auctionJSON {
	return auctionJSON{
		AuctionID:  rec.AuctionID,
		Bidder:     rec.Bidder,
		Amount:     rec.Amount,
		Settled:    rec.Settled,
		ObservedAt: rec.ObservedAt,
	}
}

// ListAuctions returns the most recently observed auctions.
// GET /api/auctions?limit=&offset=&since=&until=
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeError(w, http.StatusNotFound, "auction listing not configured")
		return
	}
	recs, err := h.lister.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.Error("list auctions", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list auctions")
		return
	}
	out := make([]auctionJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toAuctionJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetAuction returns one auction record by id.
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.records.Get(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "auction not found")
		return
	}
	if err != nil {
		h.logger.Error("get auction", slog.String("auction_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get auction")
		return
	}
	writeJSON(w, http.StatusOK, toAuctionJSON(rec))
}

type auditJSON struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListAudit returns the bid and settlement audit log, newest first.
// GET /api/audit?limit=&offset=&since=&until=
func (h *AuctionHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "audit log not configured")
		return
	}
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.Error("list audit", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list audit log")
		return
	}
	out := make([]auditJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditJSON{ID: e.ID, Event: e.Event, Detail: e.Detail, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}
