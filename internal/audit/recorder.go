// Package audit fans auction observations out to every configured record
// sink. Sink failures are logged and never reach the caller.
package audit

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// Target is a named sink. The name only appears in logs.
type Target struct {
	Name string
	Sink domain.AuctionRecordSink
}

// Recorder writes each record to all targets in order.
type Recorder struct {
	targets []Target
	logger  *slog.Logger
}

// NewRecorder creates a Recorder. Targets with a nil sink are skipped.
func NewRecorder(logger *slog.Logger, targets ...Target) *Recorder {
	kept := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Sink != nil {
			kept = append(kept, t)
		}
	}
	return &Recorder{
		targets: kept,
		logger:  logger.With(slog.String("component", "audit")),
	}
}

// Record upserts rec into every target.
func (r *Recorder) Record(ctx context.Context, rec domain.AuctionRecord) {
	for _, t := range r.targets {
		if err := t.Sink.Upsert(ctx, rec); err != nil {
			r.logger.ErrorContext(ctx, "audit upsert failed",
				slog.String("sink", t.Name),
				slog.String("auction_id", rec.AuctionID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Len returns the number of active targets.
func (r *Recorder) Len() int { return len(r.targets) }
