package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

type memSink struct {
	recs map[string]domain.AuctionRecord
	err  error
}

func (m *memSink) Upsert(_ context.Context, rec domain.AuctionRecord) error {
	if m.err != nil {
		return m.err
	}
	if m.recs == nil {
		m.recs = make(map[string]domain.AuctionRecord)
	}
	m.recs[rec.AuctionID] = rec
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderFansOutAndSwallowsErrors(t *testing.T) {
	broken := &memSink{err: errors.New("disk full")}
	good := &memSink{}
	r := NewRecorder(discardLogger(),
		Target{Name: "broken", Sink: broken},
		Target{Name: "nil", Sink: nil},
		Target{Name: "good", Sink: good},
	)
	check.Equal(t, 2, r.Len())

	rec := domain.AuctionRecord{AuctionID: "7", Bidder: "0xabc", Amount: "0.2"}
	r.Record(context.Background(), rec)

	assert.Equal(t, 1, len(good.recs))
	check.Equal(t, "0.2", good.recs["7"].Amount)
}

func TestFileSinkUpsertLastWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.json")
	sink := NewFileSink(path)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.NoError(t, sink.Upsert(ctx, domain.AuctionRecord{AuctionID: "1", Bidder: "0xa", Amount: "0.2", ObservedAt: t0}))
	assert.NoError(t, sink.Upsert(ctx, domain.AuctionRecord{AuctionID: "2", Bidder: "0xb", Amount: "1", ObservedAt: t0}))
	assert.NoError(t, sink.Upsert(ctx, domain.AuctionRecord{AuctionID: "1", Bidder: "0xc", Amount: "0.204", ObservedAt: t0.Add(time.Minute)}))

	got, err := sink.Get(ctx, "1")
	assert.NoError(t, err)
	check.Equal(t, "0xc", got.Bidder)
	check.Equal(t, "0.204", got.Amount)
	check.True(t, got.ObservedAt.Equal(t0.Add(time.Minute)))

	b, err := os.ReadFile(path)
	assert.NoError(t, err)
	var raw map[string]map[string]any
	assert.NoError(t, json.Unmarshal(b, &raw))
	check.Equal(t, 2, len(raw))
	check.Equal(t, "1", raw["2"]["amount"])

	entries, err := os.ReadDir(filepath.Dir(path))
	assert.NoError(t, err)
	check.Equal(t, 1, len(entries))
}

func TestFileSinkGetMissing(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "db.json"))
	_, err := sink.Get(context.Background(), "9")
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestFileSinkRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	err := NewFileSink(path).Upsert(context.Background(), domain.AuctionRecord{AuctionID: "1"})
	check.Error(t, err)
}

func TestFileSinkRejectsEmptyID(t *testing.T) {
	err := NewFileSink(filepath.Join(t.TempDir(), "db.json")).Upsert(context.Background(), domain.AuctionRecord{})
	check.Error(t, err)
}
