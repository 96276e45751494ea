package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// fileEntry is the on-disk shape of one auction in the JSON document.
type fileEntry struct {
	Bidder    string    `json:"bidder"`
	Amount    string    `json:"amount"`
	Settled   bool      `json:"settled"`
	Timestamp time.Time `json:"timestamp"`
}

// FileSink keeps a single JSON object keyed by auction id. Each upsert
// rewrites the document through a temp file and rename, so a crash leaves
// either the old or the new document on disk.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink returns a sink writing to path. The file is created on the
// first upsert.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Upsert implements domain.AuctionRecordSink.
func (s *FileSink) Upsert(_ context.Context, rec domain.AuctionRecord) error {
	if rec.AuctionID == "" {
		return errors.New("audit: file sink: empty auction id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return err
	}
	db[rec.AuctionID] = fileEntry{
		Bidder:    rec.Bidder,
		Amount:    rec.Amount,
		Settled:   rec.Settled,
		Timestamp: rec.ObservedAt.UTC(),
	}
	return s.save(db)
}

// Get returns the stored record for auctionID.
func (s *FileSink) Get(_ context.Context, auctionID string) (domain.AuctionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.load()
	if err != nil {
		return domain.AuctionRecord{}, err
	}
	e, ok := db[auctionID]
	if !ok {
		return domain.AuctionRecord{}, fmt.Errorf("audit: auction %s: %w", auctionID, domain.ErrNotFound)
	}
	return domain.AuctionRecord{
		AuctionID:  auctionID,
		Bidder:     e.Bidder,
		Amount:     e.Amount,
		Settled:    e.Settled,
		ObservedAt: e.Timestamp,
	}, nil
}

func (s *FileSink) load() (map[string]fileEntry, error) {
	db := make(map[string]fileEntry)
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return db, nil
		}
		return nil, fmt.Errorf("audit: read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return db, nil
	}
	if err := json.Unmarshal(b, &db); err != nil {
		return nil, fmt.Errorf("audit: parse %s: %w", s.path, err)
	}
	return db, nil
}

func (s *FileSink) save(db map[string]fileEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("audit: mkdir: %w", err)
	}
	b, err := json.MarshalIndent(db, "", "    ")
	if err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("audit: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("audit: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("audit: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("audit: rename: %w", err)
	}
	return nil
}

var (
	_ domain.AuctionRecordSink   = (*FileSink)(nil)
	_ domain.AuctionRecordReader = (*FileSink)(nil)
)
