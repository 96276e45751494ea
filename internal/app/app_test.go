package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionbot/internal/config"
	"github.com/alanyoungcy/auctionbot/internal/crypto"
	"github.com/alanyoungcy/auctionbot/internal/domain"
)

type fakeLease struct {
	mu       sync.Mutex
	errs     []error
	refresh  int
	released bool
}

func (l *fakeLease) Refresh(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refresh++
	if len(l.errs) == 0 {
		return nil
	}
	err := l.errs[0]
	l.errs = l.errs[1:]
	return err
}

func (l *fakeLease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
}

func (l *fakeLease) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refresh
}

type fakeLocks struct {
	key   string
	ttl   time.Duration
	lease *fakeLease
	err   error
}

func (f *fakeLocks) Acquire(_ context.Context, key string, ttl time.Duration) (domain.Lease, error) {
	f.key, f.ttl = key, ttl
	if f.err != nil {
		return nil, f.err
	}
	return f.lease, nil
}

func testApp() *App {
	cfg := config.Defaults()
	cfg.Chain.ContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHoldLeaseStopsWhenLost(t *testing.T) {
	a := testApp()
	lease := &fakeLease{errs: []error{
		errors.New("i/o timeout"),
		nil,
		domain.ErrLockLost,
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := a.holdLease(ctx, lease, 15*time.Millisecond)
	assert.NotNil(t, err)
	check.True(t, errors.Is(err, domain.ErrLockLost))
	check.Equal(t, 3, lease.count())
}

func TestHoldLeaseReturnsOnCancel(t *testing.T) {
	a := testApp()
	lease := &fakeLease{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := a.holdLease(ctx, lease, 15*time.Millisecond)
	check.True(t, errors.Is(err, context.DeadlineExceeded))
	check.True(t, lease.count() > 0)
}

func TestAcquireLease(t *testing.T) {
	a := testApp()

	lease, err := a.acquireLease(context.Background(), &Dependencies{})
	check.NoError(t, err)
	check.True(t, lease == nil)

	locks := &fakeLocks{lease: &fakeLease{}}
	lease, err = a.acquireLease(context.Background(), &Dependencies{LockManager: locks})
	assert.NoError(t, err)
	check.True(t, lease != nil)
	check.Equal(t, "auctionbot:0x5FbDB2315678afecb367f032d93F642f64180aa3", locks.key)
	check.Equal(t, 30*time.Second, locks.ttl)
}

func TestAcquireLeaseHeld(t *testing.T) {
	a := testApp()
	locks := &fakeLocks{err: domain.ErrLockHeld}

	_, err := a.acquireLease(context.Background(), &Dependencies{LockManager: locks})
	assert.NotNil(t, err)
	check.True(t, errors.Is(err, domain.ErrLockHeld))
}

func TestRunFailsWithoutSigner(t *testing.T) {
	a := testApp()
	a.cfg.Wallet.PrivateKey = ""
	a.cfg.Wallet.EncryptedKeyPath = ""

	err := a.Run(context.Background())
	assert.NotNil(t, err)
	check.True(t, errors.Is(err, crypto.ErrNoKeySource))
}
