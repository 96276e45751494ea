package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctionbot/internal/cache/redis"
	"github.com/alanyoungcy/auctionbot/internal/domain"
	"github.com/alanyoungcy/auctionbot/internal/server"
	"github.com/alanyoungcy/auctionbot/internal/server/handler"
	"github.com/alanyoungcy/auctionbot/internal/server/ws"
	"github.com/alanyoungcy/auctionbot/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// WatchMode runs the polling loop, the actor lease refresher and the status
// API until ctx is cancelled or one of them fails.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")
	parent := ctx

	lease, err := a.acquireLease(ctx, deps)
	if err != nil {
		return fmt.Errorf("watch mode: %w", err)
	}
	if lease != nil {
		defer lease.Release()
	}

	g, ctx := errgroup.WithContext(ctx)

	w := a.newWatcher(deps)
	g.Go(func() error {
		return w.Run(ctx)
	})

	if lease != nil {
		g.Go(func() error {
			return a.holdLease(ctx, lease, a.cfg.Redis.LockTTL.Duration)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, w)
	}

	err = g.Wait()
	if err != nil && parent.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// SettleMode submits a single settle-and-start-next transaction and waits for
// its receipt.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	lease, err := a.acquireLease(ctx, deps)
	if err != nil {
		return fmt.Errorf("settle mode: %w", err)
	}
	if lease != nil {
		defer lease.Release()
	}

	return a.newWatcher(deps).Settle(ctx)
}

// InspectMode reads the auction once, logs the decision the watcher would
// take together with the actor's balance and pending returns, and exits
// without submitting anything.
func (a *App) InspectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting inspect mode")

	w := a.newWatcher(deps)
	obs, err := w.Observe(ctx)
	if err != nil {
		return fmt.Errorf("inspect mode: %w", err)
	}

	actor := deps.Ledger.Account()
	attrs := []any{
		slog.String("poll_id", obs.PollID),
		slog.String("auction_id", obs.Snapshot.ID),
		slog.String("amount", domain.FormatTokenAmount(obs.Snapshot.Amount)),
		slog.String("bidder", obs.Snapshot.Bidder),
		slog.Time("end_time", obs.Snapshot.EndTime),
		slog.Bool("settled", obs.Snapshot.Settled),
		slog.String("action", string(obs.Decision.Action)),
		slog.String("reason", obs.Decision.Reason),
		slog.String("actor", actor),
	}
	if balance, err := deps.Ledger.Balance(ctx, actor); err != nil {
		a.logger.WarnContext(ctx, "inspect: balance unavailable", slog.String("error", err.Error()))
	} else {
		attrs = append(attrs, slog.String("balance", domain.FormatTokenAmount(balance)))
	}
	if pending, err := deps.Ledger.PendingReturns(ctx, actor); err != nil {
		a.logger.WarnContext(ctx, "inspect: pending returns unavailable", slog.String("error", err.Error()))
	} else {
		attrs = append(attrs, slog.String("pending_returns", domain.FormatTokenAmount(pending)))
	}

	a.logger.InfoContext(ctx, "auction inspected", attrs...)
	return nil
}

func (a *App) newWatcher(deps *Dependencies) *watcher.Watcher {
	opts := watcher.Options{Recorder: deps.Recorder}
	if deps.SignalBus != nil {
		opts.Bus = deps.SignalBus
	}
	if deps.AuditLog != nil {
		opts.AuditLog = deps.AuditLog
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		opts.Notifier = deps.Notifier
	}
	return watcher.New(deps.Ledger, deps.Ledger.Account(), a.cfg.Policy.Policy(), opts, a.logger)
}

// acquireLease takes the per-contract actor lease when Redis is enabled so
// two instances never submit for the same contract. It returns a nil lease
// when no lock manager is configured.
func (a *App) acquireLease(ctx context.Context, deps *Dependencies) (domain.Lease, error) {
	if deps.LockManager == nil {
		return nil, nil
	}
	key := redis.LeaseKey(a.cfg.Chain.ContractAddress)
	lease, err := deps.LockManager.Acquire(ctx, key, a.cfg.Redis.LockTTL.Duration)
	if err != nil {
		return nil, fmt.Errorf("acquire actor lease %s: %w", key, err)
	}
	a.logger.InfoContext(ctx, "actor lease acquired",
		slog.String("key", key),
		slog.Duration("ttl", a.cfg.Redis.LockTTL.Duration),
	)
	return lease, nil
}

// holdLease refreshes the lease at a third of its TTL. Losing the lease to
// another holder stops the mode; transient refresh errors are retried.
func (a *App) holdLease(ctx context.Context, lease domain.Lease, ttl time.Duration) error {
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := lease.Refresh(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLockLost):
				a.logger.ErrorContext(ctx, "actor lease lost", slog.String("error", err.Error()))
				return fmt.Errorf("app: %w", err)
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				a.logger.WarnContext(ctx, "actor lease refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// startHTTPServer registers the status API and, when Redis is wired, the
// outcome history and the live decision WebSocket.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, w *watcher.Watcher) {
	startedAt := time.Now().UTC()

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status: handler.NewStatusHandler(w, a.cfg.Mode, a.cfg.Chain.ContractAddress, startedAt),
	}
	if deps.Records != nil {
		handlers.Auctions = handler.NewAuctionHandler(deps.Records, deps.AuditLog, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		handlers.Outcomes = handler.NewOutcomeHandler(deps.SignalBus, a.logger)
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: startedAt,
			Status:    w.Status,
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
