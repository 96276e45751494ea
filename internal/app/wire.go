package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/auctionbot/internal/audit"
	s3blob "github.com/alanyoungcy/auctionbot/internal/blob/s3"
	"github.com/alanyoungcy/auctionbot/internal/cache/redis"
	"github.com/alanyoungcy/auctionbot/internal/config"
	"github.com/alanyoungcy/auctionbot/internal/crypto"
	"github.com/alanyoungcy/auctionbot/internal/domain"
	"github.com/alanyoungcy/auctionbot/internal/ledger"
	"github.com/alanyoungcy/auctionbot/internal/notify"
	"github.com/alanyoungcy/auctionbot/internal/server/handler"
	"github.com/alanyoungcy/auctionbot/internal/store/postgres"
)

// Dependencies bundles everything the modes need. Optional backends are nil
// when disabled in the configuration.
type Dependencies struct {
	Ledger *ledger.Gateway

	// Audit
	Recorder *audit.Recorder
	// Records reads auction records back: PostgreSQL when enabled, else the
	// S3 sink, else the JSON file sink.
	Records  domain.AuctionRecordReader
	AuditLog domain.AuditStore

	// Coordination
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Notifications
	Notifier *notify.Notifier

	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// --- Signer and ledger ---
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}

	rpc, err := ledger.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	closers = append(closers, rpc.Close)
	deps.HealthChecks["rpc"] = rpcCheck(rpc)

	deps.Ledger, err = ledger.New(ctx, rpc, signer, ledger.Config{
		ContractAddress:    cfg.Chain.ContractAddress,
		ChainID:            cfg.Chain.ChainID,
		WhitelistSignature: cfg.Chain.WhitelistSignature,
		ReadTimeout:        cfg.Timeouts.Read.Duration,
		SubmitTimeout:      cfg.Timeouts.Submit.Duration,
		ConfirmTimeout:     cfg.Timeouts.Confirm.Duration,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	targets := make([]audit.Target, 0, 3)
	var fileSink *audit.FileSink
	if cfg.Audit.FilePath != "" {
		fileSink = audit.NewFileSink(cfg.Audit.FilePath)
		targets = append(targets, audit.Target{Name: "file", Sink: fileSink})
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		records := postgres.NewAuctionRecordStore(pool)
		deps.Records = records
		deps.AuditLog = postgres.NewAuditStore(pool)
		targets = append(targets, audit.Target{Name: "postgres", Sink: records})
		deps.HealthChecks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		s3Records := s3blob.NewRecordSink(s3Client, cfg.S3.Prefix)
		targets = append(targets, audit.Target{Name: "s3", Sink: s3Records})
		deps.HealthChecks["s3"] = s3Client.Health
		if deps.Records == nil {
			deps.Records = s3Records
		}
	}
	if deps.Records == nil && fileSink != nil {
		deps.Records = fileSink
	}

	deps.Recorder = audit.NewRecorder(logger, targets...)

	// --- Notifications ---
	senders := notify.Channels{
		TelegramToken:     cfg.Notify.TelegramToken,
		TelegramChatID:    cfg.Notify.TelegramChatID,
		DiscordWebhookURL: cfg.Notify.DiscordWebhookURL,
	}.Senders()
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("actor", deps.Ledger.Account()),
		slog.String("chain_id", deps.Ledger.ChainID().String()),
		slog.Int("audit_targets", deps.Recorder.Len()),
		slog.Bool("postgres", cfg.Postgres.Enabled),
		slog.Bool("records_readable", deps.Records != nil),
		slog.Bool("redis", deps.SignalBus != nil),
		slog.Bool("notify", deps.Notifier.Enabled()),
	)

	return deps, cleanup, nil
}

func rpcCheck(c *ethclient.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		if _, err := c.BlockNumber(ctx); err != nil {
			return fmt.Errorf("rpc: block number: %w", err)
		}
		return nil
	}
}
