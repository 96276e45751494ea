// Package config defines the top-level configuration for the auction bot
// and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionbot/internal/auction"
	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIONBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Policy   PolicyConfig   `toml:"policy"`
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Audit    AuditConfig    `toml:"audit"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the signing credential. Exactly one source is used:
// the raw key wins over the encrypted key file.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ChainConfig locates the auction contract.
type ChainConfig struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         int64  `toml:"chain_id"` // 0 asks the node
	ContractAddress string `toml:"contract_address"`
	// WhitelistSignature switches bidding to create_wl_bid.
	WhitelistSignature string `toml:"whitelist_signature"`
}

// PolicyConfig is the TOML form of auction.Policy. Token amounts are decimal
// strings in whole tokens, e.g. "2.5".
type PolicyConfig struct {
	MinBidWindow           duration    `toml:"min_bid_window"`
	SettleGrace            duration    `toml:"settle_grace"`
	ClosingThreshold       duration    `toml:"closing_threshold"`
	PriceCeiling           tokenAmount `toml:"price_ceiling"`
	DefaultInitialBid      tokenAmount `toml:"default_initial_bid"`
	BidIncrementPct        int64       `toml:"bid_increment_pct"`
	GasSafetyMultiplierPct uint64      `toml:"gas_safety_multiplier_pct"`
	SettleConfirmRetry     duration    `toml:"settle_confirm_retry"`
	ClosingRetry           duration    `toml:"closing_retry"`
	CeilingBuffer          duration    `toml:"ceiling_buffer"`
	SelfBidRetry           duration    `toml:"self_bid_retry"`
	PostBidRetry           duration    `toml:"post_bid_retry"`
	ReadErrorBackoff       duration    `toml:"read_error_backoff"`
}

// Policy converts the TOML form into the engine policy.
func (p PolicyConfig) Policy() auction.Policy {
	return auction.Policy{
		MinBidWindow:           p.MinBidWindow.Duration,
		SettleGrace:            p.SettleGrace.Duration,
		ClosingThreshold:       p.ClosingThreshold.Duration,
		PriceCeiling:           p.PriceCeiling.Wei(),
		DefaultInitialBid:      p.DefaultInitialBid.Wei(),
		BidIncrementPct:        p.BidIncrementPct,
		GasSafetyMultiplierPct: p.GasSafetyMultiplierPct,
		SettleConfirmRetry:     p.SettleConfirmRetry.Duration,
		ClosingRetry:           p.ClosingRetry.Duration,
		CeilingBuffer:          p.CeilingBuffer.Duration,
		SelfBidRetry:           p.SelfBidRetry.Duration,
		PostBidRetry:           p.PostBidRetry.Duration,
		ReadErrorBackoff:       p.ReadErrorBackoff.Duration,
	}
}

// TimeoutConfig bounds every ledger call.
type TimeoutConfig struct {
	Read    duration `toml:"read"`
	Submit  duration `toml:"submit"`
	Confirm duration `toml:"confirm"`
}

// AuditConfig configures the local audit file. Leave FilePath empty to
// disable it.
type AuditConfig struct {
	FilePath string `toml:"file_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters and the actor lease TTL.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	LockTTL    duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so it can be decoded from a TOML string such as
// "30s" or "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// tokenAmount decodes a decimal token amount ("0.2") into wei.
type tokenAmount struct {
	wei *big.Int
}

func mustToken(s string) tokenAmount {
	return tokenAmount{wei: domain.MustTokenAmount(s)}
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (t *tokenAmount) UnmarshalText(text []byte) error {
	wei, err := domain.ParseTokenAmount(string(text))
	if err != nil {
		return err
	}
	t.wei = wei
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (t tokenAmount) MarshalText() ([]byte, error) {
	return []byte(domain.FormatTokenAmount(t.wei)), nil
}

// Wei returns a copy of the amount in wei, or nil when unset.
func (t tokenAmount) Wei() *big.Int {
	if t.wei == nil {
		return nil
	}
	return new(big.Int).Set(t.wei)
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	p := auction.DefaultPolicy()
	return Config{
		Policy: PolicyConfig{
			MinBidWindow:           duration{p.MinBidWindow},
			SettleGrace:            duration{p.SettleGrace},
			ClosingThreshold:       duration{p.ClosingThreshold},
			PriceCeiling:           mustToken("2.5"),
			DefaultInitialBid:      mustToken("0.2"),
			BidIncrementPct:        p.BidIncrementPct,
			GasSafetyMultiplierPct: p.GasSafetyMultiplierPct,
			SettleConfirmRetry:     duration{p.SettleConfirmRetry},
			ClosingRetry:           duration{p.ClosingRetry},
			CeilingBuffer:          duration{p.CeilingBuffer},
			SelfBidRetry:           duration{p.SelfBidRetry},
			PostBidRetry:           duration{p.PostBidRetry},
			ReadErrorBackoff:       duration{p.ReadErrorBackoff},
		},
		Timeouts: TimeoutConfig{
			Read:    duration{15 * time.Second},
			Submit:  duration{30 * time.Second},
			Confirm: duration{3 * time.Minute},
		},
		Audit: AuditConfig{
			FilePath: "data/auctions.json",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctionbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   5,
			MaxRetries: 3,
			LockTTL:    duration{30 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auctionbot",
			Prefix:         "auctions",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{
				domain.EventBidSubmitted,
				domain.EventBidFailed,
				domain.EventSettled,
				domain.EventSettleFailed,
			},
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// Run modes.
const (
	ModeWatch   = "watch"
	ModeSettle  = "settle"
	ModeInspect = "inspect"
)

var validModes = map[string]bool{
	ModeWatch:   true,
	ModeSettle:  true,
	ModeInspect: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for logical errors and returns a combined
// error wrapping domain.ErrConfiguration that lists every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, settle, inspect)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID < 0 {
		errs = append(errs, "chain: chain_id must be >= 0")
	}
	if !common.IsHexAddress(c.Chain.ContractAddress) {
		errs = append(errs, fmt.Sprintf("chain: contract_address %q is not a hex address", c.Chain.ContractAddress))
	}

	if err := c.Policy.Policy().Validate(); err != nil {
		errs = append(errs, "policy: "+err.Error())
	}

	if c.Timeouts.Read.Duration <= 0 || c.Timeouts.Submit.Duration <= 0 || c.Timeouts.Confirm.Duration <= 0 {
		errs = append(errs, "timeouts: read, submit and confirm must be > 0")
	}

	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.LockTTL.Duration < time.Second {
			errs = append(errs, "redis: lock_ttl must be >= 1s")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: config validation failed:\n  - %s", domain.ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return nil
}
