package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// Load reads the TOML file at path (skipped when path is empty), merges it
// on top of the defaults, then applies AUCTIONBOT_* environment overrides.
// The result is not validated; call Config.Validate afterwards.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrConfiguration, path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides lets operators inject secrets and endpoints at deploy
// time without touching the TOML file. PK, RPC and SIG are accepted as
// aliases for older deployments.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PK")
	setStr(&cfg.Wallet.PrivateKey, "AUCTIONBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "AUCTIONBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "AUCTIONBOT_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "RPC")
	setStr(&cfg.Chain.RPCURL, "AUCTIONBOT_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "AUCTIONBOT_CHAIN_ID")
	setStr(&cfg.Chain.ContractAddress, "AUCTIONBOT_CHAIN_CONTRACT_ADDRESS")
	setStr(&cfg.Chain.WhitelistSignature, "SIG")
	setStr(&cfg.Chain.WhitelistSignature, "AUCTIONBOT_CHAIN_WHITELIST_SIGNATURE")

	// ── Policy ──
	setDuration(&cfg.Policy.MinBidWindow, "AUCTIONBOT_POLICY_MIN_BID_WINDOW")
	setDuration(&cfg.Policy.SettleGrace, "AUCTIONBOT_POLICY_SETTLE_GRACE")
	setToken(&cfg.Policy.PriceCeiling, "AUCTIONBOT_POLICY_PRICE_CEILING")
	setToken(&cfg.Policy.DefaultInitialBid, "AUCTIONBOT_POLICY_DEFAULT_INITIAL_BID")
	setInt64(&cfg.Policy.BidIncrementPct, "AUCTIONBOT_POLICY_BID_INCREMENT_PCT")
	setUint64(&cfg.Policy.GasSafetyMultiplierPct, "AUCTIONBOT_POLICY_GAS_SAFETY_MULTIPLIER_PCT")

	// ── Timeouts ──
	setDuration(&cfg.Timeouts.Read, "AUCTIONBOT_TIMEOUTS_READ")
	setDuration(&cfg.Timeouts.Submit, "AUCTIONBOT_TIMEOUTS_SUBMIT")
	setDuration(&cfg.Timeouts.Confirm, "AUCTIONBOT_TIMEOUTS_CONFIRM")

	// ── Audit ──
	setStr(&cfg.Audit.FilePath, "AUCTIONBOT_AUDIT_FILE_PATH")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "AUCTIONBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "AUCTIONBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "AUCTIONBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "AUCTIONBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "AUCTIONBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "AUCTIONBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "AUCTIONBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "AUCTIONBOT_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "AUCTIONBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "AUCTIONBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "AUCTIONBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIONBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIONBOT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIONBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "AUCTIONBOT_REDIS_LOCK_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "AUCTIONBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "AUCTIONBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUCTIONBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUCTIONBOT_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "AUCTIONBOT_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "AUCTIONBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUCTIONBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUCTIONBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUCTIONBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AUCTIONBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AUCTIONBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIONBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "AUCTIONBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUCTIONBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIONBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUCTIONBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUCTIONBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTIONBOT_MODE")
	setStr(&cfg.LogLevel, "AUCTIONBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present, non-empty and parses.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setToken(dst *tokenAmount, key string) {
	if v := os.Getenv(key); v != "" {
		var t tokenAmount
		if err := t.UnmarshalText([]byte(v)); err == nil {
			*dst = t
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
