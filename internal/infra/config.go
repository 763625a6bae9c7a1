package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all reconciler configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"oddsline"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"oddsline"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"oddsline"`

	// Redis (finished-match cache + nightly snapshots). Empty disables
	// redis and the engine runs on the in-memory cache.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6380"`

	// Results provider
	SportsAPIBaseURL string `env:"SPORTS_API_BASE_URL" envDefault:"https://api.sportsfeed.io"`
	SportsAPIKey     string `env:"SPORTS_API_KEY"`

	// Chain gateway (ledger bridge). SignerKey empty means signing is not
	// configured and the on-chain settlement path is skipped entirely.
	ChainGatewayURL string `env:"CHAIN_GATEWAY_URL" envDefault:"http://localhost:9000"`
	ChainSignerKey  string `env:"CHAIN_SIGNER_KEY"`
	TreasuryAddress string `env:"TREASURY_ADDRESS"`

	// Reconciliation engine
	ReconcileInterval   time.Duration `env:"RECONCILE_INTERVAL" envDefault:"3m"`
	ResultsCacheTTL     time.Duration `env:"RESULTS_CACHE_TTL" envDefault:"3m"`
	SubmissionDelay     time.Duration `env:"SUBMISSION_DELAY" envDefault:"2s"`
	SettledLookback     time.Duration `env:"SETTLED_LOOKBACK" envDefault:"336h"`
	PlatformFeeBps      int64         `env:"PLATFORM_FEE_BPS" envDefault:"100"`
	PayoutRetryCeiling  int           `env:"PAYOUT_RETRY_CEILING" envDefault:"8"`
	SignerBalanceFloor  int64         `env:"SIGNER_BALANCE_FLOOR" envDefault:"1000000000"`
	WalletBlocklist     string        `env:"WALLET_BLOCKLIST"`
	PrimarySport        string        `env:"PRIMARY_SPORT" envDefault:"soccer"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Observability
	MetricsPort int `env:"METRICS_PORT" envDefault:"9105"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps >= 10000 {
		return fmt.Errorf("PLATFORM_FEE_BPS %d out of range [0, 10000)", c.PlatformFeeBps)
	}
	if c.PayoutRetryCeiling < 1 {
		return fmt.Errorf("PAYOUT_RETRY_CEILING must be at least 1")
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.SportsAPIKey == "" {
		return fmt.Errorf("SPORTS_API_KEY is required; set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if c.ChainSignerKey != "" && c.ChainGatewayURL == "" {
		return fmt.Errorf("CHAIN_SIGNER_KEY is set but CHAIN_GATEWAY_URL is empty")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// BlockedWallets returns the configured wallet blocklist as a slice.
func (c *Config) BlockedWallets() []string {
	if c.WalletBlocklist == "" {
		return nil
	}
	parts := strings.Split(c.WalletBlocklist, ",")
	wallets := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			wallets = append(wallets, strings.ToLower(p))
		}
	}
	return wallets
}
