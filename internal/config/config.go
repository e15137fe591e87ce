package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Log     LogConfig
	Packet  PacketConfig
	Sweeper SweeperConfig
	Ledger  LedgerConfig
	Account AccountConfig
	Redis   RedisConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host       string `envconfig:"DB_HOST" default:"localhost"`
	Port       int    `envconfig:"DB_PORT" default:"5432"`
	User       string `envconfig:"DB_USER" default:"postgres"`
	Password   string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name       string `envconfig:"DB_NAME" default:"red_packet_db"`
	SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns   int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns   int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxRetries int    `envconfig:"DB_CONNECT_RETRIES" default:"5"`
	TxRetries  int    `envconfig:"DB_TX_RETRIES" default:"3"`
	Migrate    bool   `envconfig:"DB_MIGRATE" default:"true"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Name, sslMode)
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", c.MaxConns)
	}
	if c.MinConns > 0 {
		dsn += fmt.Sprintf("&pool_min_conns=%d", c.MinConns)
	}
	return dsn
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// PacketConfig holds red packet lifecycle settings.
type PacketConfig struct {
	TTL          time.Duration `envconfig:"PACKET_TTL" default:"24h"`
	CacheTTL     time.Duration `envconfig:"PACKET_CACHE_TTL" default:"10m"`
	CacheCleanup time.Duration `envconfig:"PACKET_CACHE_CLEANUP" default:"5m"`
}

// SweeperConfig holds expiry sweeper settings.
type SweeperConfig struct {
	Enabled     bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	Interval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"30s"`
	BatchSize   int           `envconfig:"SWEEP_BATCH_SIZE" default:"100"`
	SettleGrace time.Duration `envconfig:"SWEEP_SETTLE_GRACE" default:"1m"`
}

// Ledger modes.
const (
	LedgerModePostgres = "postgres"
	LedgerModeHTTP     = "http"
)

// LedgerConfig selects and tunes the account ledger.
type LedgerConfig struct {
	Mode            string        `envconfig:"LEDGER_MODE" default:"postgres"`
	BaseURL         string        `envconfig:"LEDGER_BASE_URL"`
	Timeout         time.Duration `envconfig:"LEDGER_TIMEOUT" default:"3s"`
	RetryInterval   time.Duration `envconfig:"LEDGER_RETRY_INTERVAL" default:"100ms"`
	RetryMaxElapsed time.Duration `envconfig:"LEDGER_RETRY_MAX_ELAPSED" default:"5s"`
}

// AccountConfig controls account provisioning on a caller's first request.
type AccountConfig struct {
	InitialBalance int64         `envconfig:"ACCOUNT_INITIAL_BALANCE" default:"0"`
	KnownTTL       time.Duration `envconfig:"ACCOUNT_KNOWN_TTL" default:"10m"`
}

// RedisConfig holds the optional redis connection used for sweeper leader
// election. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL  time.Duration `envconfig:"REDIS_LOCK_TTL" default:"30s"`
}

// Validate reports settings that parse but cannot work together.
func (c *Config) Validate() error {
	switch c.Ledger.Mode {
	case LedgerModePostgres:
	case LedgerModeHTTP:
		if c.Ledger.BaseURL == "" {
			return errors.New("LEDGER_BASE_URL is required when LEDGER_MODE=http")
		}
	default:
		return fmt.Errorf("unknown LEDGER_MODE %q", c.Ledger.Mode)
	}
	if c.Account.InitialBalance < 0 {
		return errors.New("ACCOUNT_INITIAL_BALANCE must not be negative")
	}
	if c.Packet.TTL <= 0 {
		return errors.New("PACKET_TTL must be positive")
	}
	if c.Sweeper.Enabled && (c.Sweeper.Interval <= 0 || c.Sweeper.BatchSize < 1) {
		return errors.New("SWEEP_INTERVAL and SWEEP_BATCH_SIZE must be positive")
	}
	return nil
}

// Load reads an optional .env file, then parses environment variables into
// the Config struct. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
