package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backend names.
const (
	BackendFile     = "file"
	BackendHTTP     = "http"
	BackendDatabase = "database"
)

// Database driver names.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Clock      ClockConfig      `yaml:"clock"`
	Store      StoreConfig      `yaml:"store"`
	Movement   MovementConfig   `yaml:"movement"`
	Database   DatabaseConfig   `yaml:"database"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ClockConfig selects between wall-clock and synchronized time.
type ClockConfig struct {
	Synced                bool          `yaml:"synced"`
	AuthorityURL          string        `yaml:"authority_url"`
	ResyncIntervalMinutes int           `yaml:"resync_interval_minutes"`
	ResyncInterval        time.Duration `yaml:"-"`
}

// StoreConfig selects and configures the downtime log backend.
type StoreConfig struct {
	Backend      string `yaml:"backend"`
	LogDir       string `yaml:"log_dir"`
	LockFiles    bool   `yaml:"lock_files"`
	ServiceURL   string `yaml:"service_url"`
	FileFallback bool   `yaml:"file_fallback"`
}

// MovementConfig selects the movement log backend (file or database).
type MovementConfig struct {
	Backend string `yaml:"backend"`
	LogDir  string `yaml:"log_dir"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// CatalogConfig carries the read-only lookup tables the terminals need:
// valid station names, badge-ID to display-name, and reason to category.
// With from_database set, operators and reasons are read from the database
// tables at startup and override any values listed here.
type CatalogConfig struct {
	Stations     []string          `yaml:"stations"`
	Operators    map[string]string `yaml:"operators"`
	Reasons      map[string]string `yaml:"reasons"`
	FromDatabase bool              `yaml:"from_database"`
}

// PushConfig holds the VAPID keys for supervisor web push alerts.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Clock.ResyncIntervalMinutes <= 0 {
		cfg.Clock.ResyncIntervalMinutes = 30
	}
	cfg.Clock.ResyncInterval = time.Duration(cfg.Clock.ResyncIntervalMinutes) * time.Minute

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendFile
	}
	switch cfg.Store.Backend {
	case BackendFile, BackendHTTP, BackendDatabase:
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if cfg.Store.LogDir == "" {
		cfg.Store.LogDir = "./logs"
	}

	if cfg.Movement.Backend == "" {
		cfg.Movement.Backend = cfg.Store.Backend
		if cfg.Movement.Backend == BackendHTTP {
			cfg.Movement.Backend = BackendFile
		}
	}
	if cfg.Movement.LogDir == "" {
		cfg.Movement.LogDir = cfg.Store.LogDir
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}

// NeedsDatabase reports whether any configured component requires a database
// connection.
func (c *Config) NeedsDatabase() bool {
	return c.Store.Backend == BackendDatabase ||
		c.Movement.Backend == BackendDatabase ||
		c.Catalog.FromDatabase ||
		c.Push.Enabled
}
