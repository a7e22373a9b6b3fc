package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "CARAUCTION_"
	envConfigPath  = "CARAUCTION_CONFIG"
	defaultCfgPath = "configs/config.yaml"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Lock      LockConfig      `koanf:"lock"`
	Auction   AuctionConfig   `koanf:"auction"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

type AppConfig struct {
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig selects the storage backend. Driver "memory" keeps every
// auction in process, "postgres" uses URL (or the DB_* variables when URL is
// empty).
type DatabaseConfig struct {
	Driver        string `koanf:"driver"`
	URL           string `koanf:"url"`
	MaxConns      int32  `koanf:"max_conns"`
	MinConns      int32  `koanf:"min_conns"`
	RunMigrations bool   `koanf:"run_migrations"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type LockConfig struct {
	// Backend is "local" or "redis".
	Backend string        `koanf:"backend"`
	Timeout time.Duration `koanf:"timeout"`
	TTL     time.Duration `koanf:"ttl"`
}

type AuctionConfig struct {
	MaxRetries    int           `koanf:"max_retries"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

type RateLimitConfig struct {
	Enabled           bool    `koanf:"enabled"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		App: AppConfig{
			Environment: "development",
			LogLevel:    "info",
		},
		Server: ServerConfig{
			Addr:            ":9000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:        "postgres",
			MaxConns:      10,
			MinConns:      2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Lock: LockConfig{
			Backend: "local",
			Timeout: 2 * time.Second,
			TTL:     5 * time.Second,
		},
		Auction: AuctionConfig{
			MaxRetries:    3,
			SweepInterval: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// CARAUCTION_* environment variables, in that order. A .env file in the
// working directory is loaded into the environment first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv(envConfigPath)
	if path == "" {
		path = defaultCfgPath
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit YAML path. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// CARAUCTION_LOCK__TIMEOUT -> lock.timeout; single underscores stay inside
	// a key so CARAUCTION_AUCTION__MAX_RETRIES maps to auction.max_retries.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("config: unknown lock.backend %q", c.Lock.Backend)
	}
	if c.Lock.Timeout <= 0 {
		return errors.New("config: lock.timeout must be positive")
	}
	if c.Auction.MaxRetries < 0 {
		return errors.New("config: auction.max_retries cannot be negative")
	}
	if c.Auction.SweepInterval <= 0 {
		return errors.New("config: auction.sweep_interval must be positive")
	}
	return nil
}
