package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir     string               `toml:"DataDir"`
	GenesisFile string               `toml:"GenesisFile"`
	Environment string               `toml:"Environment"`
	Storage     Storage              `toml:"Storage"`
	Market      Market               `toml:"Market"`
	HTTP        HTTP                 `toml:"HTTP"`
	Auth        Auth                 `toml:"Auth"`
	RateLimits  map[string]RateLimit `toml:"RateLimits"`
	Idempotency Idempotency          `toml:"Idempotency"`
	Logging     Logging              `toml:"Logging"`
}

// Load loads the configuration from path, writing a default file when none
// exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the settings written by createDefault.
func Default() *Config {
	return &Config{
		DataDir:     "./market-data",
		GenesisFile: "genesis.yaml",
		Environment: "local",
		Storage:     Storage{Backend: "leveldb"},
		Market:      Market{PausedModules: []string{}},
		HTTP: HTTP{
			ListenAddress:     ":8080",
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
			MaxBodyBytes:      1 << 20,
		},
		Auth: Auth{
			Enabled:          true,
			HMACSecretEnv:    "MARKET_JWT_SECRET",
			ClockSkewSeconds: 120,
			AnonymousQueries: true,
		},
		RateLimits: map[string]RateLimit{
			"execute": {RequestsPerMinute: 120, Burst: 20},
			"query":   {RequestsPerMinute: 600, Burst: 60},
		},
		Idempotency: Idempotency{Driver: "sqlite", DSN: "idempotency.db", TTLSeconds: 86400},
		Logging:     Logging{Level: "info"},
	}
}

// StoragePath resolves the database location under DataDir.
func (c *Config) StoragePath() string {
	if p := strings.TrimSpace(c.Storage.Path); p != "" {
		return p
	}
	name := "state.db"
	if c.Storage.Backend == "leveldb" {
		name = "state"
	}
	return filepath.Join(c.DataDir, name)
}

// IdempotencyDSN resolves relative sqlite paths under DataDir.
func (c *Config) IdempotencyDSN() string {
	dsn := strings.TrimSpace(c.Idempotency.DSN)
	if c.Idempotency.Driver == "sqlite" && dsn != "" && dsn != ":memory:" && !filepath.IsAbs(dsn) && !strings.HasPrefix(dsn, "file:") {
		return filepath.Join(c.DataDir, dsn)
	}
	return dsn
}

// JWTSecret returns the inline secret or the value of HMACSecretEnv.
func (c *Config) JWTSecret() string {
	if s := strings.TrimSpace(c.Auth.HMACSecret); s != "" {
		return s
	}
	if env := strings.TrimSpace(c.Auth.HMACSecretEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

func (c *Config) applyEnv() {
	if env := strings.TrimSpace(os.Getenv("MARKET_ENV")); env != "" {
		c.Environment = env
	}
	if c.Market.PausedModules == nil {
		c.Market.PausedModules = []string{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
