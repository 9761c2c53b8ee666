package config

// Storage selects the key-value backend holding contract state.
type Storage struct {
	Backend string `toml:"Backend"` // leveldb, bolt or mem
	Path    string `toml:"Path,omitempty"`
}

// Market holds runtime switches for the marketplace host.
type Market struct {
	PausedModules []string `toml:"PausedModules"`
	AllowMigrate  bool     `toml:"AllowMigrate"`
}

// HTTP configures the API listener. Timeouts are in seconds.
type HTTP struct {
	ListenAddress     string `toml:"ListenAddress"`
	ReadHeaderTimeout int    `toml:"ReadHeaderTimeout"`
	ReadTimeout       int    `toml:"ReadTimeout"`
	WriteTimeout      int    `toml:"WriteTimeout"`
	IdleTimeout       int    `toml:"IdleTimeout"`
	MaxBodyBytes      int64  `toml:"MaxBodyBytes"`
}

// Auth configures bearer token validation. The token subject becomes the
// sender of execute calls.
type Auth struct {
	Enabled          bool   `toml:"Enabled"`
	HMACSecret       string `toml:"HMACSecret,omitempty"`
	HMACSecretEnv    string `toml:"HMACSecretEnv,omitempty"`
	Issuer           string `toml:"Issuer"`
	Audience         string `toml:"Audience"`
	ClockSkewSeconds int    `toml:"ClockSkewSeconds"`
	AnonymousQueries bool   `toml:"AnonymousQueries"`
}

// RateLimit bounds requests per client for one route group.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Idempotency configures the store that replays execute responses for a
// repeated Idempotency-Key.
type Idempotency struct {
	Driver     string `toml:"Driver"` // sqlite or postgres
	DSN        string `toml:"DSN"`
	TTLSeconds int    `toml:"TTLSeconds"`
}

// Logging mirrors logging.Options.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}
