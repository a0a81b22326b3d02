package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Credentials CredentialsConfig `toml:"credentials"`
	Walrus      WalrusConfig      `toml:"walrus"`
	Supabase    SupabaseConfig    `toml:"supabase"`
	Party       PartyConfig       `toml:"party"`
	Log         LogConfig         `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Debug          bool     `toml:"debug"`
	AllowedOrigins []string `toml:"allowed_origins"`
	WebURL         string   `toml:"web_url"`
	MaxUploadBytes int64    `toml:"max_upload_bytes"`
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig contains database connection settings.
//
// Driver is "sqlite3" (Path is used) or "postgres" (DSN is used).
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Source returns the driver-specific data source name.
func (d DatabaseConfig) Source() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	Market       string  `toml:"market"`
	RateLimit    float64 `toml:"rate_limit"`
}

// HasCredentials reports whether both halves of the client credentials are set.
func (s SpotifyConfig) HasCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// WalrusConfig points at the Walrus publisher (writes) and aggregator (reads).
type WalrusConfig struct {
	PublisherURL  string `toml:"publisher_url"`
	AggregatorURL string `toml:"aggregator_url"`
	Epochs        int    `toml:"epochs"`
}

// SupabaseConfig carries the public client settings and the JWT secret used to verify access tokens.
type SupabaseConfig struct {
	URL       string `toml:"url"`
	AnonKey   string `toml:"anon_key"`
	JWTSecret string `toml:"jwt_secret"`
}

// PartyConfig tunes the listening-party janitor.
type PartyConfig struct {
	IdleTimeoutSec     int `toml:"idle_timeout_sec"`
	SignalTTLSec       int `toml:"signal_ttl_sec"`
	JanitorIntervalSec int `toml:"janitor_interval_sec"`
}

func (p PartyConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutSec) * time.Second
}

func (p PartyConfig) SignalTTL() time.Duration {
	return time.Duration(p.SignalTTLSec) * time.Second
}

func (p PartyConfig) JanitorInterval() time.Duration {
	return time.Duration(p.JanitorIntervalSec) * time.Second
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads path when it exists (defaults otherwise), then applies environment overrides.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	ApplyEnv(config, os.Getenv)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overlays the deployment environment variables onto config.
func ApplyEnv(config *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&config.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	set(&config.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&config.Walrus.PublisherURL, "WALRUS_PUBLISHER_URL")
	set(&config.Walrus.AggregatorURL, "WALRUS_AGGREGATOR_URL")
	set(&config.Supabase.URL, "NEXT_PUBLIC_SUPABASE_URL")
	set(&config.Supabase.AnonKey, "NEXT_PUBLIC_SUPABASE_ANON_KEY")
	set(&config.Supabase.JWTSecret, "SUPABASE_JWT_SECRET")
	set(&config.Log.Level, "AMPLY_LOG_LEVEL")

	if dsn := strings.TrimSpace(getenv("DATABASE_URL")); dsn != "" {
		config.Database.Driver = DriverPostgres
		config.Database.DSN = dsn
	}

	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if debug := strings.TrimSpace(getenv("AMPLY_DEBUG")); debug != "" {
		if b, err := strconv.ParseBool(debug); err == nil {
			config.Server.Debug = b
		}
	}
}

// Validate checks values the server cannot run without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite3", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range", ErrInvalidConfig)
	}

	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
