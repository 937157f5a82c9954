package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// Values read from the file can be overridden by environment variables (see the env tags).
type Config struct {
	LogLevel    string            `toml:"log_level" env:"LOG_LEVEL"`
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Client      ClientConfig      `toml:"client"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
//
// The endpoint URLs exist so tests and staging setups can point at a fake upstream.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"REDIRECT_URI"`
	AuthURL      string `toml:"auth_url" env:"SPOTIFY_AUTH_URL"`
	TokenURL     string `toml:"token_url" env:"SPOTIFY_TOKEN_URL"`
	APIURL       string `toml:"api_url" env:"SPOTIFY_API_URL"`
}

// ServerConfig contains HTTP gateway settings.
type ServerConfig struct {
	Host                   string  `toml:"host" env:"HOST"`
	Port                   int     `toml:"port" env:"PORT"`
	BasePath               string  `toml:"base_path" env:"BASE_PATH"`
	FrontendURI            string  `toml:"frontend_uri" env:"FRONTEND_URI"`
	UpstreamTimeoutSeconds int     `toml:"upstream_timeout_seconds" env:"UPSTREAM_TIMEOUT_SECONDS"`
	UpstreamRateLimit      float64 `toml:"upstream_rate_limit" env:"UPSTREAM_RATE_LIMIT"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ClientConfig contains settings for the CLI and TUI acting as the gateway's frontend.
type ClientConfig struct {
	APIURL    string `toml:"api_url" env:"SWIPER_API_URL"`
	TokenFile string `toml:"token_file" env:"SWIPER_TOKEN_FILE"`
}

// Addr returns the host:port the gateway listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Sanitize applies guardrails to values loaded from the file and environment.
func (c *Config) Sanitize() {
	defaults := DefaultConfig()

	sp := &c.Credentials.Spotify
	if sp.AuthURL == "" {
		sp.AuthURL = defaults.Credentials.Spotify.AuthURL
	}
	if sp.TokenURL == "" {
		sp.TokenURL = defaults.Credentials.Spotify.TokenURL
	}
	if sp.APIURL == "" {
		sp.APIURL = defaults.Credentials.Spotify.APIURL
	}
	sp.APIURL = strings.TrimRight(sp.APIURL, "/")

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.UpstreamTimeoutSeconds <= 0 {
		c.Server.UpstreamTimeoutSeconds = defaults.Server.UpstreamTimeoutSeconds
	}
	if c.Server.UpstreamRateLimit <= 0 {
		c.Server.UpstreamRateLimit = defaults.Server.UpstreamRateLimit
	}
	c.Server.FrontendURI = strings.TrimRight(c.Server.FrontendURI, "/")
	c.Server.BasePath = normalizeBasePath(c.Server.BasePath)

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 1
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 1
	}

	c.Client.APIURL = strings.TrimRight(c.Client.APIURL, "/")
	if c.Client.TokenFile == "" {
		c.Client.TokenFile = DefaultTokenFile()
	}
}

// Validate reports whether the configuration is usable for running the gateway.
func (c *Config) Validate() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials)
	}
	if sp.RedirectURI == "" {
		return fmt.Errorf("%w: redirect_uri is required", ErrInvalidConfig)
	}
	if _, err := url.ParseRequestURI(c.Server.FrontendURI); err != nil {
		return fmt.Errorf("%w: frontend_uri %q: %v", ErrInvalidConfig, c.Server.FrontendURI, err)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
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

// ResolveConfig builds the effective configuration.
//
// Order: embedded defaults, the TOML file at path (when it exists), a .env file in the working directory, then the process environment.
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

	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	config.Sanitize()
	return config, nil
}

// ApplyEnv overrides config fields from environment variables that are set.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: parse environment: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultTokenFile returns ~/.swiper/tokens.json, falling back to the working directory when HOME is unknown.
func DefaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".swiper", "tokens.json")
	}
	return filepath.Join(home, ".swiper", "tokens.json")
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
