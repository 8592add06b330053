package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/avrellis/tunegate/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for the
// persisted token record.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 8080
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigAuthStorage     = TokenStorageTypeFile
	DefaultConfigProviderAuthURL = "https://accounts.spotify.com/authorize"
	DefaultConfigProviderToken   = "https://accounts.spotify.com/api/token"
	DefaultConfigProviderAPIBase = "https://api.spotify.com/v1"
	DefaultConfigFrontendURL     = "http://localhost:3000"
)

// defaultScopes covers the read-only endpoints this backend proxies.
var defaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// ProviderConfig holds the streaming provider's OAuth2 application
// credentials and endpoint URLs.
type ProviderConfig struct {
	ClientID     string   `json:"client_id" validate:"required"`
	ClientSecret string   `json:"client_secret" validate:"required"`
	RedirectURL  string   `json:"redirect_url" validate:"required,url"`
	AuthURL      string   `json:"auth_url" validate:"required,url"`
	TokenURL     string   `json:"token_url" validate:"required,url"`
	APIBaseURL   string   `json:"api_base_url" validate:"required,url"`
	Scopes       []string `json:"scopes"`
}

// AuthConfig describes where the persisted token record lives.
type AuthConfig struct {
	// Storage configuration - where the token record is mirrored
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to record file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewTokenStore creates a token Store from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.Store, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore("tunegate-token", a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// NotesConfig holds the sticky-notes persistence settings.
type NotesConfig struct {
	Database string `json:"database" validate:"required"`
}

// FrontendConfig describes the browser frontend this backend serves.
type FrontendConfig struct {
	// URL the callback handler redirects to after login.
	URL string `json:"url" validate:"required,url"`

	// AllowedOrigins for CORS; defaults to the frontend URL.
	AllowedOrigins []string `json:"allowed_origins"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Provider  ProviderConfig `json:"provider"`
	Auth      AuthConfig     `json:"auth"`
	Notes     NotesConfig    `json:"notes"`
	Frontend  FrontendConfig `json:"frontend"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Provider.AuthURL == "" {
		c.Provider.AuthURL = DefaultConfigProviderAuthURL
	}
	if c.Provider.TokenURL == "" {
		c.Provider.TokenURL = DefaultConfigProviderToken
	}
	if c.Provider.APIBaseURL == "" {
		c.Provider.APIBaseURL = DefaultConfigProviderAPIBase
	}
	if len(c.Provider.Scopes) == 0 {
		c.Provider.Scopes = append([]string(nil), defaultScopes...)
	}
	if c.Frontend.URL == "" {
		c.Frontend.URL = DefaultConfigFrontendURL
	}
	if c.Provider.RedirectURL == "" && c.Server.Host != "" {
		c.Provider.RedirectURL = fmt.Sprintf("http://%s:%d/auth/callback", c.Server.Host, c.Server.Port)
	}
	if len(c.Frontend.AllowedOrigins) == 0 {
		c.Frontend.AllowedOrigins = []string{c.Frontend.URL}
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "tunegate", "tokens.json")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	}

	if c.Notes.Database == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("notes.database required (auto-detect failed: %w)", err)
		}
		c.Notes.Database = filepath.Join(configDir, "tunegate", "notes.db")
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return fmt.Errorf("file path required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return fmt.Errorf("keyring_user required for keyring storage")
		}
	}

	return nil
}
