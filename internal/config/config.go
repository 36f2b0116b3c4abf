// Package config loads katas configuration from defaults, an optional
// YAML file and KATAS_* environment variables, in that order.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eleven-am/katas/internal/listing"
	"github.com/eleven-am/katas/internal/logger"
	"github.com/eleven-am/katas/internal/session"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. KATAS_SERVER_PORT.
const EnvPrefix = "KATAS_"

// DefaultFile is written by `katas init` and searched for on startup.
const DefaultFile = "katas.yaml"

var searchPaths = []string{"katas.yaml", "katas.yml", ".katas.yaml", ".katas.yml"}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  session.Config `koanf:"session"`
	Log      logger.Config  `koanf:"log"`
	Listing  ListingConfig  `koanf:"listing"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig locates the sqlite file.
type DatabaseConfig struct {
	Path         string        `koanf:"path"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	BusyTimeout  time.Duration `koanf:"busy_timeout"`
}

// ListingConfig tunes the kata listing.
type ListingConfig struct {
	PageSize int `koanf:"page_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:         "katas.db",
			MaxOpenConns: 4,
			BusyTimeout:  5 * time.Second,
		},
		Session: session.Config{
			CookieName: "katas_session",
			TTL:        30 * 24 * time.Hour,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "console",
		},
		Listing: ListingConfig{
			PageSize: listing.DefaultPageSize,
		},
	}
}

// FindFile returns the first config file present in the working
// directory, or "".
func FindFile() string {
	for _, loc := range searchPaths {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Load builds the configuration. An empty path searches the working
// directory; a missing file is not an error unless path was given.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(Default().yaml()), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = FindFile()
	}
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// KATAS_SESSION_COOKIE_NAME -> session.cookie_name: split on the first
	// underscore only, field names keep theirs.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be positive, got %d", c.Database.MaxOpenConns)
	}
	if c.Listing.PageSize < 1 {
		return fmt.Errorf("listing.page_size must be positive, got %d", c.Listing.PageSize)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// EnsureSessionSecret fills in a random signing secret when none is
// configured. Sessions then do not survive a restart.
func (c *Config) EnsureSessionSecret() (generated bool, err error) {
	if c.Session.Secret != "" {
		return false, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return false, fmt.Errorf("generate session secret: %w", err)
	}
	c.Session.Secret = hex.EncodeToString(buf)
	return true, nil
}

// yaml renders c in the file layout Load reads.
func (c *Config) yaml() []byte {
	data, err := yamlv3.Marshal(c.fileView())
	if err != nil {
		// only plain maps of strings and numbers are marshaled
		panic(err)
	}
	return data
}

func (c *Config) fileView() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"host":             c.Server.Host,
			"port":             c.Server.Port,
			"shutdown_timeout": c.Server.ShutdownTimeout.String(),
		},
		"database": map[string]interface{}{
			"path":           c.Database.Path,
			"max_open_conns": c.Database.MaxOpenConns,
			"busy_timeout":   c.Database.BusyTimeout.String(),
		},
		"session": map[string]interface{}{
			"secret":      c.Session.Secret,
			"cookie_name": c.Session.CookieName,
			"ttl":         c.Session.TTL.String(),
			"secure":      c.Session.Secure,
		},
		"log": map[string]interface{}{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
		"listing": map[string]interface{}{
			"page_size": c.Listing.PageSize,
		},
	}
}

// Save writes c as YAML to path, refusing to replace an existing file
// unless force is set.
func Save(c *Config, path string, force bool) error {
	if path == "" {
		path = DefaultFile
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, c.yaml(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
