// Package config provides configuration types and loading for sessiond.
package config

import (
	"fmt"
	"time"

	"github.com/miradorhq/sessiond/internal/service"
)

// Config is the top-level configuration for sessiond.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Session configures the expiry and activity timing.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Store configures the credential store backend.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Directory configures the external principal lookup.
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`

	// Token configures session token signing.
	Token TokenConfig `yaml:"token" mapstructure:"token"`

	// DevMode enables development features (verbose logging).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:8080"
	// (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// SessionConfig configures session timing. All fields are duration strings
// (e.g. "24h", "2h", "30s").
type SessionConfig struct {
	// AbsoluteDuration is the fixed session lifetime. Defaults to "24h".
	AbsoluteDuration string `yaml:"absolute_duration" mapstructure:"absolute_duration" validate:"omitempty,duration"`

	// IdleDuration is the inactivity limit. Defaults to "2h".
	IdleDuration string `yaml:"idle_duration" mapstructure:"idle_duration" validate:"omitempty,duration"`

	// HeartbeatInterval is the tracker's revalidation heartbeat. Defaults to "30s".
	HeartbeatInterval string `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval" validate:"omitempty,duration"`

	// RevalidateInterval is the background forced re-validation period.
	// Defaults to "5m".
	RevalidateInterval string `yaml:"revalidate_interval" mapstructure:"revalidate_interval" validate:"omitempty,duration"`

	// ActivityFlushWindow is the minimum gap between persisted activity
	// touches. Defaults to "1s".
	ActivityFlushWindow string `yaml:"activity_flush_window" mapstructure:"activity_flush_window" validate:"omitempty,duration"`
}

// StoreConfig configures the credential store backend.
type StoreConfig struct {
	// Backend selects the store implementation: "file" (default), "bolt",
	// or "memory" (development only; sessions vanish on restart).
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=file bolt memory"`

	// Path is the store file path. Defaults to "./sessiond-state.json" for
	// the file backend and "./sessiond.db" for bolt.
	Path string `yaml:"path" mapstructure:"path"`
}

// DirectoryConfig configures the external principal directories.
type DirectoryConfig struct {
	// Mode selects the lookup source: "rest" (default) or "seed".
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=rest seed"`

	// BaseURL is the directory API base (required in rest mode),
	// e.g. "https://api.example.org/directory".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// SeedFile is the YAML seed file path (required in seed mode).
	SeedFile string `yaml:"seed_file" mapstructure:"seed_file"`

	// RequestTimeout bounds directory lookups. Defaults to "10s".
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout" validate:"omitempty,duration"`
}

// TokenConfig configures session token signing.
type TokenConfig struct {
	// Secret is the HS256 signing secret. Minimum 16 characters.
	Secret string `yaml:"secret" mapstructure:"secret" validate:"required,min=16"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Session.AbsoluteDuration == "" {
		c.Session.AbsoluteDuration = "24h"
	}
	if c.Session.IdleDuration == "" {
		c.Session.IdleDuration = "2h"
	}
	if c.Session.HeartbeatInterval == "" {
		c.Session.HeartbeatInterval = "30s"
	}
	if c.Session.RevalidateInterval == "" {
		c.Session.RevalidateInterval = "5m"
	}
	if c.Session.ActivityFlushWindow == "" {
		c.Session.ActivityFlushWindow = "1s"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.Path == "" {
		if c.Store.Backend == "bolt" {
			c.Store.Path = "./sessiond.db"
		} else {
			c.Store.Path = "./sessiond-state.json"
		}
	}
	if c.Directory.Mode == "" {
		c.Directory.Mode = "rest"
	}
	if c.Directory.RequestTimeout == "" {
		c.Directory.RequestTimeout = "10s"
	}
}

// SetDevDefaults applies permissive defaults when DevMode is enabled.
func (c *Config) SetDevDefaults() {
	if c.DevMode {
		c.Server.LogLevel = "debug"
	}
}

// parseDuration parses a duration string with its field name in the error.
func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", field, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive, got %q", field, value)
	}
	return d, nil
}

// SessionTimings converts the session duration strings into the service
// config structs. Call after Validate.
func (c *Config) SessionTimings() (service.Config, service.TrackerConfig, error) {
	absolute, err := parseDuration("session.absolute_duration", c.Session.AbsoluteDuration)
	if err != nil {
		return service.Config{}, service.TrackerConfig{}, err
	}
	idle, err := parseDuration("session.idle_duration", c.Session.IdleDuration)
	if err != nil {
		return service.Config{}, service.TrackerConfig{}, err
	}
	revalidate, err := parseDuration("session.revalidate_interval", c.Session.RevalidateInterval)
	if err != nil {
		return service.Config{}, service.TrackerConfig{}, err
	}
	heartbeat, err := parseDuration("session.heartbeat_interval", c.Session.HeartbeatInterval)
	if err != nil {
		return service.Config{}, service.TrackerConfig{}, err
	}
	flushWindow, err := parseDuration("session.activity_flush_window", c.Session.ActivityFlushWindow)
	if err != nil {
		return service.Config{}, service.TrackerConfig{}, err
	}

	svcCfg := service.Config{
		AbsoluteDuration:   absolute,
		IdleDuration:       idle,
		RevalidateInterval: revalidate,
	}
	trackerCfg := service.TrackerConfig{
		HeartbeatInterval: heartbeat,
		FlushWindow:       flushWindow,
	}
	return svcCfg, trackerCfg, nil
}

// DirectoryRequestTimeout parses the directory request timeout.
func (c *Config) DirectoryRequestTimeout() (time.Duration, error) {
	return parseDuration("directory.request_timeout", c.Directory.RequestTimeout)
}
