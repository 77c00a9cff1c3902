// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultShowClass       = "show"
	DefaultHiddenClass     = "hidden"
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultToastDuration   = 5 * time.Second
	DefaultBusName         = "org.freedesktop.Notifications"
	DefaultMetricsAddress  = "127.0.0.1:9464"
	minPollInterval        = time.Millisecond
	maxPollInterval        = time.Minute
	defaultConfigDirectory = "overlayd"
)

// Format is a configuration file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from the file extension.
// Anything other than .yaml or .yml is read as TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "100ms", "5s", "1m", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))

	// Bare integers are milliseconds
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '100ms', '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the overlayd configuration.
// Loaded from ~/.config/overlayd/config.toml (or .yaml).
type Config struct {
	Dialog       DialogConfig       `toml:"dialog" yaml:"dialog"`
	Notification NotificationConfig `toml:"notification" yaml:"notification"`
	DBus         DBusConfig         `toml:"dbus" yaml:"dbus"`
	Metrics      MetricsConfig      `toml:"metrics" yaml:"metrics"`
}

// DialogConfig configures the dialog registry.
type DialogConfig struct {
	ShowClass       string `toml:"show_class" yaml:"show_class"`
	HiddenClass     string `toml:"hidden_class" yaml:"hidden_class"`
	BackgroundClass string `toml:"background_class" yaml:"background_class"` // Appended to the visibility class
}

// NotificationConfig configures the notification registry and its expiry sweep.
type NotificationConfig struct {
	ShowClass       string   `toml:"show_class" yaml:"show_class"`
	HiddenClass     string   `toml:"hidden_class" yaml:"hidden_class"`
	BackgroundClass string   `toml:"background_class" yaml:"background_class"`
	PollInterval    Duration `toml:"poll_interval" yaml:"poll_interval"`       // Expiry sweep interval
	UseTimer        bool     `toml:"use_timer" yaml:"use_timer"`               // false = host drives expiry
	DefaultDuration Duration `toml:"default_duration" yaml:"default_duration"` // Used when a sender asks for the server default
	MaxDuration     Duration `toml:"max_duration" yaml:"max_duration"`         // 0 = no cap
}

// DBusConfig configures the org.freedesktop.Notifications server.
type DBusConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	BusName string `toml:"bus_name" yaml:"bus_name"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Address string `toml:"address" yaml:"address"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Dialog: DialogConfig{
			ShowClass:   DefaultShowClass,
			HiddenClass: DefaultHiddenClass,
		},
		Notification: NotificationConfig{
			ShowClass:       DefaultShowClass,
			HiddenClass:     DefaultHiddenClass,
			PollInterval:    Duration(DefaultPollInterval),
			UseTimer:        true,
			DefaultDuration: Duration(DefaultToastDuration),
		},
		DBus: DBusConfig{
			Enabled: true,
			BusName: DefaultBusName,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: DefaultMetricsAddress,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, defaultConfigDirectory, "config.toml")
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns the default config if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := Unmarshal(data, FormatForPath(path), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Unmarshal decodes data in the given format on top of cfg.
func Unmarshal(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, cfg)
	case FormatTOML:
		return toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

// Marshal encodes the configuration in the given format.
func (c *Config) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(c)
	case FormatTOML:
		return toml.Marshal(c)
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := c.Marshal(FormatForPath(path))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	n := c.Notification
	if n.UseTimer {
		interval := n.PollInterval.Duration()
		if interval < minPollInterval || interval > maxPollInterval {
			return fmt.Errorf("poll_interval must be between %s and %s, got %s",
				minPollInterval, maxPollInterval, interval)
		}
	}
	if n.DefaultDuration < 0 {
		return fmt.Errorf("default_duration must not be negative, got %s", n.DefaultDuration.Duration())
	}
	if n.MaxDuration < 0 {
		return fmt.Errorf("max_duration must not be negative, got %s", n.MaxDuration.Duration())
	}
	if n.MaxDuration > 0 && n.DefaultDuration > n.MaxDuration {
		return fmt.Errorf("default_duration %s exceeds max_duration %s",
			n.DefaultDuration.Duration(), n.MaxDuration.Duration())
	}

	if c.DBus.Enabled && strings.TrimSpace(c.DBus.BusName) == "" {
		return errors.New("dbus.bus_name must be set when dbus is enabled")
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Address) == "" {
		return errors.New("metrics.address must be set when metrics are enabled")
	}

	return nil
}

// ClampDuration applies MaxDuration to a requested toast duration.
func (n NotificationConfig) ClampDuration(d time.Duration) time.Duration {
	if limit := n.MaxDuration.Duration(); limit > 0 && d > limit {
		return limit
	}
	return d
}
