// Package config handles configuration loading, validation, and hot-reload
// for imebar.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"imebar/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete bar configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// IBus block configuration.
	IBus IBusConfig `toml:"ibus" json:"ibus" yaml:"ibus"`

	// Keylight block configuration.
	Keylight KeylightConfig `toml:"keylight" json:"keylight" yaml:"keylight"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log output format: text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where logs go: stderr, stdout or file.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output is "file".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// IBusConfig holds the IBus block configuration.
type IBusConfig struct {
	// Enabled turns the block on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ReceiveTimeoutMs bounds each wait on the signal stream so the listener
	// can poll transport liveness. It is not a cancellation mechanism.
	ReceiveTimeoutMs int `toml:"receive_timeout_ms" json:"receive_timeout_ms" yaml:"receive_timeout_ms"`

	// MaxReconnectSec caps the exponential backoff between reconnect
	// attempts after the bus connection is lost.
	MaxReconnectSec int `toml:"max_reconnect_sec" json:"max_reconnect_sec" yaml:"max_reconnect_sec"`

	// MachineIDPath is the D-Bus machine identity file used to derive the
	// ibus-daemon discovery file path.
	MachineIDPath string `toml:"machine_id_path" json:"machine_id_path" yaml:"machine_id_path"`
}

// KeylightConfig holds the keyboard backlight block configuration.
type KeylightConfig struct {
	// Enabled turns the block on.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// IntervalSec is the polling interval in seconds.
	IntervalSec int `toml:"interval_sec" json:"interval_sec" yaml:"interval_sec"`

	// BrightnessFile is the sysfs brightness file to read.
	BrightnessFile string `toml:"brightness_file" json:"brightness_file" yaml:"brightness_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		IBus: IBusConfig{
			Enabled: true,
			// Matches the historical 100s receive window of the original
			// ibus block.
			ReceiveTimeoutMs: 100000,
			MaxReconnectSec:  60,
			MachineIDPath:    "/etc/machine-id",
		},
		Keylight: KeylightConfig{
			Enabled:        false,
			IntervalSec:    5,
			BrightnessFile: "/sys/class/leds/smc::kbd_backlight/brightness",
		},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, _ := os.UserHomeDir()
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "imebar", "config.toml")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != Version {
		errs = append(errs, fmt.Errorf("unsupported config version %d (expected %d)", c.Version, Version))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		errs = append(errs, errors.New("logging.file_path required when output is \"file\""))
	}

	if c.IBus.Enabled {
		if c.IBus.ReceiveTimeoutMs <= 0 {
			errs = append(errs, errors.New("ibus.receive_timeout_ms must be positive"))
		}
		if c.IBus.MaxReconnectSec <= 0 {
			errs = append(errs, errors.New("ibus.max_reconnect_sec must be positive"))
		}
		if c.IBus.MachineIDPath == "" {
			errs = append(errs, errors.New("ibus.machine_id_path must not be empty"))
		}
	}

	if c.Keylight.Enabled {
		if c.Keylight.IntervalSec <= 0 {
			errs = append(errs, errors.New("keylight.interval_sec must be positive"))
		}
		if c.Keylight.BrightnessFile == "" {
			errs = append(errs, errors.New("keylight.brightness_file must not be empty"))
		}
	}

	return errors.Join(errs...)
}

// ApplyEnvOverrides applies IMEBAR_* environment overrides on top of the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("IMEBAR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMEBAR_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("IMEBAR_MACHINE_ID"); v != "" {
		c.IBus.MachineIDPath = v
	}
}

// LoggingSetup converts the logging section into a logging.Config.
func (c *Config) LoggingSetup() *logging.Config {
	cfg := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = lvl
	}
	if f, err := logging.ParseFormat(c.Logging.Format); err == nil {
		cfg.Format = f
	}
	if c.Logging.Output != "" {
		cfg.Output = c.Logging.Output
	}
	if c.Logging.FilePath != "" {
		cfg.FilePath = c.Logging.FilePath
	}
	return cfg
}
