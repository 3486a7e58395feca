// Package config provides configuration management for fleetcli.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration structure
type Config struct {
	Inventory      string        `mapstructure:"inventory"`       // Path to the device inventory file (csv or yaml)
	Site           string        `mapstructure:"site"`            // Device-name substring filter
	Ports          string        `mapstructure:"ports"`           // Comma-separated ordered candidate ports
	Concurrency    int           `mapstructure:"concurrency"`     // Maximum concurrent device units
	ConnectTimeout time.Duration `mapstructure:"connect-timeout"` // Per-attempt session open timeout
	CmdTimeout     time.Duration `mapstructure:"cmd-timeout"`     // Per-command timeout
	Export         string        `mapstructure:"export"`          // Export destination (extension selects format)
	Command        string        `mapstructure:"command"`         // One-shot command (empty means interactive)
	Probe          bool          `mapstructure:"probe"`           // TCP reachability pre-check before session open
	Quiet          bool          `mapstructure:"quiet"`           // Suppress non-error output
	LogLevel       string        `mapstructure:"log-level"`       // Log level (debug, info, error)
	LogFormat      string        `mapstructure:"log-format"`      // Log format (json, text)
	ShowProgress   bool          `mapstructure:"progress"`        // Show live progress bar
	ShowStats      bool          `mapstructure:"stats"`           // Show per-run statistics summary
}

// CandidatePorts parses the ordered candidate port list
func (c *Config) CandidatePorts() ([]int, error) {
	parts := strings.Split(c.Ports, ",")
	ports := make([]int, 0, len(parts))
	seen := make(map[int]bool)

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: must be an integer", part)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("port %d out of valid range (1-65535)", port)
		}
		if seen[port] {
			return nil, fmt.Errorf("duplicate candidate port %d", port)
		}
		seen[port] = true
		ports = append(ports, port)
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("at least one candidate port is required")
	}

	return ports, nil
}

// Manager defines the interface for configuration management
type Manager interface {
	// Load reads configuration from all sources (files, env vars)
	Load() (*Config, error)

	// Validate ensures configuration values are valid and consistent
	Validate(config *Config) error
}

// ViperManager implements the Manager interface using Viper
type ViperManager struct {
	v *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager() Manager {
	return &ViperManager{
		v: viper.New(),
	}
}

func (m *ViperManager) setDefaults() {
	m.v.SetDefault("inventory", "devices.csv")
	m.v.SetDefault("site", "")
	m.v.SetDefault("ports", "830,22")
	m.v.SetDefault("concurrency", 10)
	m.v.SetDefault("connect-timeout", 30*time.Second)
	m.v.SetDefault("cmd-timeout", 60*time.Second)
	m.v.SetDefault("export", "")
	m.v.SetDefault("command", "")
	m.v.SetDefault("probe", true)
	m.v.SetDefault("quiet", false)
	m.v.SetDefault("log-level", "info")
	m.v.SetDefault("log-format", "text")
	m.v.SetDefault("progress", false)
	m.v.SetDefault("stats", false)
}

// Load reads configuration from all sources with proper precedence
func (m *ViperManager) Load() (*Config, error) {
	m.setDefaults()

	m.v.SetConfigName("config")

	// Config paths in precedence order (current dir highest, system lowest)
	m.v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		m.v.AddConfigPath(filepath.Join(homeDir, ".config", "fleetcli"))
	}
	m.v.AddConfigPath("/etc/fleetcli/")

	m.v.SetEnvPrefix("FLEETCLI")
	m.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	m.v.AutomaticEnv()

	formats := []string{"yaml", "yml", "json", "toml"}
	for _, format := range formats {
		m.v.SetConfigType(format)
		if err := m.v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading %s config file: %w", format, err)
			}
		} else {
			break
		}
	}

	var config Config
	if err := m.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := m.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate ensures configuration values are valid and consistent
func (m *ViperManager) Validate(config *Config) error {
	if _, err := config.CandidatePorts(); err != nil {
		return err
	}

	if config.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", config.Concurrency)
	}

	if config.ConnectTimeout <= 0 {
		return fmt.Errorf("connect-timeout must be positive, got %v", config.ConnectTimeout)
	}
	if config.CmdTimeout <= 0 {
		return fmt.Errorf("cmd-timeout must be positive, got %v", config.CmdTimeout)
	}

	if config.Export != "" {
		validExports := map[string]bool{
			".json": true,
			".txt":  true,
			".csv":  true,
		}
		ext := strings.ToLower(filepath.Ext(config.Export))
		if !validExports[ext] {
			return fmt.Errorf("invalid export format %q: destination must end in .json, .txt, or .csv", ext)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return fmt.Errorf("invalid log level %q: must be one of 'debug', 'info', or 'error'", config.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[config.LogFormat] {
		return fmt.Errorf("invalid log format %q: must be one of 'json' or 'text'", config.LogFormat)
	}

	return nil
}
