package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the palette configuration.
type Config struct {
	Broker BrokerConfig `yaml:"broker"`
	Search SearchConfig `yaml:"search"`
	Host   HostConfig   `yaml:"host"`
	Data   DataConfig   `yaml:"data"`
}

// BrokerConfig holds request/response settings.
type BrokerConfig struct {
	TimeoutMs        int `yaml:"timeout_ms"`         // How long a request waits for its response
	HandlerTimeoutMs int `yaml:"handler_timeout_ms"` // Per-call bound on provider handlers
}

// SearchConfig holds search and ranking settings.
type SearchConfig struct {
	DebounceMs      int     `yaml:"debounce_ms"`      // Quiet period before a typed query is searched
	Threshold       float64 `yaml:"threshold"`        // Fuzzy match threshold (0 = exact, 1 = anything)
	Distance        int     `yaml:"distance"`         // Location window for fuzzy matches
	InitialProvider string  `yaml:"initial_provider"` // Provider listed before any query
	InitialCommand  string  `yaml:"initial_command"`  // Command listed before any query
	MaxResults      int     `yaml:"max_results"`      // Cap on displayed results (0 = no cap)
}

// HostConfig holds host process settings.
type HostConfig struct {
	SocketPath string `yaml:"socket_path"` // Unix socket path (overrides default)
	LogLevel   string `yaml:"log_level"`   // debug, info, warn, error
	LogFile    string `yaml:"log_file"`    // Log file path (overrides default)

	// OpenCommand and CopyCommand are shell-quoted command lines run for
	// open and copy effects. Empty prints the effect instead.
	OpenCommand string `yaml:"open_command"`
	CopyCommand string `yaml:"copy_command"`
}

// DataConfig holds data file locations. Empty values use Paths defaults.
type DataConfig struct {
	DatabasePath  string `yaml:"database_path"`
	BookmarksFile string `yaml:"bookmarks_file"`
	TabsFile      string `yaml:"tabs_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			TimeoutMs:        5000,
			HandlerTimeoutMs: 5000,
		},
		Search: SearchConfig{
			DebounceMs:      300,
			Threshold:       0.4,
			Distance:        100,
			InitialProvider: "tabs",
			InitialCommand:  "search",
			MaxResults:      50,
		},
		Host: HostConfig{
			SocketPath: "", // Use default from transport
			LogLevel:   "info",
			LogFile:    "", // Use default from paths
		},
	}
}

// BrokerTimeout returns broker.timeout_ms as a duration.
func (c *Config) BrokerTimeout() time.Duration {
	return time.Duration(c.Broker.TimeoutMs) * time.Millisecond
}

// HandlerTimeout returns broker.handler_timeout_ms as a duration.
func (c *Config) HandlerTimeout() time.Duration {
	return time.Duration(c.Broker.HandlerTimeoutMs) * time.Millisecond
}

// Debounce returns search.debounce_ms as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Search.DebounceMs) * time.Millisecond
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get retrieves a configuration value by dot-separated key.
// For example: "broker.timeout_ms" or "search.initial_provider"
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "broker":
		return c.getBrokerField(field)
	case "search":
		return c.getSearchField(field)
	case "host":
		return c.getHostField(field)
	case "data":
		return c.getDataField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "broker":
		return c.setBrokerField(field, value)
	case "search":
		return c.setSearchField(field, value)
	case "host":
		return c.setHostField(field, value)
	case "data":
		return c.setDataField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func splitKey(key string) (string, string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	return parts[0], parts[1], nil
}

func (c *Config) getBrokerField(field string) (string, error) {
	switch field {
	case "timeout_ms":
		return strconv.Itoa(c.Broker.TimeoutMs), nil
	case "handler_timeout_ms":
		return strconv.Itoa(c.Broker.HandlerTimeoutMs), nil
	default:
		return "", fmt.Errorf("unknown field: broker.%s", field)
	}
}

func (c *Config) setBrokerField(field, value string) error {
	switch field {
	case "timeout_ms":
		v, err := parsePositive(field, value)
		if err != nil {
			return err
		}
		c.Broker.TimeoutMs = v
	case "handler_timeout_ms":
		v, err := parsePositive(field, value)
		if err != nil {
			return err
		}
		c.Broker.HandlerTimeoutMs = v
	default:
		return fmt.Errorf("unknown field: broker.%s", field)
	}
	return nil
}

func (c *Config) getSearchField(field string) (string, error) {
	switch field {
	case "debounce_ms":
		return strconv.Itoa(c.Search.DebounceMs), nil
	case "threshold":
		return strconv.FormatFloat(c.Search.Threshold, 'g', -1, 64), nil
	case "distance":
		return strconv.Itoa(c.Search.Distance), nil
	case "initial_provider":
		return c.Search.InitialProvider, nil
	case "initial_command":
		return c.Search.InitialCommand, nil
	case "max_results":
		return strconv.Itoa(c.Search.MaxResults), nil
	default:
		return "", fmt.Errorf("unknown field: search.%s", field)
	}
}

func (c *Config) setSearchField(field, value string) error {
	switch field {
	case "debounce_ms":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Search.DebounceMs = v
	case "threshold":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for threshold: %w", err)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("invalid threshold: must be between 0 and 1")
		}
		c.Search.Threshold = v
	case "distance":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Search.Distance = v
	case "initial_provider":
		if value == "" {
			return fmt.Errorf("invalid initial_provider: must not be empty")
		}
		c.Search.InitialProvider = value
	case "initial_command":
		if value == "" {
			return fmt.Errorf("invalid initial_command: must not be empty")
		}
		c.Search.InitialCommand = value
	case "max_results":
		v, err := parseNonNegative(field, value)
		if err != nil {
			return err
		}
		c.Search.MaxResults = v
	default:
		return fmt.Errorf("unknown field: search.%s", field)
	}
	return nil
}

func (c *Config) getHostField(field string) (string, error) {
	switch field {
	case "socket_path":
		return c.Host.SocketPath, nil
	case "log_level":
		return c.Host.LogLevel, nil
	case "log_file":
		return c.Host.LogFile, nil
	case "open_command":
		return c.Host.OpenCommand, nil
	case "copy_command":
		return c.Host.CopyCommand, nil
	default:
		return "", fmt.Errorf("unknown field: host.%s", field)
	}
}

func (c *Config) setHostField(field, value string) error {
	switch field {
	case "socket_path":
		c.Host.SocketPath = value
	case "log_level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", value)
		}
		c.Host.LogLevel = value
	case "log_file":
		c.Host.LogFile = value
	case "open_command":
		c.Host.OpenCommand = value
	case "copy_command":
		c.Host.CopyCommand = value
	default:
		return fmt.Errorf("unknown field: host.%s", field)
	}
	return nil
}

func (c *Config) getDataField(field string) (string, error) {
	switch field {
	case "database_path":
		return c.Data.DatabasePath, nil
	case "bookmarks_file":
		return c.Data.BookmarksFile, nil
	case "tabs_file":
		return c.Data.TabsFile, nil
	default:
		return "", fmt.Errorf("unknown field: data.%s", field)
	}
}

func (c *Config) setDataField(field, value string) error {
	switch field {
	case "database_path":
		c.Data.DatabasePath = value
	case "bookmarks_file":
		c.Data.BookmarksFile = value
	case "tabs_file":
		c.Data.TabsFile = value
	default:
		return fmt.Errorf("unknown field: data.%s", field)
	}
	return nil
}

func parsePositive(field, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", field)
	}
	return v, nil
}

func parseNonNegative(field, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must be non-negative", field)
	}
	return v, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Broker.TimeoutMs <= 0 {
		return errors.New("broker.timeout_ms must be > 0")
	}

	if c.Broker.HandlerTimeoutMs <= 0 {
		return errors.New("broker.handler_timeout_ms must be > 0")
	}

	if c.Search.DebounceMs < 0 {
		return errors.New("search.debounce_ms must be >= 0")
	}

	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("search.threshold must be between 0 and 1 (got: %g)", c.Search.Threshold)
	}

	if c.Search.Distance < 0 {
		return errors.New("search.distance must be >= 0")
	}

	if c.Search.InitialProvider == "" || c.Search.InitialCommand == "" {
		return errors.New("search.initial_provider and search.initial_command must be set")
	}

	if c.Search.MaxResults < 0 {
		return errors.New("search.max_results must be >= 0")
	}

	if !isValidLogLevel(c.Host.LogLevel) {
		return fmt.Errorf("host.log_level must be debug, info, warn, or error (got: %s)", c.Host.LogLevel)
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PALETTE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Host.LogLevel = "debug"
		}
	}
	if v := os.Getenv("PALETTE_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Host.LogLevel = v
		}
	}
	if v := os.Getenv("PALETTE_SOCKET_PATH"); v != "" {
		c.Host.SocketPath = v
	}
	if v := os.Getenv("PALETTE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.Broker.TimeoutMs = ms
		}
	}
}

// ListKeys returns every configuration key.
func ListKeys() []string {
	return []string{
		"broker.timeout_ms",
		"broker.handler_timeout_ms",
		"search.debounce_ms",
		"search.threshold",
		"search.distance",
		"search.initial_provider",
		"search.initial_command",
		"search.max_results",
		"host.socket_path",
		"host.log_level",
		"host.log_file",
		"host.open_command",
		"host.copy_command",
		"data.database_path",
		"data.bookmarks_file",
		"data.tabs_file",
	}
}
