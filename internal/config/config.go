package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

// DefaultTunnelURL is the agent service host used when no override is configured.
const DefaultTunnelURL = "https://agent-tunnel.avalove.app"

const (
	defaultPollInterval     = 2 * time.Second
	minPollInterval         = 250 * time.Millisecond
	defaultTimeout          = 30 * time.Second
	defaultFetchConcurrency = 4
	defaultStoreLimit       = 20
)

// APIConfig holds how the agent service is reached and on whose behalf.
type APIConfig struct {
	DefaultBaseURL string        `toml:"default_base_url"`
	BaseURL        string        `toml:"base_url"`
	OwnerID        string        `toml:"owner_id"`
	Timeout        time.Duration `toml:"timeout"`
}

// BuildConfig tunes the build workflow.
type BuildConfig struct {
	AgentID          string        `toml:"agent_id"`
	PollInterval     time.Duration `toml:"poll_interval"`
	FetchConcurrency int           `toml:"fetch_concurrency"`
	StoreLimit       int           `toml:"store_limit"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// TelemetryConfig enables HTTP tracing. An empty TraceFile disables export.
type TelemetryConfig struct {
	TraceFile string `toml:"trace_file"`
}

// Config holds all builddeck configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Build     BuildConfig     `toml:"build"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	StatePath string          `toml:"state_path"`
}

// envOverrides lists the variables that take precedence over the file.
// Pointers stay nil when the variable is unset.
type envOverrides struct {
	OwnerID          *string        `env:"BUILDDECK_OWNER_ID, noinit"`
	AgentID          *string        `env:"BUILDDECK_AGENT_ID, noinit"`
	BaseURL          *string        `env:"BUILDDECK_API_BASE, noinit"`
	DefaultBaseURL   *string        `env:"BUILDDECK_DEFAULT_TUNNEL, noinit"`
	Timeout          *time.Duration `env:"BUILDDECK_TIMEOUT, noinit"`
	PollInterval     *time.Duration `env:"BUILDDECK_POLL_INTERVAL, noinit"`
	FetchConcurrency *int           `env:"BUILDDECK_FETCH_CONCURRENCY, noinit"`
	LogLevel         *string        `env:"BUILDDECK_LOG_LEVEL, noinit"`
	LogFile          *string        `env:"BUILDDECK_LOG_FILE, noinit"`
	TraceFile        *string        `env:"BUILDDECK_TRACE_FILE, noinit"`
	StatePath        *string        `env:"BUILDDECK_STATE_PATH, noinit"`
}

// DefaultBaseURLOrDefault returns the configured tunnel host or DefaultTunnelURL.
func (c Config) DefaultBaseURLOrDefault() string {
	if c.API.DefaultBaseURL != "" {
		return c.API.DefaultBaseURL
	}
	return DefaultTunnelURL
}

// TimeoutOrDefault returns the per-request HTTP timeout.
func (c Config) TimeoutOrDefault() time.Duration {
	if c.API.Timeout > 0 {
		return c.API.Timeout
	}
	return defaultTimeout
}

// PollIntervalOrDefault returns the status polling interval, never below 250ms.
func (c Config) PollIntervalOrDefault() time.Duration {
	if c.Build.PollInterval <= 0 {
		return defaultPollInterval
	}
	if c.Build.PollInterval < minPollInterval {
		return minPollInterval
	}
	return c.Build.PollInterval
}

// FetchConcurrencyOrDefault returns how many artifact files are fetched at once.
func (c Config) FetchConcurrencyOrDefault() int {
	if c.Build.FetchConcurrency > 0 {
		return c.Build.FetchConcurrency
	}
	return defaultFetchConcurrency
}

// StoreLimitOrDefault returns how many store apps are listed.
func (c Config) StoreLimitOrDefault() int {
	if c.Build.StoreLimit > 0 {
		return c.Build.StoreLimit
	}
	return defaultStoreLimit
}

// StatePathOrDefault returns where preferences and history are persisted.
func (c Config) StatePathOrDefault() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	return filepath.Join(configDir(), "state.toml")
}

// LogFileOrDefault returns the file the TUI logs to.
func (c Config) LogFileOrDefault() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "builddeck", "builddeck.log")
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns an empty config without error.
// Environment variables always take precedence over file values, for example
// BUILDDECK_OWNER_ID overrides api.owner_id and BUILDDECK_POLL_INTERVAL
// overrides build.poll_interval.
func LoadFrom(path string) (Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}

// Update applies fn to the file's own values and saves the result.
// Environment overrides are not read, so they never leak into the file.
func Update(path string, fn func(*Config)) error {
	cfg, err := readFile(path)
	if err != nil {
		return err
	}
	fn(&cfg)
	return Save(path, cfg)
}

func readFile(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultConfigPath returns the default path for the builddeck config file.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "builddeck")
}

func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(context.Background(), &env); err != nil {
		return err
	}
	setString(&cfg.API.OwnerID, env.OwnerID)
	setString(&cfg.Build.AgentID, env.AgentID)
	setString(&cfg.API.BaseURL, env.BaseURL)
	setString(&cfg.API.DefaultBaseURL, env.DefaultBaseURL)
	setString(&cfg.Log.Level, env.LogLevel)
	setString(&cfg.Log.File, env.LogFile)
	setString(&cfg.Telemetry.TraceFile, env.TraceFile)
	setString(&cfg.StatePath, env.StatePath)
	if env.Timeout != nil {
		cfg.API.Timeout = *env.Timeout
	}
	if env.PollInterval != nil {
		cfg.Build.PollInterval = *env.PollInterval
	}
	if env.FetchConcurrency != nil {
		cfg.Build.FetchConcurrency = *env.FetchConcurrency
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
