// Package config provides client configuration management.
//
// Values are resolved by viper from, highest first: flags bound by the
// caller, SNABEL_* environment variables, ~/.config/snabel/config.yaml (or an
// explicit --config file) and built-in defaults. The file is written with
// yaml.v3.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override (SNABEL_BASE_URL, ...).
	EnvPrefix = "SNABEL"

	// DefaultBaseURL is the backend address used when nothing is configured.
	DefaultBaseURL = "http://localhost:8090"
)

// Config keys.
const (
	KeyBaseURL           = "base_url"
	KeyHTTPTimeout       = "http.timeout"
	KeyPollInterval      = "poll.interval"
	KeyPollTimeout       = "poll.timeout"
	KeyHandshakeTimeout  = "stream.handshake_timeout"
	KeyReconnect         = "stream.reconnect"
	KeyReconnectInitial  = "stream.reconnect_initial"
	KeyReconnectMax      = "stream.reconnect_max"
	KeyReconnectAttempts = "stream.reconnect_attempts"
	KeyLogsMaxEntries    = "logs.max_entries"
	KeySessionsLimit     = "sessions.limit"
)

// KeyInfo describes a configuration key for display and `config set`.
type KeyInfo struct {
	Key         string
	Default     interface{}
	Description string
}

// EnvVar returns the environment variable overriding the key.
func (k KeyInfo) EnvVar() string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(k.Key, ".", "_"))
}

// Keys lists every supported key in display order.
var Keys = []KeyInfo{
	{KeyBaseURL, DefaultBaseURL, "Backend base URL (http or https)"},
	{KeyHTTPTimeout, 30 * time.Second, "Timeout for each HTTP request"},
	{KeyPollInterval, 10 * time.Second, "Status poll cadence"},
	{KeyPollTimeout, 5 * time.Second, "Timeout for each status poll fetch"},
	{KeyHandshakeTimeout, 30 * time.Second, "Log stream handshake timeout"},
	{KeyReconnect, false, "Reconnect a dropped log stream with backoff"},
	{KeyReconnectInitial, time.Second, "First reconnect delay"},
	{KeyReconnectMax, 30 * time.Second, "Maximum reconnect delay"},
	{KeyReconnectAttempts, 5, "Reconnect attempts before giving up"},
	{KeyLogsMaxEntries, 0, "Log entries kept per session (0 = unbounded)"},
	{KeySessionsLimit, 50, "Sessions fetched per list request"},
}

// LookupKey returns the KeyInfo for key.
func LookupKey(key string) (KeyInfo, bool) {
	for _, k := range Keys {
		if k.Key == key {
			return k, true
		}
	}
	return KeyInfo{}, false
}

// Config is the resolved client configuration.
type Config struct {
	BaseURL  string
	HTTP     HTTPConfig
	Poll     PollConfig
	Stream   StreamConfig
	Logs     LogsConfig
	Sessions SessionsConfig
}

// HTTPConfig configures the REST client.
type HTTPConfig struct {
	Timeout time.Duration
}

// PollConfig configures the status poller.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// StreamConfig configures the log stream.
type StreamConfig struct {
	HandshakeTimeout  time.Duration
	Reconnect         bool
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int
}

// LogsConfig configures the local log buffers.
type LogsConfig struct {
	MaxEntries int
}

// SessionsConfig configures session listing.
type SessionsConfig struct {
	Limit int
}

// DefaultDir returns ~/.config/snabel.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, ".config", "snabel"), nil
}

// DefaultPath returns ~/.config/snabel/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	for _, k := range Keys {
		v.SetDefault(k.Key, k.Default)
	}
}

// InitEnv registers defaults and SNABEL_* environment overrides on v without
// reading any file. Used when the config file is about to be created.
func InitEnv(v *viper.Viper) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Init prepares v: defaults, environment overrides and the config file. A
// missing default file is not an error; a missing explicit file is.
//
// Parameters:
//   - v: The viper instance to configure
//   - cfgFile: Explicit config file path, or "" for the default location
//
// Returns:
//   - error: If the file exists but cannot be read or parsed
func Init(v *viper.Viper, cfgFile string) error {
	InitEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BaseURL: NormalizeBaseURL(v.GetString(KeyBaseURL)),
		HTTP: HTTPConfig{
			Timeout: v.GetDuration(KeyHTTPTimeout),
		},
		Poll: PollConfig{
			Interval: v.GetDuration(KeyPollInterval),
			Timeout:  v.GetDuration(KeyPollTimeout),
		},
		Stream: StreamConfig{
			HandshakeTimeout:  v.GetDuration(KeyHandshakeTimeout),
			Reconnect:         v.GetBool(KeyReconnect),
			ReconnectInitial:  v.GetDuration(KeyReconnectInitial),
			ReconnectMax:      v.GetDuration(KeyReconnectMax),
			ReconnectAttempts: v.GetInt(KeyReconnectAttempts),
		},
		Logs: LogsConfig{
			MaxEntries: v.GetInt(KeyLogsMaxEntries),
		},
		Sessions: SessionsConfig{
			Limit: v.GetInt(KeySessionsLimit),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot use.
func (c *Config) Validate() error {
	if err := ValidateBaseURL(c.BaseURL); err != nil {
		return err
	}
	positive := map[string]time.Duration{
		KeyHTTPTimeout:      c.HTTP.Timeout,
		KeyPollInterval:     c.Poll.Interval,
		KeyPollTimeout:      c.Poll.Timeout,
		KeyHandshakeTimeout: c.Stream.HandshakeTimeout,
	}
	for _, k := range Keys {
		if d, ok := positive[k.Key]; ok && d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %s", k.Key, d)
		}
	}
	if c.Stream.Reconnect {
		if c.Stream.ReconnectInitial <= 0 || c.Stream.ReconnectMax < c.Stream.ReconnectInitial {
			return fmt.Errorf("%s must be positive and not exceed %s", KeyReconnectInitial, KeyReconnectMax)
		}
		if c.Stream.ReconnectAttempts <= 0 {
			return fmt.Errorf("%s must be positive", KeyReconnectAttempts)
		}
	}
	if c.Logs.MaxEntries < 0 {
		return fmt.Errorf("%s must not be negative", KeyLogsMaxEntries)
	}
	if c.Sessions.Limit <= 0 {
		return fmt.Errorf("%s must be positive", KeySessionsLimit)
	}
	return nil
}

// fileConfig is the on-disk layout. Durations are written as strings.
type fileConfig struct {
	BaseURL string `yaml:"base_url"`
	HTTP    struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"http"`
	Poll struct {
		Interval string `yaml:"interval"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"poll"`
	Stream struct {
		HandshakeTimeout  string `yaml:"handshake_timeout"`
		Reconnect         bool   `yaml:"reconnect"`
		ReconnectInitial  string `yaml:"reconnect_initial"`
		ReconnectMax      string `yaml:"reconnect_max"`
		ReconnectAttempts int    `yaml:"reconnect_attempts"`
	} `yaml:"stream"`
	Logs struct {
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"logs"`
	Sessions struct {
		Limit int `yaml:"limit"`
	} `yaml:"sessions"`
}

// Save writes cfg to path, creating the directory if needed.
//
// Parameters:
//   - path: Path to write the config.yaml file
//   - cfg: The configuration to write
//
// Returns:
//   - error: Any error that occurred during writing
func Save(path string, cfg *Config) error {
	var fc fileConfig
	fc.BaseURL = cfg.BaseURL
	fc.HTTP.Timeout = cfg.HTTP.Timeout.String()
	fc.Poll.Interval = cfg.Poll.Interval.String()
	fc.Poll.Timeout = cfg.Poll.Timeout.String()
	fc.Stream.HandshakeTimeout = cfg.Stream.HandshakeTimeout.String()
	fc.Stream.Reconnect = cfg.Stream.Reconnect
	fc.Stream.ReconnectInitial = cfg.Stream.ReconnectInitial.String()
	fc.Stream.ReconnectMax = cfg.Stream.ReconnectMax.String()
	fc.Stream.ReconnectAttempts = cfg.Stream.ReconnectAttempts
	fc.Logs.MaxEntries = cfg.Logs.MaxEntries
	fc.Sessions.Limit = cfg.Sessions.Limit

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# snabel configuration\n# See: snabel config show (for effective values and sources)\n\n"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Set assigns a single key on v after checking that it is known and that the
// value parses for the key's type. The result is validated as a whole.
func Set(v *viper.Viper, key, value string) (*Config, error) {
	info, ok := LookupKey(key)
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}

	var parsed interface{}
	switch info.Default.(type) {
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		parsed = d
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		parsed = b
	case int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		parsed = n
	default:
		parsed = value
	}

	v.Set(key, parsed)
	return FromViper(v)
}

// ReadFileKeys returns the flattened keys present in a YAML config file.
func ReadFileKeys(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}
	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}
	flattenKeys("", parsed, result)
	return result
}

func flattenKeys(prefix string, m map[string]interface{}, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]interface{}); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// Source describes where the effective value of a key comes from.
func Source(info KeyInfo, fileKeys map[string]bool) string {
	if _, ok := os.LookupEnv(info.EnvVar()); ok {
		return fmt.Sprintf("(env: %s)", info.EnvVar())
	}
	if fileKeys[info.Key] {
		return "(file)"
	}
	return "(default)"
}

// FlagBindings maps command-line flags to the keys they override.
var FlagBindings = map[string]string{
	"base-url": KeyBaseURL,
}

// BindFlags binds the flags in FlagBindings found in fs to v, so a flag set
// on the command line outranks env and file.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range FlagBindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}
