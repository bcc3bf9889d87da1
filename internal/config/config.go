// Package config loads wirecurl settings from a YAML file, WIRECURL_*
// environment variables and defaults, using Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dqx0.com/go/wireclient/httpx"
	"dqx0.com/go/wireclient/internal/obs"
	"dqx0.com/go/wireclient/wsx"
)

// Config holds all configuration for wirecurl.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	WebSocket WebSocketConfig `mapstructure:"websocket" yaml:"websocket"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// HTTPConfig holds connection settings shared by HTTP and WebSocket.
type HTTPConfig struct {
	// Connect timeout (DNS, TCP, TLS handshake)
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Per-read socket deadline, 0 = none
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	// Per-write socket deadline, 0 = none
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	// Skip certificate verification
	InsecureTLS bool `mapstructure:"insecure_tls" yaml:"insecure_tls"`
	// Limit on the response status line plus headers
	MaxHeaderBytes int `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`
}

// WebSocketConfig holds session settings.
type WebSocketConfig struct {
	CloseTimeout   time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	// Log level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Output format: console, json
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:        httpx.DefaultDialTimeout,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			InsecureTLS:    false,
			MaxHeaderBytes: 64 << 10,
		},
		WebSocket: WebSocketConfig{
			CloseTimeout:   wsx.DefaultCloseTimeout,
			ReadTimeout:    0,
			MaxMessageSize: wsx.DefaultMaxMessageSize,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from the default search path and environment
// variables. A missing config file is not an error.
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".config", "wirecurl"))
	v.AddConfigPath("/etc/wirecurl")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("WIRECURL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults mirrors DefaultConfig so env-only keys resolve.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.insecure_tls", d.HTTP.InsecureTLS)
	v.SetDefault("http.max_header_bytes", d.HTTP.MaxHeaderBytes)

	v.SetDefault("websocket.close_timeout", d.WebSocket.CloseTimeout)
	v.SetDefault("websocket.read_timeout", d.WebSocket.ReadTimeout)
	v.SetDefault("websocket.max_message_size", d.WebSocket.MaxMessageSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "wirecurl", "config.yaml")
}

// Logger builds the configured zerolog logger writing to stderr. An
// unknown level falls back to info.
func (c *Config) Logger() obs.Zerolog {
	lvl, _ := obs.ParseLevel(c.Logging.Level)
	return obs.NewZerolog(os.Stderr, lvl, c.Logging.Format)
}

// DialOptions converts the HTTP section for httpx.
func (c *Config) DialOptions(lg obs.Logger) httpx.DialOptions {
	return httpx.DialOptions{
		Timeout:      c.HTTP.Timeout,
		ReadTimeout:  c.HTTP.ReadTimeout,
		WriteTimeout: c.HTTP.WriteTimeout,
		InsecureTLS:  c.HTTP.InsecureTLS,
		MaxHeadBytes: c.HTTP.MaxHeaderBytes,
		Logger:       lg,
	}
}

// Transport builds a BasicTransport from the HTTP section.
func (c *Config) Transport(lg obs.Logger, m obs.Meter) *httpx.BasicTransport {
	return &httpx.BasicTransport{
		DialTimeout:  c.HTTP.Timeout,
		ReadTimeout:  c.HTTP.ReadTimeout,
		WriteTimeout: c.HTTP.WriteTimeout,
		InsecureTLS:  c.HTTP.InsecureTLS,
		MaxHeadBytes: c.HTTP.MaxHeaderBytes,
		Logger:       lg,
		Meter:        m,
	}
}

// SessionOptions converts the WebSocket section for wsx. The HTTP read
// timeout only applies to the handshake.
func (c *Config) SessionOptions(lg obs.Logger) wsx.Options {
	return wsx.Options{
		CloseTimeout:   c.WebSocket.CloseTimeout,
		ReadTimeout:    c.WebSocket.ReadTimeout,
		MaxMessageSize: c.WebSocket.MaxMessageSize,
		Logger:         lg,
		Dial:           c.DialOptions(lg),
	}
}
