package config

import "time"

// Config holds client configuration values.
type Config struct {
	APIURL            string        `mapstructure:"api_url" yaml:"api_url"`
	RealtimeURL       string        `mapstructure:"realtime_url" yaml:"realtime_url"`
	SessionPath       string        `mapstructure:"session_path" yaml:"session_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReconnectMinDelay time.Duration `mapstructure:"reconnect_min_delay" yaml:"reconnect_min_delay"`
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay" yaml:"reconnect_max_delay"`
}

// Default returns configuration with reasonable starter defaults.
// SessionPath is left empty and resolved next to the config file by Load.
func Default() Config {
	return Config{
		APIURL:            "http://localhost:5000",
		RealtimeURL:       "ws://localhost:5000/ws",
		LogLevel:          "info",
		RequestTimeout:    15 * time.Second,
		DialTimeout:       10 * time.Second,
		ReconnectMinDelay: 500 * time.Millisecond,
		ReconnectMaxDelay: 30 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.APIURL != "" {
		c.APIURL = other.APIURL
	}
	if other.RealtimeURL != "" {
		c.RealtimeURL = other.RealtimeURL
	}
	if other.SessionPath != "" {
		c.SessionPath = other.SessionPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.ReconnectMinDelay != 0 {
		c.ReconnectMinDelay = other.ReconnectMinDelay
	}
	if other.ReconnectMaxDelay != 0 {
		c.ReconnectMaxDelay = other.ReconnectMaxDelay
	}
}
