package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds client configuration values.
type Config struct {
	Server         string        `mapstructure:"server" yaml:"server"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	MaxFrameBytes  int64         `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
	HistoryPath    string        `mapstructure:"history_path" yaml:"history_path"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Server:         "https://localhost:8080",
		RequestTimeout: 10 * time.Second,
		DialTimeout:    10 * time.Second,
		MaxFrameBytes:  1 << 20,
		HistoryPath:    "planroom.db",
		LogLevel:       "info",
	}
}

// ServerURL parses Server. Only http and https bases are accepted.
func (c Config) ServerURL() (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(c.Server, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", c.Server)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q: missing host", c.Server)
	}
	return u, nil
}

// WebSocketURL returns the ws:// or wss:// counterpart of Server.
func (c Config) WebSocketURL() (*url.URL, error) {
	u, err := c.ServerURL()
	if err != nil {
		return nil, err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u, nil
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Server != "" {
		c.Server = other.Server
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.MaxFrameBytes != 0 {
		c.MaxFrameBytes = other.MaxFrameBytes
	}
	if other.HistoryPath != "" {
		c.HistoryPath = other.HistoryPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
