package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use "30s" syntax.
type Duration time.Duration

// UnmarshalYAML parses durations in time.ParseDuration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// RateLimit bounds how many messages one connection may send per window.
type RateLimit struct {
	Max    int      `yaml:"max"`
	Window Duration `yaml:"window"`
}

// Config holds everything the server consumes at startup.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	SecretKey  string `yaml:"secret_key"`

	// RedisAddr selects the Redis-backed history when non-empty;
	// otherwise history lives in process memory.
	RedisAddr string `yaml:"redis_addr"`

	// MaxConns caps concurrent websocket connections (0 = unlimited).
	MaxConns int `yaml:"max_conns"`

	// IdleTimeout reaps connections with no inbound traffic (0 = off).
	IdleTimeout Duration `yaml:"idle_timeout"`

	// TypingTimeout auto-clears stale typing flags (0 = off).
	TypingTimeout Duration `yaml:"typing_timeout"`

	RateLimit RateLimit `yaml:"rate_limit"`
}

// Default returns the configuration used when nothing is supplied.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		SecretKey:  "office_chat_secret_key_2024",
		RateLimit: RateLimit{
			Max:    10,
			Window: Duration(time.Second),
		},
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides. Environment values win over file values. An empty path
// skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.sanitize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("MAX_CONNS"); v != "" {
		c.MaxConns = parseInt(v, c.MaxConns)
	}
	if v := os.Getenv("IDLE_TIMEOUT"); v != "" {
		c.IdleTimeout = parseDuration(v, c.IdleTimeout)
	}
	if v := os.Getenv("TYPING_TIMEOUT"); v != "" {
		c.TypingTimeout = parseDuration(v, c.TypingTimeout)
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		c.RateLimit.Max = parseInt(v, c.RateLimit.Max)
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		c.RateLimit.Window = parseDuration(v, c.RateLimit.Window)
	}
}

func (c *Config) sanitize() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.MaxConns < 0 {
		c.MaxConns = 0
	}
	if c.RateLimit.Max <= 0 {
		c.RateLimit.Max = 10
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = Duration(time.Second)
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return fallback
}

func parseDuration(value string, fallback Duration) Duration {
	if parsed, err := time.ParseDuration(value); err == nil && parsed >= 0 {
		return Duration(parsed)
	}
	return fallback
}
