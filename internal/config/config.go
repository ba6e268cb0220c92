package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/smarthttp/internal/stream"
	"github.com/fenilsonani/smarthttp/internal/transport"
)

// Config holds the smarthttp configuration.
type Config struct {
	UserAgent    string        `yaml:"user_agent"`
	MaxRedirects int           `yaml:"max_redirects"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	Breaker      Breaker       `yaml:"breaker"`
}

// Breaker configures the circuit breaker around connects. It is disabled
// while FailureThreshold is 0.
type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		UserAgent:    transport.DefaultUserAgent,
		MaxRedirects: transport.DefaultMaxRedirects,
		DialTimeout:  transport.DefaultDialTimeout,
	}
}

// DefaultPath returns the default config file path: ~/.smarthttp/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".smarthttp", "config.yaml")
	}
	return filepath.Join(home, ".smarthttp", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns the default Config with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.UserAgent != "" && !httpguts.ValidHeaderFieldValue(c.UserAgent) {
		return fmt.Errorf("user_agent %q is not a valid header value", c.UserAgent)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must not be negative, got %d", c.MaxRedirects)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("dial_timeout must not be negative, got %s", c.DialTimeout)
	}
	if c.Breaker.Interval < 0 || c.Breaker.Timeout < 0 {
		return errors.New("breaker durations must not be negative")
	}
	return nil
}

// Options converts the configuration into subtransport options. A zero
// MaxRedirects disables redirects rather than selecting the default.
func (c *Config) Options() transport.Options {
	maxRedirects := c.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = -1
	}
	return transport.Options{
		UserAgent:    c.UserAgent,
		MaxRedirects: maxRedirects,
		DialTimeout:  c.DialTimeout,
		Breaker: stream.BreakerSettings{
			MaxRequests:      c.Breaker.MaxRequests,
			Interval:         c.Breaker.Interval,
			Timeout:          c.Breaker.Timeout,
			FailureThreshold: c.Breaker.FailureThreshold,
		},
	}
}
