package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenilsonani/smarthttp/internal/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, transport.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 10, cfg.MaxRedirects)
	assert.Equal(t, 30*time.Second, cfg.DialTimeout)
	assert.Zero(t, cfg.Breaker.FailureThreshold)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
user_agent: "git/2.45.0"
max_redirects: 3
dial_timeout: 5s
breaker:
  max_requests: 2
  interval: 1m
  timeout: 10s
  failure_threshold: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "git/2.45.0", cfg.UserAgent)
	assert.Equal(t, 3, cfg.MaxRedirects)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, Breaker{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		FailureThreshold: 4,
	}, cfg.Breaker)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "max_redirects: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxRedirects)
	assert.Equal(t, transport.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, transport.DefaultDialTimeout, cfg.DialTimeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "malformed yaml", content: "max_redirects: [1, 2", errMsg: "failed to parse"},
		{name: "wrong type", content: "max_redirects: many", errMsg: "failed to parse"},
		{name: "bad duration", content: "dial_timeout: soon", errMsg: "failed to parse"},
		{name: "negative redirects", content: "max_redirects: -1", errMsg: "max_redirects"},
		{name: "negative timeout", content: "dial_timeout: -5s", errMsg: "dial_timeout"},
		{name: "header injection", content: "user_agent: \"git\\r\\nX-Evil: 1\"", errMsg: "user_agent"},
		{name: "negative breaker", content: "breaker:\n  timeout: -1s", errMsg: "breaker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	path := DefaultPath()
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, ".smarthttp", filepath.Base(filepath.Dir(path)))
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Breaker.FailureThreshold = 3
	cfg.Breaker.Timeout = time.Second

	opts := cfg.Options()
	assert.Equal(t, transport.DefaultUserAgent, opts.UserAgent)
	assert.Equal(t, transport.DefaultMaxRedirects, opts.MaxRedirects)
	assert.Equal(t, transport.DefaultDialTimeout, opts.DialTimeout)
	assert.Equal(t, uint32(3), opts.Breaker.FailureThreshold)
	assert.Equal(t, time.Second, opts.Breaker.Timeout)

	cfg.MaxRedirects = 0
	assert.Negative(t, cfg.Options().MaxRedirects, "zero in the file disables redirects")
}
