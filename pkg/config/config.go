// Package config loads treesync settings from a TOML file with environment
// fallbacks.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/treesync/pkg/batch"
	"github.com/odvcencio/treesync/pkg/remote"
)

// Environment variables consulted when the file leaves a value unset.
const (
	EnvToken  = "TREESYNC_TOKEN"
	EnvOwner  = "TREESYNC_OWNER"
	EnvAPIURL = "TREESYNC_API_URL"
)

// Duration is a time.Duration written as a Go duration string ("2s").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete treesync configuration.
type Config struct {
	API      APIConfig    `toml:"api"`
	Auth     AuthConfig   `toml:"auth"`
	Sync     SyncConfig   `toml:"sync"`
	Retry    RetryConfig  `toml:"retry"`
	Upload   PacingConfig `toml:"upload"`
	Download PacingConfig `toml:"download"`
}

// APIConfig configures the remote endpoint.
type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// AuthConfig says where credentials come from. The token itself is never
// stored in the file.
type AuthConfig struct {
	Owner        string `toml:"owner"`
	Organization bool   `toml:"organization"`
	TokenEnv     string `toml:"token_env"`
	TokenFile    string `toml:"token_file"`
}

// SyncConfig configures sync defaults.
type SyncConfig struct {
	BaseBranch    string   `toml:"base_branch"`
	DefaultBranch string   `toml:"default_branch"`
	CommitMessage string   `toml:"commit_message"`
	SettleDelay   Duration `toml:"settle_delay"`
	Private       bool     `toml:"private"`
}

// RetryConfig configures rate-limit handling.
type RetryConfig struct {
	MaxRetries  *int     `toml:"max_retries"`
	BaseDelay   Duration `toml:"base_delay"`
	ResetMargin Duration `toml:"reset_margin"`
}

// PacingConfig configures one batch scheduler.
type PacingConfig struct {
	BatchSize  int      `toml:"batch_size"`
	IntraDelay Duration `toml:"intra_delay"`
	InterDelay Duration `toml:"inter_delay"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the configuration file at path. Environment
// variables in path and string values are expanded.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML data and applies defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	c.API.BaseURL = os.ExpandEnv(c.API.BaseURL)
	c.Auth.Owner = os.ExpandEnv(c.Auth.Owner)
	c.Auth.TokenFile = os.ExpandEnv(c.Auth.TokenFile)
	c.Sync.BaseBranch = os.ExpandEnv(c.Sync.BaseBranch)
	c.Sync.DefaultBranch = os.ExpandEnv(c.Sync.DefaultBranch)
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = os.Getenv(EnvAPIURL)
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = remote.DefaultBaseURL
	}
	if c.API.Timeout.Duration == 0 {
		c.API.Timeout.Duration = 60 * time.Second
	}
	if c.Auth.Owner == "" {
		c.Auth.Owner = os.Getenv(EnvOwner)
	}
	if c.Auth.TokenEnv == "" {
		c.Auth.TokenEnv = EnvToken
	}
	if c.Sync.DefaultBranch == "" {
		c.Sync.DefaultBranch = "main"
	}
	if c.Sync.CommitMessage == "" {
		c.Sync.CommitMessage = "Sync files"
	}
	if c.Sync.SettleDelay.Duration == 0 {
		c.Sync.SettleDelay.Duration = 2 * time.Second
	}
	if c.Retry.MaxRetries == nil {
		n := 3
		c.Retry.MaxRetries = &n
	}
	if c.Retry.BaseDelay.Duration == 0 {
		c.Retry.BaseDelay.Duration = 2 * time.Second
	}
	if c.Retry.ResetMargin.Duration == 0 {
		c.Retry.ResetMargin.Duration = 5 * time.Second
	}
	c.Upload.fill(batch.UploadPacing)
	c.Download.fill(batch.DownloadPacing)
}

func (p *PacingConfig) fill(def batch.Options) {
	if p.BatchSize == 0 {
		p.BatchSize = def.Size
	}
	if p.IntraDelay.Duration == 0 {
		p.IntraDelay.Duration = def.IntraDelay
	}
	if p.InterDelay.Duration == 0 {
		p.InterDelay.Duration = def.InterDelay
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout.Duration < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if c.Retry.BaseDelay.Duration < 0 || c.Retry.ResetMargin.Duration < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	for name, p := range map[string]PacingConfig{"upload": c.Upload, "download": c.Download} {
		if p.BatchSize < 0 {
			return fmt.Errorf("%s.batch_size must be positive", name)
		}
		if p.IntraDelay.Duration < 0 || p.InterDelay.Duration < 0 {
			return fmt.Errorf("%s delays must not be negative", name)
		}
	}
	if strings.ContainsAny(c.Sync.DefaultBranch, " \t~^:?*[\\") {
		return fmt.Errorf("sync.default_branch is not a valid branch name: %q", c.Sync.DefaultBranch)
	}
	return nil
}

// ErrNoToken is returned by Token when no source yields a token.
var ErrNoToken = errors.New("no API token configured")

// Token resolves the API token from the configured environment variable,
// then from token_file.
func (c *Config) Token() (string, error) {
	if v := strings.TrimSpace(os.Getenv(c.Auth.TokenEnv)); v != "" {
		return v, nil
	}
	if c.Auth.TokenFile != "" {
		data, err := os.ReadFile(c.Auth.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read token file: %w", err)
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
	}
	return "", ErrNoToken
}

// ExecutorOptions returns the retry settings for the remote client.
func (c *Config) ExecutorOptions() remote.ExecutorOptions {
	var retries int
	if n := c.Retry.MaxRetries; n != nil {
		retries = *n
		if retries == 0 {
			retries = remote.NoRetries
		}
	}
	return remote.ExecutorOptions{
		MaxRetries:  retries,
		BaseDelay:   c.Retry.BaseDelay.Duration,
		ResetMargin: c.Retry.ResetMargin.Duration,
	}
}

// UploadOptions returns the pacing for blob uploads.
func (c *Config) UploadOptions() batch.Options { return c.Upload.options() }

// DownloadOptions returns the pacing for blob downloads.
func (c *Config) DownloadOptions() batch.Options { return c.Download.options() }

func (p PacingConfig) options() batch.Options {
	return batch.Options{Size: p.BatchSize, IntraDelay: p.IntraDelay.Duration, InterDelay: p.InterDelay.Duration}
}
