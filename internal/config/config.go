package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/livyctl/internal/livy"
)

// ClientConfig is the livyctl client configuration file schema.
//
// Durations are strings in time.ParseDuration form ("30s", "5m").
type ClientConfig struct {
	ApplicationID    string `toml:"application_id"`
	Region           string `toml:"region"`
	ExecutionRoleARN string `toml:"execution_role_arn"`
	Endpoint         string `toml:"endpoint"`
	Kind             string `toml:"kind"`

	HeartbeatTimeout      string `toml:"heartbeat_timeout"`
	WaitTimeout           string `toml:"wait_timeout"`
	SessionPollInterval   string `toml:"session_poll_interval"`
	StatementPollInterval string `toml:"statement_poll_interval"`
	HTTPTimeout           string `toml:"http_timeout"`

	Retry RetryConfig `toml:"retry"`
}

// RetryConfig is the [retry] table of the client configuration file.
type RetryConfig struct {
	MaxRetries  int     `toml:"max_retries"`
	BackoffBase float64 `toml:"backoff_base"`
}

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.ApplicationID) == "" && strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("client config missing application_id or endpoint")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" && strings.TrimSpace(cfg.Region) == "" {
		return fmt.Errorf("client config missing region")
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("client config invalid retry.max_retries: negative")
	}
	if _, err := cfg.Livy(); err != nil {
		return err
	}
	return nil
}

// Livy maps the file schema onto livy.ClientConfig. Credentials and the
// logger are runtime concerns left for the caller to attach.
func (cfg ClientConfig) Livy() (livy.ClientConfig, error) {
	out := livy.ClientConfig{
		ApplicationID:    strings.TrimSpace(cfg.ApplicationID),
		Region:           strings.TrimSpace(cfg.Region),
		ExecutionRoleARN: strings.TrimSpace(cfg.ExecutionRoleARN),
		Endpoint:         strings.TrimSpace(cfg.Endpoint),
		Kind:             strings.TrimSpace(cfg.Kind),
		Retry: livy.RetryPolicy{
			MaxRetries:  cfg.Retry.MaxRetries,
			BackoffBase: cfg.Retry.BackoffBase,
		},
	}

	var err error
	if out.HeartbeatTimeout, err = parseDuration("heartbeat_timeout", cfg.HeartbeatTimeout); err != nil {
		return livy.ClientConfig{}, err
	}
	if out.WaitTimeout, err = parseDuration("wait_timeout", cfg.WaitTimeout); err != nil {
		return livy.ClientConfig{}, err
	}
	if out.SessionPollInterval, err = parseDuration("session_poll_interval", cfg.SessionPollInterval); err != nil {
		return livy.ClientConfig{}, err
	}
	if out.StatementPollInterval, err = parseDuration("statement_poll_interval", cfg.StatementPollInterval); err != nil {
		return livy.ClientConfig{}, err
	}
	if out.HTTPTimeout, err = parseDuration("http_timeout", cfg.HTTPTimeout); err != nil {
		return livy.ClientConfig{}, err
	}
	return out, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("client config invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("client config invalid %s: negative duration", key)
	}
	return d, nil
}
