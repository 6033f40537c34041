package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/park285/kamisado-client/internal/obslog"
)

// EnvConfigFile names the YAML profile when no path is passed to Load.
const EnvConfigFile = "KAMISADO_CONFIG"

const DefaultRelayPrefix = "kamisado"

type AppConfig struct {
	BaseURL string `env:"KAMISADO_BASE_URL" yaml:"base_url"`
	WSURL   string `env:"KAMISADO_WS_URL" yaml:"ws_url"`

	// zero means no client-side deadline
	HTTPTimeout     time.Duration `env:"KAMISADO_HTTP_TIMEOUT" yaml:"http_timeout"`
	MaxConnsPerHost int           `env:"KAMISADO_MAX_CONNS_PER_HOST" yaml:"max_conns_per_host"`
	WSReadLimit     int64         `env:"KAMISADO_WS_READ_LIMIT" yaml:"ws_read_limit"`

	RedisURL    string `env:"REDIS_URL" yaml:"redis_url"`
	RelayPrefix string `env:"KAMISADO_RELAY_PREFIX" yaml:"relay_prefix"`

	Log obslog.Options `yaml:"log"`
}

func Default() *AppConfig {
	return &AppConfig{
		BaseURL:         "http://localhost:8081",
		MaxConnsPerHost: 64,
		WSReadLimit:     1 << 20,
		RelayPrefix:     DefaultRelayPrefix,
		Log:             obslog.DefaultOptions(),
	}
}

// Load applies defaults, then the YAML file at path (or $KAMISADO_CONFIG),
// then environment variables.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.WSURL = strings.TrimSpace(cfg.WSURL)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.RelayPrefix = strings.TrimSpace(cfg.RelayPrefix)
	if cfg.RelayPrefix == "" {
		cfg.RelayPrefix = DefaultRelayPrefix
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func loadFile(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *AppConfig) Validate() error {
	if c.HTTPTimeout < 0 {
		return errors.New("KAMISADO_HTTP_TIMEOUT must not be negative")
	}
	if c.MaxConnsPerHost < 0 {
		return errors.New("KAMISADO_MAX_CONNS_PER_HOST must not be negative")
	}
	if c.WSReadLimit < 0 {
		return errors.New("KAMISADO_WS_READ_LIMIT must not be negative")
	}
	return nil
}
