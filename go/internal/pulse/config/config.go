package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration. It is read once at start and never changed.
type Config struct {
	Server struct {
		Host      string `yaml:"host" env:"HOST"`
		Port      string `yaml:"port" env:"PORT"`
		ClientURL string `yaml:"client_url" env:"CLIENT_URL"`
	} `yaml:"server"`

	Sync struct {
		WindowMS         int `yaml:"window_ms" env:"SYNC_WINDOW_MS"`
		RequiredUsers    int `yaml:"required_users" env:"SYNC_REQUIRED_USERS"`
		IdleSweepMS      int `yaml:"idle_sweep_ms" env:"SYNC_IDLE_SWEEP_MS"`
		UserCountEveryMS int `yaml:"user_count_interval_ms" env:"USER_COUNT_INTERVAL_MS"`
	} `yaml:"sync"`

	RateLimit struct {
		Points      int `yaml:"points" env:"PULSE_RATE_POINTS"`
		DurationSec float64 `yaml:"duration_sec" env:"PULSE_RATE_DURATION"`
	} `yaml:"rate_limit"`

	ColorCooldownSec int `yaml:"color_change_cooldown_sec" env:"COLOR_CHANGE_COOLDOWN"`

	NATS struct {
		URL           string `yaml:"url" env:"NATS_URL"`
		SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
	} `yaml:"nats"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	var c Config
	c.Server.Host = "0.0.0.0"
	c.Server.Port = "3000"
	c.Server.ClientURL = "http://localhost:5173"
	c.Sync.WindowMS = 600
	c.Sync.RequiredUsers = 8
	c.Sync.UserCountEveryMS = 5000
	c.RateLimit.Points = 5
	c.RateLimit.DurationSec = 3
	c.ColorCooldownSec = 300
	c.NATS.SubjectPrefix = "pulse.events"
	c.LogLevel = "info"
	return c
}

// Load builds the configuration from defaults, the optional YAML file at
// CONFIG_PATH, then environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Sync.WindowMS <= 0 {
		errs = append(errs, errors.New("sync window must be positive"))
	}
	if c.Sync.RequiredUsers <= 0 {
		errs = append(errs, errors.New("required users must be positive"))
	}
	if c.Sync.IdleSweepMS < 0 {
		errs = append(errs, errors.New("idle sweep interval must not be negative"))
	}
	if c.Sync.UserCountEveryMS <= 0 {
		errs = append(errs, errors.New("user count interval must be positive"))
	}
	if c.RateLimit.Points <= 0 || c.RateLimit.DurationSec <= 0 {
		errs = append(errs, errors.New("rate limit points and duration must be positive"))
	}
	if c.ColorCooldownSec < 0 {
		errs = append(errs, errors.New("color cooldown must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) WindowDuration() time.Duration {
	return time.Duration(c.Sync.WindowMS) * time.Millisecond
}

func (c *Config) IdleSweepInterval() time.Duration {
	return time.Duration(c.Sync.IdleSweepMS) * time.Millisecond
}

func (c *Config) UserCountInterval() time.Duration {
	return time.Duration(c.Sync.UserCountEveryMS) * time.Millisecond
}

func (c *Config) RateLimitDuration() time.Duration {
	return time.Duration(c.RateLimit.DurationSec * float64(time.Second))
}

func (c *Config) ColorCooldown() time.Duration {
	return time.Duration(c.ColorCooldownSec) * time.Second
}
