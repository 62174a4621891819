package app

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds all the necessary configuration for an App instance to run.
// Defaults come from the environment; CLI flags override them.
type Config struct {
	SweepPath string `validate:"required"`

	LogFormat   string `env:"SWEEPGRID_LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	LogLevel    string `env:"SWEEPGRID_LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Workers     int    `env:"SWEEPGRID_WORKERS" envDefault:"1" validate:"gte=1,lte=256"`
	Output      string `env:"SWEEPGRID_OUTPUT"`
	Layout      string `env:"SWEEPGRID_LAYOUT" validate:"omitempty,oneof=rows columns"`
	MetricsFile string `env:"SWEEPGRID_METRICS_FILE"`
}

// ConfigFromEnv returns a Config populated with environment values and defaults.
// SweepPath is left empty.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.SweepPath == "" {
		return nil, errors.New("SweepPath is a required configuration field and cannot be empty")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
