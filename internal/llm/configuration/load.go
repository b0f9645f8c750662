package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvBaseURL           = "CONCLAVE_PROXY_URL"
	EnvAllowPremium      = "ALLOW_PREMIUM_MODELS"
	EnvRateLimitInterval = "CONCLAVE_RATE_LIMIT_INTERVAL"
	EnvRateLimitMode     = "CONCLAVE_RATE_LIMIT_MODE"
	EnvRedisAddr         = "CONCLAVE_REDIS_ADDR"
	EnvRedisPassword     = "CONCLAVE_REDIS_PASSWORD"
	EnvTemporalHostPort  = "CONCLAVE_TEMPORAL_HOST"
	EnvEvaluatorModel    = "CONCLAVE_EVALUATOR_MODEL"
	EnvModelValidation   = "CONCLAVE_MODEL_VALIDATION"
)

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then environment variables, and validates the result.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, invalid(fmt.Errorf("load .env: %w", err))
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, invalid(fmt.Errorf("read config %s: %w", path, err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, invalid(fmt.Errorf("parse config %s: %w", path, err))
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, invalid(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment values onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		cfg.Provider.BaseURL = v
	}
	if cfg.Provider.APIKeyEnv != "" {
		if v, ok := lookup(cfg.Provider.APIKeyEnv); ok {
			cfg.Provider.APIKey = v
		}
	}
	if v, ok := lookup(EnvAllowPremium); ok && v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAllowPremium, err)
		}
		cfg.Admission.AllowPremium = allow
	}
	if v, ok := lookup(EnvRateLimitInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateLimitInterval, err)
		}
		cfg.RateLimit.MinInterval = d
	}
	if v, ok := lookup(EnvRateLimitMode); ok && v != "" {
		cfg.RateLimit.Mode = RateLimitMode(v)
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		cfg.Redis.Password = v
	}
	if v, ok := lookup(EnvTemporalHostPort); ok && v != "" {
		cfg.Temporal.HostPort = v
	}
	if v, ok := lookup(EnvEvaluatorModel); ok && v != "" {
		cfg.Evaluation.EvaluatorModel = v
	}
	if v, ok := lookup(EnvModelValidation); ok && v != "" {
		cfg.Provider.ModelValidation = ModelValidationMode(v)
	}
	return nil
}
