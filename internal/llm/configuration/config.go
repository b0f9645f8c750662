// Package configuration holds every tunable of the invocation layer and the
// evaluation engine. Values are read once at construction; nothing here is
// mutated at runtime.
package configuration

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-conclave/internal/domain"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	errMaxDelayBelowBase  = errors.New("retry max_delay must be >= base_delay")
	errUnknownLimiterMode = errors.New("rate_limit mode must be wait or reject")
)

// RateLimitMode selects what the limiter does with a dispatch that arrives
// before the minimum interval has elapsed.
type RateLimitMode string

// Limiter modes.
const (
	ModeWait   RateLimitMode = "wait"
	ModeReject RateLimitMode = "reject"
)

// ModelValidationMode selects how configured models are checked against the
// models the endpoint reports at startup.
type ModelValidationMode string

// Model validation modes. Strict fails startup on an unknown model or an
// unreachable model list; warn logs and continues.
const (
	ModelValidationOff    ModelValidationMode = "off"
	ModelValidationWarn   ModelValidationMode = "warn"
	ModelValidationStrict ModelValidationMode = "strict"
)

// Config is the complete configuration of a conclave process.
type Config struct {
	Provider      ProviderConfig      `yaml:"provider" json:"provider"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Retry         RetryConfig         `yaml:"retry" json:"retry"`
	Admission     AdmissionConfig     `yaml:"admission" json:"admission"`
	Redis         RedisConfig         `yaml:"redis" json:"redis"`
	Evaluation    EvaluationConfig    `yaml:"evaluation" json:"evaluation"`
	Panel         PanelConfig         `yaml:"panel" json:"panel"`
	Temporal      TemporalConfig      `yaml:"temporal" json:"temporal"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// ProviderConfig describes the OpenAI-compatible endpoint all calls go through.
type ProviderConfig struct {
	Name        string        `yaml:"name" json:"name" validate:"required"`
	BaseURL     string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	APIKey      string        `yaml:"-" json:"-"` // Sensitive, from env only
	APIKeyEnv   string        `yaml:"api_key_env" json:"api_key_env"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout" validate:"gt=0"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens" validate:"gte=0"`
	Temperature float64       `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`

	ModelValidation ModelValidationMode `yaml:"model_validation" json:"model_validation" validate:"omitempty,oneof=off warn strict"`
}

// RateLimitConfig controls the minimum interval between dispatches to the
// provider endpoint.
type RateLimitConfig struct {
	MinInterval time.Duration `yaml:"min_interval" json:"min_interval" validate:"gte=0"`
	Mode        RateLimitMode `yaml:"mode" json:"mode"`
	// Global shares the interval across processes through Redis.
	Global    bool   `yaml:"global" json:"global"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// RetryConfig bounds the retry executor.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay" validate:"gt=0"`
	UseJitter   bool          `yaml:"use_jitter" json:"use_jitter"`
}

// AdmissionConfig controls the premium-model gate.
type AdmissionConfig struct {
	// AllowPremium is the process-wide opt-in for premium models.
	AllowPremium   bool          `yaml:"allow_premium" json:"allow_premium"`
	CacheTTL       time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"gt=0"`
	RefreshBackoff time.Duration `yaml:"refresh_backoff" json:"refresh_backoff" validate:"gte=0"`
	SourceURL      string        `yaml:"source_url" json:"source_url" validate:"omitempty,url"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" validate:"gt=0"`
	StoreKey       string        `yaml:"store_key" json:"store_key"`
}

// RedisConfig is shared by the premium cache store and the global dispatch
// gate. An empty Addr disables both.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"-" json:"-"` // Sensitive
	DB       int    `yaml:"db" json:"db" validate:"gte=0"`
}

// EvaluationConfig tunes the interviewer.
type EvaluationConfig struct {
	Weights           domain.ScoringWeights `yaml:"weights" json:"weights"`
	EvaluatorModel    string                `yaml:"evaluator_model" json:"evaluator_model" validate:"required"`
	QuestionsPerRound int                   `yaml:"questions_per_round" json:"questions_per_round" validate:"gte=1"`
	MaxTieBreakRounds int                   `yaml:"max_tiebreak_rounds" json:"max_tiebreak_rounds" validate:"gte=0"`
	TieEpsilon        float64               `yaml:"tie_epsilon" json:"tie_epsilon" validate:"gte=0"`
	MaxConcurrency    int                   `yaml:"max_concurrency" json:"max_concurrency" validate:"gte=1"`
}

// PanelConfig tunes the panel. An empty roster selects the default five roles.
type PanelConfig struct {
	Personas          []domain.Persona `yaml:"personas" json:"personas"`
	MaxTieBreakRounds int              `yaml:"max_tiebreak_rounds" json:"max_tiebreak_rounds" validate:"gte=0"`
	DefaultModel      string           `yaml:"default_model" json:"default_model" validate:"required"`
}

// TemporalConfig locates the Temporal frontend used by the worker command.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" json:"host_port"`
	Namespace string `yaml:"namespace" json:"namespace"`
	TaskQueue string `yaml:"task_queue" json:"task_queue"`
}

// ObservabilityConfig controls logging and the metrics listener.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=debug info warn error"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// Validate checks struct tags and the cross-field rules tags cannot express.
// Every failure unwraps to llmerrors.ErrConfigurationInvalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return invalid(err)
	}
	switch c.RateLimit.Mode {
	case ModeWait, ModeReject:
	default:
		return invalid(fmt.Errorf("%w, got %q", errUnknownLimiterMode, c.RateLimit.Mode))
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return invalid(fmt.Errorf("%w: base %v, max %v", errMaxDelayBelowBase, c.Retry.BaseDelay, c.Retry.MaxDelay))
	}
	if err := c.Evaluation.Weights.Validate(); err != nil {
		return invalid(err)
	}
	if len(c.Panel.Personas) > 0 {
		if err := domain.ValidateRoster(c.Panel.Personas); err != nil {
			return invalid(err)
		}
	}
	return nil
}

func invalid(err error) error {
	return llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, err)
}
