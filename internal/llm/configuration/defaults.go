package configuration

import (
	"time"

	"github.com/ahrav/go-conclave/internal/domain"
)

// Provider defaults.
const (
	DefaultProviderName = "copilot-proxy"
	DefaultBaseURL      = "http://localhost:4141/v1"
	DefaultAPIKeyEnv    = "CONCLAVE_API_KEY"
	DefaultTimeout      = 90 * time.Second
	DefaultMaxTokens    = 2048
	DefaultTemperature  = 0.7

	DefaultModelValidation = ModelValidationWarn
)

// Rate limiting defaults. The proxy tolerates one request every 30 seconds.
const (
	DefaultMinInterval   = 30 * time.Second
	DefaultRateLimitMode = ModeWait
	DefaultKeyPrefix     = "conclave:dispatch"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// Admission defaults.
const (
	DefaultCacheTTL       = 24 * time.Hour
	DefaultRefreshBackoff = 5 * time.Minute
	DefaultFetchTimeout   = 10 * time.Second
	DefaultSourceURL      = "https://docs.github.com/en/copilot/concepts/billing/copilot-requests"
	DefaultStoreKey       = "conclave:premium-models"
)

// Evaluation defaults.
const (
	DefaultEvaluatorModel    = "gpt-4.1"
	DefaultPanelModel        = "gpt-4.1"
	DefaultQuestionsPerRound = 3
	DefaultMaxTieBreakRounds = 2
	DefaultTieEpsilon        = 0.0
	DefaultMaxConcurrency    = 4
)

// Temporal and observability defaults.
const (
	DefaultTemporalHostPort = "localhost:7233"
	DefaultNamespace        = "default"
	DefaultTaskQueue        = "conclave"
	DefaultMetricsAddr      = ":9090"
	DefaultLogLevel         = "info"
)

// DefaultConfig returns a configuration that talks to a local Copilot proxy
// with free models only.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:        DefaultProviderName,
			BaseURL:     DefaultBaseURL,
			APIKeyEnv:   DefaultAPIKeyEnv,
			Timeout:     DefaultTimeout,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,

			ModelValidation: DefaultModelValidation,
		},
		RateLimit: RateLimitConfig{
			MinInterval: DefaultMinInterval,
			Mode:        DefaultRateLimitMode,
			KeyPrefix:   DefaultKeyPrefix,
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   DefaultBaseDelay,
			MaxDelay:    DefaultMaxDelay,
		},
		Admission: AdmissionConfig{
			CacheTTL:       DefaultCacheTTL,
			RefreshBackoff: DefaultRefreshBackoff,
			SourceURL:      DefaultSourceURL,
			FetchTimeout:   DefaultFetchTimeout,
			StoreKey:       DefaultStoreKey,
		},
		Evaluation: EvaluationConfig{
			Weights:           domain.DefaultWeights(),
			EvaluatorModel:    DefaultEvaluatorModel,
			QuestionsPerRound: DefaultQuestionsPerRound,
			MaxTieBreakRounds: DefaultMaxTieBreakRounds,
			TieEpsilon:        DefaultTieEpsilon,
			MaxConcurrency:    DefaultMaxConcurrency,
		},
		Panel: PanelConfig{
			MaxTieBreakRounds: DefaultMaxTieBreakRounds,
			DefaultModel:      DefaultPanelModel,
		},
		Temporal: TemporalConfig{
			HostPort:  DefaultTemporalHostPort,
			Namespace: DefaultNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		Observability: ObservabilityConfig{
			LogLevel:    DefaultLogLevel,
			MetricsAddr: DefaultMetricsAddr,
		},
	}
}
