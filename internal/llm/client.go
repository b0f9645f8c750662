// Package llm is the resilient invocation layer every model call goes
// through.
//
// A call passes, outermost first, through structured logging, metrics, the
// premium-model admission gate, the per-endpoint rate limiter, the retry
// executor and finally the provider, where each attempt is bounded by its own
// timeout. Admission denial stops a call before it spends a rate-limit slot
// or reaches the network.
//
// The limiter admits the first dispatch in its configured mode. Every retry
// then waits for a fresh slot after its backoff, so a retried call costs at
// least one minimum interval per extra attempt.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ahrav/go-conclave/internal/clock"
	"github.com/ahrav/go-conclave/internal/llm/admission"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/llm/providers"
	"github.com/ahrav/go-conclave/internal/llm/ratelimit"
	"github.com/ahrav/go-conclave/internal/llm/retry"
	"github.com/ahrav/go-conclave/internal/llm/transport"
	"github.com/ahrav/go-conclave/internal/metrics"
)

// HTTP transport defaults for the provider client.
const (
	DefaultMaxIdleConns    = 16
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultTLSTimeout      = 10 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Client is the shared invocation layer for one provider endpoint. It is safe
// for concurrent use; all callers share the same rate limiter.
type Client struct {
	config  *configuration.Config
	handler transport.Handler
	limiter *ratelimit.IntervalLimiter
	gate    *admission.Gate
	retrier *retry.Executor
	models  ModelLister
	logger  *slog.Logger
}

// Option customizes NewClient.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient    *http.Client
	provider      transport.Handler
	clock         clock.Clock
	redis         redis.UniversalClient
	premiumSource admission.Source
	premiumStore  admission.Store
	collector     *metrics.Collector
	models        ModelLister
	logger        *slog.Logger
}

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// WithProvider replaces the HTTP provider handler.
func WithProvider(h transport.Handler) Option {
	return func(o *clientOptions) { o.provider = h }
}

// WithClock sets the clock used by the rate limiter, retries and admission
// cache.
func WithClock(c clock.Clock) Option {
	return func(o *clientOptions) { o.clock = c }
}

// WithRedis enables the cross-process dispatch gate (when configured) and
// persists the premium cache in Redis.
func WithRedis(c redis.UniversalClient) Option {
	return func(o *clientOptions) { o.redis = c }
}

// WithPremiumSource sets where the premium table is fetched from.
func WithPremiumSource(s admission.Source) Option {
	return func(o *clientOptions) { o.premiumSource = s }
}

// WithPremiumStore sets where the premium table is persisted.
func WithPremiumStore(s admission.Store) Option {
	return func(o *clientOptions) { o.premiumStore = s }
}

// WithMetrics records invocations on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *clientOptions) { o.collector = c }
}

// WithModelLister sets where the endpoint's model list comes from. Without
// it the list is fetched over HTTP unless WithProvider replaced the provider.
func WithModelLister(l ModelLister) Option {
	return func(o *clientOptions) { o.models = l }
}

// WithLogger sets the logger for the logging middleware.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient validates cfg and builds the invocation pipeline. A nil cfg
// selects DefaultConfig.
func NewClient(cfg *configuration.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	provider := o.provider
	if provider == nil {
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{
				Transport: &http.Transport{
					Proxy:                 http.ProxyFromEnvironment,
					MaxIdleConns:          DefaultMaxIdleConns,
					IdleConnTimeout:       DefaultIdleConnTimeout,
					TLSHandshakeTimeout:   DefaultTLSTimeout,
					ExpectContinueTimeout: time.Second,
				},
			}
		}
		adapter := providers.NewOpenAIAdapter(cfg.Provider)
		provider = transport.NewHTTPHandler(httpClient, adapter)
		if o.models == nil {
			o.models = ModelListerFunc(func(ctx context.Context) ([]string, error) {
				return adapter.ListModels(ctx, httpClient)
			})
		}
	}

	limiter := ratelimit.NewIntervalLimiter(cfg.Provider.BaseURL, cfg.RateLimit.MinInterval, cfg.RateLimit.Mode, o.clock)
	var dispatchGate *ratelimit.DispatchGate
	if cfg.RateLimit.Global && o.redis != nil {
		dispatchGate = ratelimit.NewDispatchGate(o.redis, cfg.RateLimit.KeyPrefix, cfg.Provider.BaseURL, cfg.RateLimit.MinInterval, o.clock)
	}

	policy, err := retry.NewPolicy(cfg.Retry)
	if err != nil {
		return nil, err
	}
	retrier := retry.NewExecutor(policy, o.clock, retry.WithPacer(ratelimit.Pacer(limiter, dispatchGate)))

	gate := admission.NewGate(cfg.Admission, premiumSource(cfg, o), premiumStore(cfg, o), o.clock)

	handler := transport.Chain(provider,
		loggingMiddleware(o.logger),
		metricsMiddleware(o.collector),
		admission.Middleware(gate),
		ratelimit.Middleware(limiter, dispatchGate),
		retrier.Middleware(),
		transport.AttemptTimeout(),
		attemptRecorder(),
	)

	return &Client{
		config:  cfg,
		handler: handler,
		limiter: limiter,
		gate:    gate,
		retrier: retrier,
		models:  o.models,
		logger:  o.logger.With("component", "llm"),
	}, nil
}

func premiumSource(cfg *configuration.Config, o clientOptions) admission.Source {
	switch {
	case o.premiumSource != nil:
		return o.premiumSource
	case cfg.Admission.SourceURL != "":
		return admission.NewDocsSource(cfg.Admission.SourceURL, o.httpClient, cfg.Admission.FetchTimeout)
	default:
		return admission.FallbackSource{}
	}
}

func premiumStore(cfg *configuration.Config, o clientOptions) admission.Store {
	switch {
	case o.premiumStore != nil:
		return o.premiumStore
	case o.redis != nil:
		return admission.NewRedisStore(o.redis, cfg.Admission.StoreKey)
	default:
		return admission.NewMemoryStore()
	}
}

// Invoke sends one prompt through the pipeline.
//
// The returned Outcome is non-nil whenever the request was well formed, even
// on failure, so callers can account for attempts already billed. Errors
// unwrap to *llmerrors.InvocationError.
func (c *Client) Invoke(ctx context.Context, in InvocationRequest) (*Outcome, error) {
	if err := validate.Struct(in); err != nil {
		return nil, llmerrors.Wrap(llmerrors.KindConfigurationInvalid, in.Model, 0,
			fmt.Errorf("invalid invocation request: %w", err))
	}

	req := c.buildRequest(in)
	log := &attemptLog{}
	ctx = withAttemptLog(ctx, log)

	start := time.Now()
	resp, err := c.handler.Handle(ctx, req)
	outcome := &Outcome{
		Model:     req.Model,
		Latency:   time.Since(start),
		RequestID: req.Metadata[metadataRequestID],
	}

	if err != nil {
		outcome.AttemptUsage = log.snapshot()
		for _, u := range outcome.AttemptUsage {
			outcome.Usage.Add(u)
		}
		invErr := asInvocationError(err, req.Model)
		outcome.Attempts = invErr.Attempts
		return outcome, invErr
	}

	outcome.Text = resp.Text
	if resp.Model != "" {
		outcome.Model = resp.Model
	}
	outcome.Usage = resp.Usage
	outcome.AttemptUsage = resp.AttemptUsage
	outcome.Attempts = resp.Attempts
	outcome.AdmittedAt = resp.AdmittedAt
	return outcome, nil
}

func (c *Client) buildRequest(in InvocationRequest) *transport.Request {
	req := &transport.Request{
		Model:        in.Model,
		Prompt:       in.Prompt,
		System:       in.System,
		MaxTokens:    in.MaxTokens,
		Temperature:  c.config.Provider.Temperature,
		Timeout:      in.Timeout,
		AllowPremium: in.AllowPremium,
		Metadata:     make(map[string]string, len(in.Metadata)+1),
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.config.Provider.MaxTokens
	}
	if in.Temperature != nil {
		req.Temperature = *in.Temperature
	}
	if req.Timeout == 0 {
		req.Timeout = c.config.Provider.Timeout
	}
	for k, v := range in.Metadata {
		req.Metadata[k] = v
	}
	req.Metadata[metadataRequestID] = uuid.NewString()
	return req
}

// asInvocationError normalizes any pipeline error into an InvocationError.
func asInvocationError(err error, model string) *llmerrors.InvocationError {
	var invErr *llmerrors.InvocationError
	if errors.As(err, &invErr) {
		if invErr.Model == "" {
			invErr.Model = model
		}
		return invErr
	}
	return llmerrors.Wrap(llmerrors.KindOf(err), model, 0, err)
}

// Gate exposes the admission gate, for premium table inspection.
func (c *Client) Gate() *admission.Gate { return c.gate }

// LimiterState returns a snapshot of the rate limiter.
func (c *Client) LimiterState() ratelimit.State { return c.limiter.State() }

// RetryStats returns the retry executor's counters.
func (c *Client) RetryStats() retry.Stats { return c.retrier.Stats() }

// Config returns the configuration the client was built with.
func (c *Client) Config() *configuration.Config { return c.config }
