// Package worker wires a conclave process: the invocation client built from
// configuration, the Temporal client and the metrics registry. It keeps
// construction out of the engine and activity packages.
package worker

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"

	"github.com/ahrav/go-conclave/internal/llm"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
	"github.com/ahrav/go-conclave/internal/llm/ratelimit"
	"github.com/ahrav/go-conclave/internal/metrics"
	"github.com/ahrav/go-conclave/pkg/events"
)

// EventStream is the Redis stream decision events are published to.
const EventStream = "conclave:events"

// Runtime bundles the long-lived dependencies of a process.
type Runtime struct {
	Config   *configuration.Config
	Client   *llm.Client
	Metrics  *metrics.Collector
	Registry *prometheus.Registry
	Redis    redis.UniversalClient
	Sink     events.EventSink
}

// NewRuntime builds the invocation client and its collaborators from cfg.
// When cfg.Redis.Addr is set the premium cache, the global dispatch gate and
// the event sink share one Redis client; otherwise events are logged.
func NewRuntime(cfg *configuration.Config, opts ...llm.Option) (*Runtime, error) {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt := &Runtime{
		Config:   cfg,
		Registry: reg,
		Metrics:  metrics.NewCollector(reg),
		Sink:     events.NewLogSink(slog.Default()),
	}

	clientOpts := []llm.Option{llm.WithMetrics(rt.Metrics)}
	if cfg.Redis.Addr != "" {
		rt.Redis = ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		rt.Sink = events.NewRedisStreamSink(rt.Redis, EventStream)
		clientOpts = append(clientOpts, llm.WithRedis(rt.Redis))
	}

	c, err := llm.NewClient(cfg, append(clientOpts, opts...)...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	rt.Client = c
	return rt, nil
}

// Close releases the Redis connection, if any.
func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}

// DialTemporal connects to the Temporal frontend named in cfg.
func DialTemporal(cfg configuration.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log.NewStructuredLogger(slog.Default().With("component", "temporal")),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	return c, nil
}
