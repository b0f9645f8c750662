package worker

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/pkg/events"
)

type recordingRegistrar struct {
	workflows  []any
	activities []any
}

func (r *recordingRegistrar) RegisterWorkflow(w any) { r.workflows = append(r.workflows, w) }
func (r *recordingRegistrar) RegisterActivity(a any) { r.activities = append(r.activities, a) }

func TestNewRuntime_Defaults(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	assert.NotNil(t, rt.Client)
	assert.Nil(t, rt.Redis)
	assert.IsType(t, &events.LogSink{}, rt.Sink)

	families, err := rt.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewRuntime_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := configuration.DefaultConfig()
	cfg.Redis.Addr = mr.Addr()
	cfg.RateLimit.Global = true

	rt, err := NewRuntime(cfg)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	assert.NotNil(t, rt.Redis)
	assert.IsType(t, &events.RedisStreamSink{}, rt.Sink)
}

func TestNewRuntime_InvalidConfig(t *testing.T) {
	cfg := configuration.DefaultConfig()
	cfg.Provider.BaseURL = ""

	_, err := NewRuntime(cfg)
	require.ErrorIs(t, err, llmerrors.ErrConfigurationInvalid)
}

func TestRegisterAll(t *testing.T) {
	rt, err := NewRuntime(nil)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	reg := &recordingRegistrar{}
	RegisterAll(reg, rt.NewActivities())

	assert.Len(t, reg.workflows, 1)
	assert.Len(t, reg.activities, 1)
}
