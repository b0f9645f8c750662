package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/interview"
	"github.com/ahrav/go-conclave/internal/llm"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
	"github.com/ahrav/go-conclave/internal/metrics"
	"github.com/ahrav/go-conclave/internal/panel"
	"github.com/ahrav/go-conclave/pkg/activity"
	"github.com/ahrav/go-conclave/pkg/events"
)

// Event sources.
const (
	sourceInterview = "interview-activity"
	sourcePanel     = "panel-activity"
)

// Activities runs the evaluation engines as Temporal activities. Engines are
// built per call because premium opt-in is per request.
type Activities struct {
	activity.BaseActivities
	invoker llm.Invoker
	config  *configuration.Config
	metrics *metrics.Collector
}

// NewActivities creates evaluation activities over invoker.
func NewActivities(
	base activity.BaseActivities,
	invoker llm.Invoker,
	cfg *configuration.Config,
	collector *metrics.Collector,
) *Activities {
	return &Activities{
		BaseActivities: base,
		invoker:        invoker,
		config:         cfg,
		metrics:        collector,
	}
}

// RunInterview ranks the request's candidates with the interviewer.
func (a *Activities) RunInterview(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, activityError("RunInterview", llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, err))
	}
	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "RunInterview started",
		"workflow_id", wfCtx.WorkflowID,
		"task_id", req.Task.ID,
		"candidates", len(req.Candidates))
	a.RecordHeartbeat(ctx, "interview started")

	cfg := interview.ConfigFrom(a.config.Evaluation)
	cfg.AllowPremium = req.AllowPremium
	iv, err := interview.New(a.invoker, cfg, interview.WithMetrics(a.metrics))
	if err != nil {
		return nil, activityError("RunInterview", err)
	}

	start := time.Now()
	res, err := iv.Evaluate(ctx, req.Task, req.Candidates, req.WeightsOr(a.config.Evaluation.Weights))
	if err != nil {
		return nil, activityError("RunInterview", err)
	}

	a.emitInterview(ctx, wfCtx, res)
	activity.SafeLog(ctx, "RunInterview completed",
		"winner", res.WinnerID,
		"tiebreak_rounds", res.TieBreak.Rounds,
		"latency_ms", time.Since(start).Milliseconds())
	return res, nil
}

// RunPanel decides between the request's candidates with the panel. The
// request roster wins over the configured one.
func (a *Activities) RunPanel(ctx context.Context, req domain.EvaluationRequest) (*domain.PanelDecision, error) {
	if err := req.Validate(); err != nil {
		return nil, activityError("RunPanel", llmerrors.Wrap(llmerrors.KindConfigurationInvalid, "", 0, err))
	}
	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "RunPanel started",
		"workflow_id", wfCtx.WorkflowID,
		"task_id", req.Task.ID,
		"candidates", len(req.Candidates))
	a.RecordHeartbeat(ctx, "panel started")

	cfg := panel.ConfigFrom(a.config)
	cfg.AllowPremium = req.AllowPremium
	p, err := panel.New(a.invoker, cfg, panel.WithMetrics(a.metrics))
	if err != nil {
		return nil, activityError("RunPanel", err)
	}

	personas := req.Personas
	if len(personas) == 0 {
		personas = panel.RosterFrom(a.config.Panel)
	}

	start := time.Now()
	d, err := p.Decide(ctx, req.Task, personas, req.Candidates, req.WeightsOr(a.config.Evaluation.Weights))
	if err != nil {
		return nil, activityError("RunPanel", err)
	}

	a.emitPanel(ctx, wfCtx, d)
	activity.SafeLog(ctx, "RunPanel completed",
		"winner", d.WinnerID,
		"resolution", d.Resolution,
		"latency_ms", time.Since(start).Milliseconds())
	return d, nil
}

func (a *Activities) emitInterview(ctx context.Context, wfCtx activity.WorkflowContext, res *domain.EvaluationResult) {
	ranking := make([]events.RankedEntry, len(res.Ranking))
	for i, row := range res.Ranking {
		ranking[i] = events.RankedEntry{CandidateID: row.Candidate.ID, Composite: row.Composite, Failed: row.Failed}
	}
	a.emit(ctx, wfCtx, events.TypeInterviewDecided, sourceInterview, res.TaskID, events.InterviewDecided{
		TaskID:         res.TaskID,
		WinnerID:       res.WinnerID,
		Ranking:        ranking,
		TieBreakRounds: res.TieBreak.Rounds,
		Resolution:     string(res.TieBreak.Resolution),
		CompletedAt:    res.CompletedAt,
	})
	a.emitUsage(ctx, wfCtx, sourceInterview, "interview", res.TaskID, res.Usage)
}

func (a *Activities) emitPanel(ctx context.Context, wfCtx activity.WorkflowContext, d *domain.PanelDecision) {
	a.emit(ctx, wfCtx, events.TypePanelDecided, sourcePanel, d.TaskID, events.PanelDecided{
		DecisionID:     d.ID,
		TaskID:         d.TaskID,
		WinnerID:       d.WinnerID,
		Tally:          d.Tally,
		TieBreakRounds: d.TieBreakRounds,
		Resolution:     string(d.Resolution),
		Excluded:       d.Excluded,
		DecidedAt:      d.DecidedAt,
	})
	a.emitUsage(ctx, wfCtx, sourcePanel, "panel", d.TaskID, d.Usage)
}

func (a *Activities) emitUsage(ctx context.Context, wfCtx activity.WorkflowContext, source, engine, taskID string, u domain.TokenUsage) {
	a.emit(ctx, wfCtx, events.TypeEvaluationUsage, source, taskID, events.EvaluationUsage{
		TaskID:           taskID,
		Engine:           engine,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		Calls:            u.Calls,
	})
}

func (a *Activities) emit(ctx context.Context, wfCtx activity.WorkflowContext, eventType, source, taskID string, payload any) {
	key := events.IdempotencyKey(wfCtx.WorkflowID, wfCtx.RunID, taskID, eventType)
	env, err := events.NewEnvelope(eventType, source, key, wfCtx.WorkflowID, wfCtx.RunID, time.Now(), payload)
	if err != nil {
		activity.SafeLogError(ctx, "build event failed", "event_type", eventType, "error", err)
		return
	}
	a.EmitEventSafe(ctx, env)
}

// activityError maps engine errors onto Temporal application errors. Kinds
// that cannot succeed on retry are non-retryable; the error type is the kind.
func activityError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := llmerrors.KindOf(err)
	msg := fmt.Sprintf("%s failed", op)
	switch kind {
	case llmerrors.KindEvaluationFailed, llmerrors.KindConfigurationInvalid, llmerrors.KindAdmissionDenied:
		return temporal.NewNonRetryableApplicationError(msg, string(kind), err)
	default:
		return temporal.NewApplicationError(msg, string(kind), err)
	}
}
