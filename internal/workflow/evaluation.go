package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/go-conclave/internal/domain"
	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// DefaultSessionTimeout bounds an activity when the request sets no timeout.
// The provider proxy admits one call every 30s, so sessions run long.
const DefaultSessionTimeout = 2 * time.Hour

// ErrorTypeValidation is the application error type for rejected requests.
const ErrorTypeValidation = "Validation"

// EvaluationWorkflow runs one evaluation session and returns its outcome.
func EvaluationWorkflow(ctx workflow.Context, req domain.EvaluationRequest) (*domain.EvaluationOutcome, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "evaluation.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid evaluation request", ErrorTypeValidation, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Minute,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Minute,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				string(llmerrors.KindEvaluationFailed),
				string(llmerrors.KindConfigurationInvalid),
				string(llmerrors.KindAdmissionDenied),
			},
		},
	})

	logger := workflow.GetLogger(ctx)
	logger.Info("evaluation started", "mode", req.Mode, "task_id", req.Task.ID, "candidates", len(req.Candidates))

	var acts *Activities
	out := &domain.EvaluationOutcome{Mode: req.Mode}
	switch req.Mode {
	case domain.ModePanel:
		var d domain.PanelDecision
		if err := workflow.ExecuteActivity(ctx, acts.RunPanel, req).Get(ctx, &d); err != nil {
			return nil, err
		}
		out.Panel = &d
		out.WinnerID = d.WinnerID
	default:
		var res domain.EvaluationResult
		if err := workflow.ExecuteActivity(ctx, acts.RunInterview, req).Get(ctx, &res); err != nil {
			return nil, err
		}
		out.Interview = &res
		out.WinnerID = res.WinnerID
	}

	logger.Info("evaluation decided", "mode", req.Mode, "winner", out.WinnerID)
	return out, nil
}
