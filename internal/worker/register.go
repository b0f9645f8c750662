package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-conclave/internal/workflow"
	"github.com/ahrav/go-conclave/pkg/activity"
)

// Registrar is the subset of a Temporal worker RegisterAll needs.
type Registrar interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

var _ Registrar = sdkworker.Worker(nil)

// NewActivities builds the evaluation activities over the runtime.
func (r *Runtime) NewActivities() *workflow.Activities {
	return workflow.NewActivities(activity.NewBaseActivities(r.Sink), r.Client, r.Config, r.Metrics)
}

// RegisterAll registers the evaluation workflow and its activities. Call it
// once, before the worker starts.
func RegisterAll(w Registrar, acts *workflow.Activities) {
	w.RegisterWorkflow(workflow.EvaluationWorkflow)
	w.RegisterActivity(acts)
}
