// Package workflow runs evaluation sessions on Temporal.
//
// EvaluationWorkflow validates the request and dispatches one activity,
// RunInterview or RunPanel, depending on the requested mode. The activities
// wrap the interview and panel engines, publish decision events and convert
// terminal engine errors into non-retryable application errors so Temporal
// does not repeat a session that cannot succeed.
//
// Workflow code is deterministic: every LLM call, clock read and event
// emission happens inside an activity.
package workflow
