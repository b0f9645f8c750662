package domain

import (
	"fmt"
	"time"
)

// EvaluationMode selects the engine that decides between candidates.
type EvaluationMode string

// Evaluation modes.
const (
	ModeInterview EvaluationMode = "interview"
	ModePanel     EvaluationMode = "panel"
)

// EvaluationRequest is the input of one evaluation session.
type EvaluationRequest struct {
	Mode       EvaluationMode `json:"mode" yaml:"mode" validate:"required,oneof=interview panel"`
	Task       Task           `json:"task" yaml:"task"`
	Candidates []Candidate    `json:"candidates" yaml:"candidates"`
	// Personas overrides the configured panel roster. Panel mode only.
	Personas []Persona `json:"personas,omitempty" yaml:"personas,omitempty"`
	// Weights overrides the configured scoring weights when non-zero.
	Weights ScoringWeights `json:"weights,omitzero" yaml:"weights,omitempty"`
	// AllowPremium opts this session into premium models.
	AllowPremium bool `json:"allow_premium,omitempty" yaml:"allow_premium,omitempty"`
	// Timeout bounds the whole session. Zero selects the workflow default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
}

// Validate checks the request shape. Roster constraints are checked only
// when personas are supplied.
func (r *EvaluationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid evaluation request: %w", err)
	}
	if err := r.Task.Validate(); err != nil {
		return err
	}
	if err := ValidateCandidates(r.Candidates); err != nil {
		return err
	}
	if !r.Weights.IsZero() {
		if err := r.Weights.Validate(); err != nil {
			return err
		}
	}
	if len(r.Personas) > 0 {
		if r.Mode != ModePanel {
			return fmt.Errorf("%w: personas are only used in panel mode", ErrInvalidRoster)
		}
		return ValidateRoster(r.Personas)
	}
	return nil
}

// WeightsOr returns the request weights, or fallback when none were given.
func (r *EvaluationRequest) WeightsOr(fallback ScoringWeights) ScoringWeights {
	if r.Weights.IsZero() {
		return fallback
	}
	return r.Weights
}

// EvaluationOutcome is the result of one session. Exactly one of Interview
// and Panel is set, matching Mode.
type EvaluationOutcome struct {
	Mode      EvaluationMode    `json:"mode"`
	WinnerID  string            `json:"winner_id"`
	Interview *EvaluationResult `json:"interview,omitempty"`
	Panel     *PanelDecision    `json:"panel,omitempty"`
}
