package domain

import (
	"fmt"
	"slices"
)

// Task is the unit of work a set of candidates is evaluated against.
type Task struct {
	ID          string `json:"id" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// Validate checks required task fields.
func (t Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTask, err)
	}
	return nil
}

// Candidate is an agent or answer under evaluation for a single session.
// Model names the LLM that answers on the candidate's behalf; Payload carries
// the candidate's description or system prompt.
type Candidate struct {
	ID      string   `json:"id" validate:"required"`
	Model   string   `json:"model" validate:"required"`
	Payload string   `json:"payload"`
	Tags    []string `json:"tags,omitempty"`
}

// Validate checks required candidate fields.
func (c Candidate) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	return nil
}

// HasTag reports whether the candidate advertises capability tag.
func (c Candidate) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// ValidateCandidates checks each candidate and rejects duplicate identifiers.
func ValidateCandidates(candidates []Candidate) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no candidates", ErrInvalidCandidate)
	}
	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateCandidate, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
