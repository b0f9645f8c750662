package domain

import "fmt"

// Role identifies one of the fixed panel evaluator roles.
type Role string

// Panel roles, in default rotation order.
const (
	RoleTechnical   Role = "technical"
	RoleCreative    Role = "creative"
	RoleEfficiency  Role = "efficiency"
	RoleUserCentric Role = "user_centric"
	RoleRisk        Role = "risk"
)

// MinPanelSize is the smallest roster a panel accepts.
const MinPanelSize = 3

// Persona is one evaluator on a panel. Weights, when set, replace the
// caller-supplied weights for this persona's composites.
type Persona struct {
	Name    string          `json:"name" yaml:"name" validate:"required"`
	Role    Role            `json:"role" yaml:"role" validate:"required"`
	Model   string          `json:"model" yaml:"model" validate:"required"`
	Focus   string          `json:"focus" yaml:"focus"`
	Weights *ScoringWeights `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// Validate checks required persona fields and any weight override.
func (p Persona) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPersona, err)
	}
	if p.Weights != nil {
		if err := p.Weights.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidPersona, p.Name, err)
		}
	}
	return nil
}

// EffectiveWeights returns the persona's own weights or fallback.
func (p Persona) EffectiveWeights(fallback ScoringWeights) ScoringWeights {
	if p.Weights != nil {
		return *p.Weights
	}
	return fallback
}

// ValidateRoster checks every persona and enforces an odd roster of at least
// MinPanelSize members with unique names.
func ValidateRoster(personas []Persona) error {
	if len(personas) < MinPanelSize {
		return fmt.Errorf("%w: need at least %d personas, got %d", ErrInvalidRoster, MinPanelSize, len(personas))
	}
	if len(personas)%2 == 0 {
		return fmt.Errorf("%w: persona count must be odd, got %d", ErrInvalidRoster, len(personas))
	}
	seen := make(map[string]struct{}, len(personas))
	for _, p := range personas {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate persona %q", ErrInvalidRoster, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}
