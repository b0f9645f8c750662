package panel

import (
	"fmt"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
)

type roleSpec struct {
	role    domain.Role
	focus   string
	weights domain.ScoringWeights
}

// defaultRoles lists the five panel roles with their metric emphasis.
var defaultRoles = []roleSpec{
	{
		role:    domain.RoleTechnical,
		focus:   "correctness, depth, precision, error handling and technical accuracy",
		weights: domain.ScoringWeights{Accuracy: 0.4, Relevance: 0.2, Completeness: 0.2, Explainability: 0.1, Efficiency: 0.05, Safety: 0.05},
	},
	{
		role:    domain.RoleCreative,
		focus:   "originality, engagement, style and creative problem-solving",
		weights: domain.ScoringWeights{Accuracy: 0.1, Relevance: 0.3, Completeness: 0.2, Explainability: 0.2, Efficiency: 0.1, Safety: 0.1},
	},
	{
		role:    domain.RoleEfficiency,
		focus:   "conciseness, speed, resource use and cost-effectiveness",
		weights: domain.ScoringWeights{Accuracy: 0.2, Relevance: 0.2, Completeness: 0.1, Explainability: 0.1, Efficiency: 0.3, Safety: 0.1},
	},
	{
		role:    domain.RoleUserCentric,
		focus:   "clarity, usefulness, accessibility and user experience",
		weights: domain.ScoringWeights{Accuracy: 0.15, Relevance: 0.25, Completeness: 0.15, Explainability: 0.3, Efficiency: 0.05, Safety: 0.1},
	},
	{
		role:    domain.RoleRisk,
		focus:   "safety, bias, failure modes, ethical concerns and security",
		weights: domain.ScoringWeights{Accuracy: 0.15, Relevance: 0.15, Completeness: 0.15, Explainability: 0.1, Efficiency: 0.05, Safety: 0.4},
	},
}

// DefaultRoster returns the five default personas, all scoring with model.
func DefaultRoster(model string) []domain.Persona {
	out := make([]domain.Persona, len(defaultRoles))
	for i, r := range defaultRoles {
		w := r.weights
		out[i] = domain.Persona{
			Name:    string(r.role),
			Role:    r.role,
			Model:   model,
			Focus:   r.focus,
			Weights: &w,
		}
	}
	return out
}

// RosterFrom returns the configured personas, or the default roster on the
// configured model when none are set.
func RosterFrom(cfg configuration.PanelConfig) []domain.Persona {
	if len(cfg.Personas) > 0 {
		return cfg.Personas
	}
	return DefaultRoster(cfg.DefaultModel)
}

// personaQuestion is the question a persona puts to every candidate in the
// opening round.
func personaQuestion(task domain.Task, p domain.Persona) string {
	return fmt.Sprintf(
		"How would you approach this task from a %s perspective, paying particular attention to %s? Task: %s",
		p.Role, p.Focus, task.Description,
	)
}
