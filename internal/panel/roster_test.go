package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/llm/configuration"
)

func TestDefaultRoster(t *testing.T) {
	roster := DefaultRoster("gpt-4.1")
	require.NoError(t, domain.ValidateRoster(roster))
	require.Len(t, roster, 5)

	wantRoles := []domain.Role{
		domain.RoleTechnical, domain.RoleCreative, domain.RoleEfficiency, domain.RoleUserCentric, domain.RoleRisk,
	}
	for i, p := range roster {
		assert.Equal(t, wantRoles[i], p.Role)
		assert.Equal(t, "gpt-4.1", p.Model)
		require.NotNil(t, p.Weights)
		assert.InDelta(t, 1.0, p.Weights.Total(), 1e-9, p.Name)
	}
	assert.InDelta(t, 0.4, roster[0].Weights.Accuracy, 1e-9)
	assert.InDelta(t, 0.4, roster[4].Weights.Safety, 1e-9)

	roster[0].Weights.Accuracy = 0
	assert.InDelta(t, 0.4, DefaultRoster("m")[0].Weights.Accuracy, 1e-9, "rosters do not share weight sets")
}

func TestRosterFrom(t *testing.T) {
	cfg := configuration.PanelConfig{DefaultModel: "m"}
	assert.Equal(t, DefaultRoster("m"), RosterFrom(cfg))

	custom := []domain.Persona{{Name: "x", Role: domain.RoleRisk, Model: "m"}}
	cfg.Personas = custom
	assert.Equal(t, custom, RosterFrom(cfg))
}

func TestRosterValidation(t *testing.T) {
	roster := DefaultRoster("m")

	tests := []struct {
		name     string
		personas []domain.Persona
		wantErr  bool
	}{
		{name: "five", personas: roster},
		{name: "three", personas: roster[:3]},
		{name: "too small", personas: roster[:1], wantErr: true},
		{name: "even", personas: roster[:4], wantErr: true},
		{name: "duplicate", personas: []domain.Persona{roster[0], roster[1], roster[0]}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateRoster(tt.personas)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidRoster)
				return
			}
			assert.NoError(t, err)
		})
	}
}
