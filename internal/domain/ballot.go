package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ballot is one persona's assessment of one candidate in one panel round.
// Round 0 is the opening round; tie-break rounds count from 1.
// The persona votes with the ballot that carries its highest composite.
type Ballot struct {
	ID            string    `json:"id"`
	Round         int       `json:"round"`
	Persona       string    `json:"persona"`
	CandidateID   string    `json:"candidate_id"`
	Score         Score     `json:"score"`
	Composite     float64   `json:"composite"`
	Justification string    `json:"justification"`
	CastAt        time.Time `json:"cast_at"`
}

// NewBallot stamps a ballot with a fresh identifier.
func NewBallot(round int, persona, candidateID string, score Score, composite float64, justification string, at time.Time) Ballot {
	return Ballot{
		ID:            uuid.NewString(),
		Round:         round,
		Persona:       persona,
		CandidateID:   candidateID,
		Score:         score,
		Composite:     composite,
		Justification: justification,
		CastAt:        at,
	}
}
