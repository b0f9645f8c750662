package domain

import "time"

// Phase is a state of the panel decision state machine.
type Phase string

// Panel phases in the order they are entered. TieBreak may repeat.
const (
	PhaseSetup        Phase = "SETUP"
	PhaseRoundRobinQA Phase = "ROUND_ROBIN_QA"
	PhaseScoring      Phase = "SCORING"
	PhaseVoting       Phase = "VOTING"
	PhaseTieBreak     Phase = "TIEBREAK"
	PhaseDecided      Phase = "DECIDED"
)

// Vote is the candidate a persona chose in one round.
type Vote struct {
	Round       int    `json:"round"`
	Persona     string `json:"persona"`
	CandidateID string `json:"candidate_id"`
}

// PanelDecision is the finalized output of a panel run.
type PanelDecision struct {
	ID       string `json:"id"`
	TaskID   string `json:"task_id"`
	WinnerID string `json:"winner_id"`
	// Ballots are ordered by round, then persona order, then candidate order.
	Ballots []Ballot `json:"ballots"`
	Votes   []Vote   `json:"votes"`
	// Tally counts the votes of the round that settled the decision.
	Tally          map[string]int     `json:"tally"`
	TieBreakRounds int                `json:"tiebreak_rounds"`
	Resolution     TieBreakResolution `json:"resolution"`
	// Excluded lists personas that failed, keyed by round.
	Excluded  map[int][]string `json:"excluded,omitempty"`
	Phases    []Phase          `json:"phases"`
	Usage     TokenUsage       `json:"usage"`
	DecidedAt time.Time        `json:"decided_at"`
}

// BallotsForRound returns the ballots cast in round.
func (d *PanelDecision) BallotsForRound(round int) []Ballot {
	var out []Ballot
	for _, b := range d.Ballots {
		if b.Round == round {
			out = append(out, b)
		}
	}
	return out
}
