package events

import "time"

// RankedEntry is one row of an interview ranking as published.
type RankedEntry struct {
	CandidateID string  `json:"candidate_id"`
	Composite   float64 `json:"composite"`
	Failed      bool    `json:"failed,omitempty"`
}

// InterviewDecided is the payload of TypeInterviewDecided.
type InterviewDecided struct {
	TaskID         string        `json:"task_id"`
	WinnerID       string        `json:"winner_id"`
	Ranking        []RankedEntry `json:"ranking"`
	TieBreakRounds int           `json:"tiebreak_rounds"`
	Resolution     string        `json:"resolution"`
	CompletedAt    time.Time     `json:"completed_at"`
}

// PanelDecided is the payload of TypePanelDecided.
type PanelDecided struct {
	DecisionID     string           `json:"decision_id"`
	TaskID         string           `json:"task_id"`
	WinnerID       string           `json:"winner_id"`
	Tally          map[string]int   `json:"tally"`
	TieBreakRounds int              `json:"tiebreak_rounds"`
	Resolution     string           `json:"resolution"`
	Excluded       map[int][]string `json:"excluded,omitempty"`
	DecidedAt      time.Time        `json:"decided_at"`
}

// EvaluationUsage is the payload of TypeEvaluationUsage.
type EvaluationUsage struct {
	TaskID           string `json:"task_id"`
	Engine           string `json:"engine"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	TotalTokens      int64  `json:"total_tokens"`
	Calls            int64  `json:"calls"`
}
