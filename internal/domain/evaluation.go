package domain

import "time"

// SentinelComposite marks a candidate whose evaluation failed. It sorts below
// every real composite, which lie in [0,100].
const SentinelComposite = -1.0

// RankedCandidate is one row of an interviewer ranking.
type RankedCandidate struct {
	Candidate Candidate `json:"candidate"`
	Score     Score     `json:"score"`
	Composite float64   `json:"composite"`
	// Justification is the evaluator's explanation of Score.
	Justification string `json:"justification,omitempty"`
	// TieBreakComposites holds the composite from each tie-break round the
	// candidate took part in, in round order.
	TieBreakComposites []float64 `json:"tiebreak_composites,omitempty"`
	Failed             bool      `json:"failed"`
	Error              string    `json:"error,omitempty"`
}

// TieBreakResolution records how a tie at the top was settled.
type TieBreakResolution string

// Tie-break resolutions.
const (
	ResolvedNone       TieBreakResolution = "none"
	ResolvedByRound    TieBreakResolution = "tiebreak_round"
	ResolvedBySum      TieBreakResolution = "summed_composite"
	ResolvedByPriority TieBreakResolution = "caller_priority"
)

// TieBreakRecord describes the tie-break rounds that fired, if any.
type TieBreakRecord struct {
	Rounds     int                `json:"rounds"`
	Tied       []string           `json:"tied"`
	Resolution TieBreakResolution `json:"resolution"`
}

// EvaluationResult is the interviewer's output: candidates ranked by
// composite descending, with the winner first.
type EvaluationResult struct {
	TaskID      string            `json:"task_id"`
	Ranking     []RankedCandidate `json:"ranking"`
	WinnerID    string            `json:"winner_id"`
	TieBreak    TieBreakRecord    `json:"tiebreak"`
	Usage       TokenUsage        `json:"usage"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Winner returns the top-ranked candidate.
func (r *EvaluationResult) Winner() RankedCandidate {
	return r.Ranking[0]
}

// TokenUsage accumulates provider token counts across invocations.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	Calls            int64 `json:"calls"`
}

// Add folds other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Calls += other.Calls
}
