package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ahrav/go-conclave/internal/domain"
)

// ErrUnparseableEvaluation indicates an evaluator reply that could not be
// turned into a valid Score, even after repair.
var ErrUnparseableEvaluation = errors.New("unparseable evaluator reply")

var (
	jsonObjectRe  = regexp.MustCompile(`(?s)\{.*\}`)
	unquotedKeyRe = regexp.MustCompile(`(\{|,)\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
)

// evaluationSchema is the JSON object evaluators are asked to return.
// Ratings are pointers so that a missing metric is distinguishable from 0.
type evaluationSchema struct {
	Accuracy       *int   `json:"accuracy"`
	Relevance      *int   `json:"relevance"`
	Completeness   *int   `json:"completeness"`
	Explainability *int   `json:"explainability"`
	Efficiency     *int   `json:"efficiency"`
	Safety         *int   `json:"safety"`
	Justification  string `json:"justification"`
}

// Evaluation is a parsed evaluator reply.
type Evaluation struct {
	Score         domain.Score
	Justification string
	// Repaired is set when the reply needed fence stripping or syntax repair.
	Repaired bool
}

// ParseEvaluation extracts a Score from an evaluator reply. It tries strict
// JSON first, then strips markdown fences and common syntax slips, then falls
// back to the outermost {...} block in the text.
func ParseEvaluation(reply string) (Evaluation, error) {
	raw := strings.TrimSpace(reply)
	if raw == "" {
		return Evaluation{}, fmt.Errorf("%w: empty reply", ErrUnparseableEvaluation)
	}

	if ev, err := decodeEvaluation(raw); err == nil {
		return ev, nil
	} else if !errors.Is(err, errMalformedJSON) {
		return Evaluation{}, err
	}

	repaired := repairJSON(raw)
	if ev, err := decodeEvaluation(repaired); err == nil {
		ev.Repaired = true
		return ev, nil
	} else if !errors.Is(err, errMalformedJSON) {
		return Evaluation{}, err
	}

	block := jsonObjectRe.FindString(raw)
	if block == "" {
		return Evaluation{}, fmt.Errorf("%w: no JSON object found", ErrUnparseableEvaluation)
	}
	ev, err := decodeEvaluation(repairJSON(block))
	if err != nil {
		return Evaluation{}, err
	}
	ev.Repaired = true
	return ev, nil
}

var errMalformedJSON = errors.New("malformed JSON")

func decodeEvaluation(s string) (Evaluation, error) {
	var schema evaluationSchema
	if err := json.Unmarshal([]byte(s), &schema); err != nil {
		return Evaluation{}, fmt.Errorf("%w: %w", errMalformedJSON, err)
	}

	ratings := map[domain.Metric]*int{
		domain.MetricAccuracy:       schema.Accuracy,
		domain.MetricRelevance:      schema.Relevance,
		domain.MetricCompleteness:   schema.Completeness,
		domain.MetricExplainability: schema.Explainability,
		domain.MetricEfficiency:     schema.Efficiency,
		domain.MetricSafety:         schema.Safety,
	}
	values := make(map[domain.Metric]int, len(ratings))
	for m, v := range ratings {
		if v != nil {
			values[m] = *v
		}
	}

	score, err := domain.ScoreFromMap(values)
	if err != nil {
		return Evaluation{}, fmt.Errorf("%w: %w", ErrUnparseableEvaluation, err)
	}
	return Evaluation{Score: score, Justification: strings.TrimSpace(schema.Justification)}, nil
}

// repairJSON applies conservative fixes for typical LLM output problems.
func repairJSON(s string) string {
	repaired := strings.TrimSpace(s)
	repaired = strings.TrimPrefix(repaired, "```json")
	repaired = strings.TrimPrefix(repaired, "```")
	repaired = strings.TrimSuffix(repaired, "```")

	repaired = strings.ReplaceAll(repaired, ",\n}", "\n}")
	repaired = strings.ReplaceAll(repaired, ",\r\n}", "\r\n}")
	repaired = strings.ReplaceAll(repaired, ", }", " }")
	repaired = strings.ReplaceAll(repaired, ",}", "}")

	repaired = unquotedKeyRe.ReplaceAllString(repaired, `$1"$2":`)

	if !strings.Contains(repaired, `"`) && strings.Contains(repaired, `'`) {
		repaired = strings.ReplaceAll(repaired, `'`, `"`)
	}
	return strings.TrimSpace(repaired)
}
