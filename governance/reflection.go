package governance

import (
	"fmt"

	"github.com/ErikG1776/syntropiq/domain"
)

// EvaluateReflection summarizes a cycle's outcomes into a lightweight
// self-report record. Deterministic, with no learning or control effect;
// purely an audit artifact consumed by callers as a health signal.
//
// The constraint score is 1 when nothing succeeded, 4 when everything did,
// and 3 otherwise.
func EvaluateReflection(results []domain.ExecutionResult, trustUpdates map[string]float64, runID string) domain.Reflection {
	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}
	failures := len(results) - successes

	constraintScore := 3
	switch {
	case successes == 0:
		constraintScore = 1
	case successes == len(results):
		constraintScore = 4
	}

	text := fmt.Sprintf(
		"Agent(s) executed %d tasks with %d success(es) and %d failure(s).\n"+
			"Trust updates: %v.\n"+
			"Feedback loop shows changes in routing based on agent trust.",
		len(results), successes, failures, trustUpdates)

	return domain.Reflection{
		RunID:           runID,
		Text:            text,
		ConstraintScore: constraintScore,
		Grounded:        true,
		Recursive:       true,
	}
}
