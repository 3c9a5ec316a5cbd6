package governance

import (
	"math"

	"github.com/ErikG1776/syntropiq/domain"
)

// Learner computes new trust scores from execution outcomes.
//
// The update is deliberately asymmetric: the penalty for a failure outweighs
// the reward for a success, so the system converges toward caution faster
// than it relaxes.
type Learner struct {
	// Reward is added to trust on success (η).
	Reward float64
	// Penalty is subtracted from trust on failure (γ).
	Penalty float64
}

// NewLearner creates a learner with the default asymmetric rates.
func NewLearner() Learner {
	return Learner{Reward: 0.02, Penalty: 0.05}
}

// UpdateTrustScores computes new trust scores for every agent that produced
// at least one result. Multiple results for the same agent accumulate
// sequentially against a running score within the cycle. Scores are clamped
// to [0, 1] and rounded to three decimals.
func (l Learner) UpdateTrustScores(results []domain.ExecutionResult, agents map[string]*domain.Agent) map[string]float64 {
	newScores := make(map[string]float64)

	for _, result := range results {
		agent, ok := agents[result.AgentID]
		if !ok {
			continue
		}

		current, seen := newScores[result.AgentID]
		if !seen {
			current = agent.TrustScore
		}

		var updated float64
		if result.Success {
			updated = math.Min(1.0, current+l.Reward)
		} else {
			updated = math.Max(0.0, current-l.Penalty)
		}

		newScores[result.AgentID] = math.Round(updated*1000) / 1000
	}

	return newScores
}
