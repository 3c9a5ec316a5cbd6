package executor

import (
	"context"
	"fmt"

	"github.com/ErikG1776/syntropiq/domain"
)

// Deterministic is a reproducible execution backend for tests and
// regression baselines. Success is a fixed scoring rule with no randomness:
//
//	success = (agent.trust_score - task.risk) >= decision threshold
type Deterministic struct {
	// DecisionThreshold is the minimum (trust - risk) value for success.
	DecisionThreshold float64
	// FixedLatency is reported for every result.
	FixedLatency float64
}

// NewDeterministic creates a deterministic executor with a fixed latency.
func NewDeterministic(decisionThreshold float64) *Deterministic {
	return &Deterministic{
		DecisionThreshold: decisionThreshold,
		FixedLatency:      0.001,
	}
}

// Execute scores the task against the agent's trust.
func (d *Deterministic) Execute(_ context.Context, task domain.Task, agent *domain.Agent) (domain.ExecutionResult, error) {
	score := agent.TrustScore - task.Risk
	return domain.ExecutionResult{
		TaskID:  task.ID,
		AgentID: agent.ID,
		Success: score >= d.DecisionThreshold,
		Latency: d.FixedLatency,
		Metadata: map[string]string{
			"deterministic": "true",
			"score":         fmt.Sprintf("%.6f", score),
		},
	}, nil
}

// ValidateAgent accepts any agent with an id.
func (d *Deterministic) ValidateAgent(agent *domain.Agent) bool {
	return agent != nil && agent.ID != ""
}
