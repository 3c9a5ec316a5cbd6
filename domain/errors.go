package domain

import (
	"errors"
	"fmt"
)

// Cycle-fatal error kinds. Callers are expected to branch on these with
// errors.Is / errors.As and react operationally rather than crash.
var (
	// ErrCircuitBreaker means no agent in the pool is eligible for any
	// task. The cycle is aborted before any assignment is made.
	ErrCircuitBreaker = errors.New("no trusted agents available")

	// ErrNoAgents means the agent registry is empty.
	ErrNoAgents = errors.New("no agents available")
)

// NoEligibleAgentError means a specific task's risk exceeds what any
// currently eligible agent may accept. The cycle is aborted rather than
// silently skipping the task.
type NoEligibleAgentError struct {
	TaskID string
	Risk   float64
}

func (e *NoEligibleAgentError) Error() string {
	return fmt.Sprintf("no eligible agent for task %s (risk %.2f)", e.TaskID, e.Risk)
}

// InvalidTrustError means an attempt was made to set a trust score outside
// [0, 1]. Raised at registration/update time, never inside the control loop.
type InvalidTrustError struct {
	AgentID string
	Score   float64
}

func (e *InvalidTrustError) Error() string {
	return fmt.Sprintf("trust score for agent %s must be in [0.0, 1.0], got %v", e.AgentID, e.Score)
}
