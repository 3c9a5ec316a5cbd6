package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ErikG1776/syntropiq/domain"
)

// TaskFunc is a callable registered as an executable agent. It returns
// whether the task succeeded plus optional result metadata.
type TaskFunc func(task domain.Task) (bool, map[string]string)

// Func executes tasks through plain Go functions registered per agent id.
// Useful for wrapping rule systems, model inference calls, or custom
// business logic without a dedicated executor type.
type Func struct {
	funcs map[string]TaskFunc
}

// NewFunc creates a function executor with an empty registry.
func NewFunc() *Func {
	return &Func{funcs: make(map[string]TaskFunc)}
}

// RegisterFunc registers fn as the executable body for agentID.
func (f *Func) RegisterFunc(agentID string, fn TaskFunc) {
	f.funcs[agentID] = fn
}

// Execute runs the registered function for the agent, measuring latency.
// An unregistered agent is an executor error and aborts the cycle.
func (f *Func) Execute(_ context.Context, task domain.Task, agent *domain.Agent) (domain.ExecutionResult, error) {
	fn, ok := f.funcs[agent.ID]
	if !ok {
		return domain.ExecutionResult{}, fmt.Errorf("no function registered for agent %s", agent.ID)
	}

	start := time.Now()
	success, metadata := fn(task)
	latency := time.Since(start).Seconds()

	return domain.ExecutionResult{
		TaskID:   task.ID,
		AgentID:  agent.ID,
		Success:  success,
		Latency:  latency,
		Metadata: metadata,
	}, nil
}

// ValidateAgent reports whether a function is registered for the agent.
func (f *Func) ValidateAgent(agent *domain.Agent) bool {
	if agent == nil {
		return false
	}
	_, ok := f.funcs[agent.ID]
	return ok
}
