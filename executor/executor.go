// Package executor defines the execution boundary of the governance kernel.
//
// The kernel never inspects task or result metadata; what "success" means
// for a task lives entirely on the executor side. Implementations may call
// out to models, rule systems, external APIs, or simulators.
package executor

import (
	"context"

	"github.com/ErikG1776/syntropiq/domain"
)

// Executor executes assigned tasks on behalf of agents.
//
// Execute is a synchronous, potentially slow boundary. The kernel imposes no
// timeout of its own; callers wrap ctx with a deadline if they need one. An
// error return aborts the surrounding governance cycle, so executors should
// translate task-level failures into a failed ExecutionResult instead of an
// error wherever possible.
type Executor interface {
	Execute(ctx context.Context, task domain.Task, agent *domain.Agent) (domain.ExecutionResult, error)
	ValidateAgent(agent *domain.Agent) bool
}
