// Package policy gates task submission with OPA before tasks reach the
// governance kernel.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the task admission policy.
const (
	DecisionAllow  = "allow"
	DecisionReview = "review"
	DecisionBlock  = "block"
)

// Engine is the OPA policy engine for task admission.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine with the given rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.task_policy.decision"),
		rego.Module("task_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the admission policy for one task.
// Input is a map with keys: task_id, impact, urgency, risk.
// Returns one of the Decision constants.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy is expected to define a default.
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// DefaultPolicy is the default task admission policy: scores must be valid
// unit-interval values, and very high-risk tasks are flagged for review
// rather than silently routed.
const DefaultPolicy = `
package task_policy

default decision = "allow"

valid_scores {
	input.impact >= 0
	input.impact <= 1
	input.urgency >= 0
	input.urgency <= 1
	input.risk >= 0
	input.risk <= 1
}

decision = "block" {
	not valid_scores
}

decision = "review" {
	valid_scores
	input.risk > 0.9
}
`
