// Package governance implements the governance kernel: task prioritization,
// trust-based assignment, asymmetric trust learning, adaptive threshold
// mutation, per-cycle reflection, and the orchestrating loop.
package governance

import (
	"sort"

	"github.com/ErikG1776/syntropiq/domain"
)

// PriorityWeights are the urgency/impact/risk weights used to order tasks.
type PriorityWeights struct {
	Impact  float64
	Urgency float64
	Risk    float64
}

// DefaultPriorityWeights weights impact slightly above urgency and risk.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{Impact: 0.4, Urgency: 0.3, Risk: 0.3}
}

// Prioritizer orders incoming tasks by weighted score, highest first.
// It has no side effects and no failure modes.
type Prioritizer struct {
	weights PriorityWeights
}

// NewPrioritizer creates a prioritizer with the given weights.
func NewPrioritizer(weights PriorityWeights) *Prioritizer {
	return &Prioritizer{weights: weights}
}

// Score computes the priority score for a single task.
func (p *Prioritizer) Score(task domain.Task) float64 {
	return p.weights.Impact*task.Impact + p.weights.Urgency*task.Urgency + p.weights.Risk*task.Risk
}

// Optimize returns the tasks ordered by descending score. Tie order is not
// guaranteed. The input slice is not modified.
func (p *Prioritizer) Optimize(tasks []domain.Task) []domain.Task {
	sorted := make([]domain.Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool {
		return p.Score(sorted[i]) > p.Score(sorted[j])
	})
	return sorted
}
