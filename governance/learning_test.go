package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ErikG1776/syntropiq/domain"
)

func TestLearnerClampsAtBounds(t *testing.T) {
	l := NewLearner()

	agents := map[string]*domain.Agent{
		"near_top":    {ID: "near_top", TrustScore: 0.99},
		"near_bottom": {ID: "near_bottom", TrustScore: 0.01},
	}
	results := []domain.ExecutionResult{
		{TaskID: "t1", AgentID: "near_top", Success: true},
		{TaskID: "t2", AgentID: "near_bottom", Success: false},
	}

	scores := l.UpdateTrustScores(results, agents)
	assert.Equal(t, 1.0, scores["near_top"])
	assert.Equal(t, 0.0, scores["near_bottom"])
}

func TestLearnerAsymmetricRates(t *testing.T) {
	l := NewLearner()

	agents := map[string]*domain.Agent{
		"a": {ID: "a", TrustScore: 0.5},
		"b": {ID: "b", TrustScore: 0.5},
	}
	results := []domain.ExecutionResult{
		{TaskID: "t1", AgentID: "a", Success: true},
		{TaskID: "t2", AgentID: "b", Success: false},
	}

	scores := l.UpdateTrustScores(results, agents)
	assert.InDelta(t, 0.52, scores["a"], 1e-9)
	assert.InDelta(t, 0.45, scores["b"], 1e-9)
}

func TestLearnerAccumulatesWithinCycle(t *testing.T) {
	l := NewLearner()

	agents := map[string]*domain.Agent{
		"a": {ID: "a", TrustScore: 0.5},
	}
	results := []domain.ExecutionResult{
		{TaskID: "t1", AgentID: "a", Success: true},
		{TaskID: "t2", AgentID: "a", Success: true},
		{TaskID: "t3", AgentID: "a", Success: false},
	}

	// 0.5 + 0.02 + 0.02 - 0.05, applied sequentially.
	scores := l.UpdateTrustScores(results, agents)
	assert.InDelta(t, 0.49, scores["a"], 1e-9)
}

func TestLearnerMixedSuccessAndFailure(t *testing.T) {
	l := NewLearner()

	agents := map[string]*domain.Agent{
		"a": {ID: "a", TrustScore: 0.8},
		"b": {ID: "b", TrustScore: 0.6},
		"c": {ID: "c", TrustScore: 0.7},
	}
	results := []domain.ExecutionResult{
		{TaskID: "t1", AgentID: "a", Success: true},
		{TaskID: "t2", AgentID: "b", Success: false},
	}

	scores := l.UpdateTrustScores(results, agents)
	assert.Len(t, scores, 2)
	assert.InDelta(t, 0.82, scores["a"], 1e-9)
	assert.InDelta(t, 0.55, scores["b"], 1e-9)
	// Idle agents are untouched and absent from the update map.
	_, present := scores["c"]
	assert.False(t, present)
}

func TestLearnerIgnoresUnknownAgents(t *testing.T) {
	l := NewLearner()

	agents := map[string]*domain.Agent{
		"a": {ID: "a", TrustScore: 0.5},
	}
	results := []domain.ExecutionResult{
		{TaskID: "t1", AgentID: "ghost", Success: true},
	}

	scores := l.UpdateTrustScores(results, agents)
	assert.Empty(t, scores)
}
