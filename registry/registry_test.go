package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikG1776/syntropiq/domain"
	"github.com/ErikG1776/syntropiq/registry"
	"github.com/ErikG1776/syntropiq/tests/helpers"
)

func TestRegisterRejectsInvalidTrust(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)
	r := registry.New(s, nil)

	_, err := r.Register(ctx, "a1", []string{"fraud"}, 1.5, domain.StatusActive)
	require.Error(t, err)

	var invalid *domain.InvalidTrustError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "a1", invalid.AgentID)

	_, err = r.Register(ctx, "a2", nil, -0.1, domain.StatusActive)
	require.ErrorAs(t, err, &invalid)
}

func TestRegisterUsesPersistedTrust(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)

	r := registry.New(s, nil)
	agent, err := r.Register(ctx, "a1", []string{"lending"}, 0.6, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, 0.6, agent.TrustScore)

	// Simulate a cycle moving the trust score.
	require.NoError(t, s.UpdateTrustScores(ctx, map[string]float64{"a1": 0.82}, "CYCLE_1"))

	// A fresh registry (restart) must pick up the persisted score, not the
	// initial one.
	r2 := registry.New(s, nil)
	agent2, err := r2.Register(ctx, "a1", []string{"lending"}, 0.6, domain.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, 0.82, agent2.TrustScore)
}

func TestUpdateStatusAndFilters(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)
	r := registry.New(s, nil)

	_, err := r.Register(ctx, "a1", nil, 0.9, domain.StatusActive)
	require.NoError(t, err)
	_, err = r.Register(ctx, "a2", nil, 0.5, domain.StatusActive)
	require.NoError(t, err)

	require.NoError(t, r.UpdateStatus(ctx, "a2", domain.StatusProbation))

	assert.Len(t, r.List(""), 2)
	assert.Len(t, r.List(domain.StatusActive), 1)
	assert.Len(t, r.AgentsDict(domain.StatusProbation), 1)

	// Durable status follows the in-memory one.
	stored, err := s.GetAgent(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProbation, stored.Status)

	err = r.UpdateStatus(ctx, "ghost", domain.StatusActive)
	assert.ErrorIs(t, err, domain.ErrNoAgents)
}

func TestSyncTrustScores(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)
	r := registry.New(s, nil)

	_, err := r.Register(ctx, "a1", nil, 0.7, domain.StatusActive)
	require.NoError(t, err)

	require.NoError(t, s.UpdateTrustScores(ctx, map[string]float64{"a1": 0.65}, "CYCLE_1"))
	require.NoError(t, r.SyncTrustScores(ctx))
	assert.Equal(t, 0.65, r.Get("a1").TrustScore)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := helpers.NewTestSQLiteStore(t)
	r := registry.New(s, nil)

	_, err := r.Register(ctx, "a1", nil, 0.9, domain.StatusActive)
	require.NoError(t, err)
	_, err = r.Register(ctx, "a2", nil, 0.3, domain.StatusProbation)
	require.NoError(t, err)

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalAgents)
	assert.Equal(t, 1, stats.ActiveAgents)
	assert.Equal(t, 1, stats.ProbationAgents)
	assert.InDelta(t, 0.6, stats.AvgTrustScore, 1e-9)
	assert.Equal(t, 0.9, stats.HighestTrust)
	assert.Equal(t, 0.3, stats.LowestTrust)
}
