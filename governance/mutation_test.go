package governance

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikG1776/syntropiq/domain"
	"github.com/ErikG1776/syntropiq/tests/helpers"
)

func makeResults(total, successes int) []domain.ExecutionResult {
	results := make([]domain.ExecutionResult, total)
	for i := range results {
		results[i] = domain.ExecutionResult{
			TaskID:  fmt.Sprintf("t%d", i),
			AgentID: "a",
			Success: i < successes,
		}
	}
	return results
}

func newMemoryMutationEngine(t *testing.T, initial domain.Thresholds) *MutationEngine {
	t.Helper()
	m, err := NewMutationEngine(context.Background(), MutationEngineParams{Initial: initial})
	require.NoError(t, err)
	return m
}

func TestMutationTightensWhenUnderperforming(t *testing.T) {
	m := newMemoryMutationEngine(t, domain.Thresholds{Trust: 0.7, Suppression: 0.75, DriftDelta: 0.1})

	got, err := m.EvaluateAndMutate(context.Background(), makeResults(10, 1), "c1")
	require.NoError(t, err)

	assert.InDelta(t, 0.75, got.Trust, 1e-9)
	assert.InDelta(t, 0.80, got.Suppression, 1e-9)
	assert.InDelta(t, 0.12, got.DriftDelta, 1e-9)

	history, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.MutationTighten, history[0].Action)
	assert.InDelta(t, 0.1, history[0].SuccessRate, 1e-9)
	assert.InDelta(t, 0.7, history[0].TrustThreshold.Old, 1e-9)
	assert.InDelta(t, 0.75, history[0].TrustThreshold.New, 1e-9)
}

func TestMutationLoosensWhenOutperforming(t *testing.T) {
	m := newMemoryMutationEngine(t, domain.Thresholds{Trust: 0.7, Suppression: 0.85, DriftDelta: 0.1})

	got, err := m.EvaluateAndMutate(context.Background(), makeResults(10, 10), "c1")
	require.NoError(t, err)

	assert.InDelta(t, 0.65, got.Trust, 1e-9)
	assert.InDelta(t, 0.80, got.Suppression, 1e-9)
	assert.InDelta(t, 0.08, got.DriftDelta, 1e-9)

	history, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.MutationLoosen, history[0].Action)
}

func TestMutationNearTargetNudgesTrustOnly(t *testing.T) {
	m := newMemoryMutationEngine(t, domain.Thresholds{Trust: 0.7, Suppression: 0.80, DriftDelta: 0.1})

	// 21/25 = 0.84, just under the 0.85 target: half-strength nudge.
	got, err := m.EvaluateAndMutate(context.Background(), makeResults(25, 21), "c1")
	require.NoError(t, err)

	assert.InDelta(t, 0.725, got.Trust, 1e-9)
	assert.InDelta(t, 0.80, got.Suppression, 1e-9)
	assert.InDelta(t, 0.1, got.DriftDelta, 1e-9)

	history, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.MutationMinorTighten, history[0].Action)

	// 22/25 = 0.88, just over target: half-strength loosen.
	got, err = m.EvaluateAndMutate(context.Background(), makeResults(25, 22), "c2")
	require.NoError(t, err)
	assert.InDelta(t, 0.70, got.Trust, 1e-9)
	assert.InDelta(t, 0.80, got.Suppression, 1e-9)

	history, err = m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.MutationMinorLoosen, history[1].Action)
}

func TestMutationSafetyBandAfterMinorNudge(t *testing.T) {
	// Suppression sits right at the margin; a trust nudge must drag it up.
	m := newMemoryMutationEngine(t, domain.Thresholds{Trust: 0.7, Suppression: 0.75, DriftDelta: 0.1})

	got, err := m.EvaluateAndMutate(context.Background(), makeResults(25, 21), "c1")
	require.NoError(t, err)

	assert.InDelta(t, 0.725, got.Trust, 1e-9)
	assert.InDelta(t, 0.775, got.Suppression, 1e-9)
	assert.GreaterOrEqual(t, got.Suppression, got.Trust+0.05-1e-9)
}

func TestMutationEmptyResultsIsANoOp(t *testing.T) {
	initial := domain.Thresholds{Trust: 0.7, Suppression: 0.75, DriftDelta: 0.1}
	m := newMemoryMutationEngine(t, initial)

	got, err := m.EvaluateAndMutate(context.Background(), nil, "c1")
	require.NoError(t, err)
	assert.Equal(t, initial, got)

	history, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMutationRespectsCapsUnderSustainedFailure(t *testing.T) {
	m := newMemoryMutationEngine(t, domain.Thresholds{Trust: 0.7, Suppression: 0.75, DriftDelta: 0.1})

	var got domain.Thresholds
	var err error
	for i := 0; i < 20; i++ {
		got, err = m.EvaluateAndMutate(context.Background(), makeResults(5, 0), fmt.Sprintf("c%d", i))
		require.NoError(t, err)

		assert.LessOrEqual(t, got.Trust, 0.95+1e-9)
		assert.LessOrEqual(t, got.Suppression, 0.95+1e-9)
		assert.LessOrEqual(t, got.DriftDelta, 0.2+1e-9)
		assert.GreaterOrEqual(t, got.Suppression, got.Trust+0.05-1e-9)
	}

	// At the caps the band pins trust a margin below the suppression cap.
	assert.InDelta(t, 0.90, got.Trust, 1e-9)
	assert.InDelta(t, 0.95, got.Suppression, 1e-9)
	assert.InDelta(t, 0.2, got.DriftDelta, 1e-9)
}

func TestMutationRespectsFloorsUnderSustainedSuccess(t *testing.T) {
	m := newMemoryMutationEngine(t, domain.Thresholds{Trust: 0.7, Suppression: 0.85, DriftDelta: 0.1})

	var got domain.Thresholds
	var err error
	for i := 0; i < 20; i++ {
		got, err = m.EvaluateAndMutate(context.Background(), makeResults(5, 5), fmt.Sprintf("c%d", i))
		require.NoError(t, err)
	}

	assert.InDelta(t, 0.55, got.Trust, 1e-9)
	assert.InDelta(t, 0.78, got.Suppression, 1e-9)
	assert.InDelta(t, 0.05, got.DriftDelta, 1e-9)
}

func TestMutationWarmStartFromStore(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()
	initial := domain.Thresholds{Trust: 0.7, Suppression: 0.75, DriftDelta: 0.1}

	first, err := NewMutationEngine(ctx, MutationEngineParams{Initial: initial, Store: s})
	require.NoError(t, err)

	mutated, err := first.EvaluateAndMutate(ctx, makeResults(10, 1), "c1")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, mutated.Trust, 1e-9)

	// A fresh engine against the same store resumes where the first left
	// off, ignoring its own initial thresholds.
	second, err := NewMutationEngine(ctx, MutationEngineParams{Initial: initial, Store: s})
	require.NoError(t, err)

	resumed := second.Thresholds()
	assert.InDelta(t, mutated.Trust, resumed.Trust, 1e-9)
	assert.InDelta(t, mutated.Suppression, resumed.Suppression, 1e-9)
	assert.InDelta(t, mutated.DriftDelta, resumed.DriftDelta, 1e-9)

	history, err := second.History(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.MutationTighten, history[0].Action)
	assert.Equal(t, 1, second.Trend().CyclesTracked)
}

func TestMutationTrend(t *testing.T) {
	m := newMemoryMutationEngine(t, domain.Thresholds{Trust: 0.7, Suppression: 0.75, DriftDelta: 0.1})

	assert.Equal(t, "unknown", m.Trend().Trend)

	_, err := m.EvaluateAndMutate(context.Background(), makeResults(10, 2), "c1")
	require.NoError(t, err)
	_, err = m.EvaluateAndMutate(context.Background(), makeResults(10, 10), "c2")
	require.NoError(t, err)

	trend := m.Trend()
	assert.Equal(t, "improving", trend.Trend)
	assert.Equal(t, 2, trend.CyclesTracked)
	assert.InDelta(t, 0.6, trend.AvgSuccessRate, 1e-9)
}
