package governance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/domain"
	"github.com/ErikG1776/syntropiq/executor"
	"github.com/ErikG1776/syntropiq/store"
)

// LoopParams wires a GovernanceLoop together.
type LoopParams struct {
	Store       store.Store
	Prioritizer *Prioritizer
	TrustEngine *TrustEngine
	Learner     Learner
	Mutation    *MutationEngine
	Logger      *zap.Logger
}

// GovernanceLoop orchestrates one full cycle: prioritize, assign, execute,
// learn, mutate thresholds, reflect, persist.
//
// A loop instance carries mutable in-process state through its engines and
// must not run concurrent cycles; hosts serving multiple pools own one loop
// per pool. Only the store is meant to be shared.
type GovernanceLoop struct {
	store       store.Store
	prioritizer *Prioritizer
	trust       *TrustEngine
	learner     Learner
	mutation    *MutationEngine
	logger      *zap.Logger
}

// NewGovernanceLoop creates a loop from its parts. Prioritizer and learner
// fall back to defaults when omitted.
func NewGovernanceLoop(p LoopParams) *GovernanceLoop {
	if p.Prioritizer == nil {
		p.Prioritizer = NewPrioritizer(DefaultPriorityWeights())
	}
	if p.Learner == (Learner{}) {
		p.Learner = NewLearner()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &GovernanceLoop{
		store:       p.Store,
		prioritizer: p.Prioritizer,
		trust:       p.TrustEngine,
		learner:     p.Learner,
		mutation:    p.Mutation,
		logger:      p.Logger,
	}
}

// TrustEngine exposes the loop's trust engine for host surfaces that need
// monitoring snapshots or caller-side recovery.
func (l *GovernanceLoop) TrustEngine() *TrustEngine {
	return l.trust
}

// Mutation exposes the loop's mutation engine.
func (l *GovernanceLoop) Mutation() *MutationEngine {
	return l.mutation
}

// ExecuteCycle runs one complete governance cycle over the given tasks and
// agent pool. The cycle is atomic with respect to trust mutation: if
// assignment fails (circuit breaker, no eligible agent) or the executor
// errors, the cycle aborts before any trust, threshold, or suppression
// state is persisted.
func (l *GovernanceLoop) ExecuteCycle(ctx context.Context, tasks []domain.Task, agents map[string]*domain.Agent, exec executor.Executor, runID string) (*domain.CycleResult, error) {
	if len(agents) == 0 {
		return nil, domain.ErrNoAgents
	}
	if runID == "" {
		runID = "cycle_" + uuid.New().String()[:8]
	}

	l.logger.Info("governance cycle started",
		zap.String("run_id", runID),
		zap.Int("tasks", len(tasks)),
		zap.Int("agents", len(agents)))

	// Step 1: prioritize.
	sorted := l.prioritizer.Optimize(tasks)

	// Step 2: assign. Failures here abort the whole cycle; no partial
	// assignment is ever executed.
	assignments, err := l.trust.AssignAgents(ctx, sorted, agents)
	if err != nil {
		return nil, err
	}

	taskByID := make(map[string]domain.Task, len(sorted))
	for _, task := range sorted {
		taskByID[task.ID] = task
	}

	// Step 3: execute every assignment, exactly one result each.
	results := make([]domain.ExecutionResult, 0, len(assignments))
	for _, assignment := range assignments {
		result, err := exec.Execute(ctx, taskByID[assignment.TaskID], agents[assignment.AgentID])
		if err != nil {
			return nil, fmt.Errorf("executor failed on task %s: %w", assignment.TaskID, err)
		}
		results = append(results, result)
	}

	// Step 4: learn, writing new scores back onto the agent objects.
	trustUpdates := l.learner.UpdateTrustScores(results, agents)
	for agentID, newScore := range trustUpdates {
		agents[agentID].TrustScore = newScore
	}

	// Step 5: retune thresholds and push them into the trust engine.
	thresholds, err := l.mutation.EvaluateAndMutate(ctx, results, runID)
	if err != nil {
		return nil, err
	}
	l.trust.SetThresholds(thresholds)

	// Step 6: reflect.
	reflection := EvaluateReflection(results, trustUpdates, runID)

	// Step 7: persist trust, results, reflection, and suppression state.
	if err := l.store.UpdateTrustScores(ctx, trustUpdates, runID); err != nil {
		return nil, fmt.Errorf("failed to persist trust updates: %w", err)
	}
	if err := l.store.RecordExecutionResults(ctx, results); err != nil {
		return nil, fmt.Errorf("failed to persist execution results: %w", err)
	}
	if err := l.store.RecordReflection(ctx, reflection); err != nil {
		return nil, fmt.Errorf("failed to persist reflection: %w", err)
	}
	for agentID := range agents {
		suppressed, cycles := l.trust.SuppressionCycles(agentID)
		if err := l.store.UpdateSuppressionState(ctx, agentID, suppressed, cycles); err != nil {
			return nil, fmt.Errorf("failed to persist suppression state: %w", err)
		}
	}

	stats := domain.CycleStatistics{TasksExecuted: len(results)}
	totalLatency := 0.0
	for _, r := range results {
		if r.Success {
			stats.Successes++
		} else {
			stats.Failures++
		}
		totalLatency += r.Latency
	}
	if len(results) > 0 {
		stats.AvgLatency = totalLatency / float64(len(results))
	}

	l.logger.Info("governance cycle complete",
		zap.String("run_id", runID),
		zap.Int("successes", stats.Successes),
		zap.Int("failures", stats.Failures),
		zap.Float64("trust_threshold", thresholds.Trust))

	return &domain.CycleResult{
		RunID:        runID,
		Assignments:  assignments,
		Results:      results,
		TrustUpdates: trustUpdates,
		Reflection:   reflection,
		Thresholds:   thresholds,
		Statistics:   stats,
	}, nil
}

// AgentStatus combines the trust engine's working state with the persisted
// trust history for one agent.
func (l *GovernanceLoop) AgentStatus(ctx context.Context, agentID string) (*domain.AgentSnapshot, error) {
	snapshot := l.trust.Snapshot(agentID)

	history, err := l.store.GetTrustHistory(ctx, agentID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust history: %w", err)
	}
	snapshot.PersistedHistory = history
	return &snapshot, nil
}

// SystemStatistics returns the aggregate view over the persistent store.
func (l *GovernanceLoop) SystemStatistics(ctx context.Context) (*domain.SystemStatistics, error) {
	return l.store.GetStatistics(ctx)
}
