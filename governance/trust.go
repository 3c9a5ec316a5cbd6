package governance

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/config"
	"github.com/ErikG1776/syntropiq/domain"
)

// probationRiskCeiling is the maximum task risk a probation agent may accept.
const probationRiskCeiling = 0.4

// historyWindow is how many trust samples are kept in memory per agent for
// drift detection. The persistence layer retains the full history.
const historyWindow = 10

// StatusSink receives durable agent status transitions. Satisfied by
// *registry.AgentRegistry.
type StatusSink interface {
	UpdateStatus(ctx context.Context, agentID string, status domain.AgentStatus) error
}

// SuppressionSource provides persisted suppression state for rehydration.
// Satisfied by store.Store.
type SuppressionSource interface {
	GetSuppressionStates(ctx context.Context) (map[string]domain.SuppressionState, error)
}

// TrustEngineParams configures a TrustEngine.
type TrustEngineParams struct {
	Thresholds          domain.Thresholds
	MaxRedemptionCycles int
	ProbationQuota      int
	Mode                config.RoutingMode
	Seed                int64
	StatusSink          StatusSink
	Logger              *zap.Logger
}

// TrustEngine owns the per-agent lifecycle state machine and produces
// task assignments under governance constraints. All state is instance-owned;
// independent pools use independent engines. Not safe for concurrent cycles.
type TrustEngine struct {
	thresholds          domain.Thresholds
	maxRedemptionCycles int
	probationQuota      int
	mode                config.RoutingMode
	rng                 *rand.Rand

	trustHistory map[string][]float64
	suppressed   map[string]int // agent id -> redemption cycle count
	excluded     map[string]int // agent id -> cycle count at exclusion
	drifting     map[string]bool

	statusSink StatusSink
	logger     *zap.Logger
}

// NewTrustEngine creates a trust engine with the given parameters.
func NewTrustEngine(p TrustEngineParams) *TrustEngine {
	if p.MaxRedemptionCycles <= 0 {
		p.MaxRedemptionCycles = 4
	}
	if p.ProbationQuota <= 0 {
		p.ProbationQuota = 2
	}
	if p.Mode == "" {
		p.Mode = config.RoutingDeterministic
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &TrustEngine{
		thresholds:          p.Thresholds,
		maxRedemptionCycles: p.MaxRedemptionCycles,
		probationQuota:      p.ProbationQuota,
		mode:                p.Mode,
		rng:                 rand.New(rand.NewSource(p.Seed)),
		trustHistory:        make(map[string][]float64),
		suppressed:          make(map[string]int),
		excluded:            make(map[string]int),
		drifting:            make(map[string]bool),
		statusSink:          p.StatusSink,
		logger:              p.Logger,
	}
}

// Rehydrate restores suppression and redemption state from persistent
// storage so an agent's suppression clock survives a process restart.
func (e *TrustEngine) Rehydrate(ctx context.Context, src SuppressionSource) error {
	states, err := src.GetSuppressionStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load suppression state: %w", err)
	}
	for agentID, st := range states {
		if !st.IsSuppressed {
			continue
		}
		if st.RedemptionCycle > e.maxRedemptionCycles {
			e.excluded[agentID] = st.RedemptionCycle
		} else {
			e.suppressed[agentID] = st.RedemptionCycle
		}
	}
	if len(states) > 0 {
		e.logger.Info("rehydrated suppression state",
			zap.Int("probation", len(e.suppressed)),
			zap.Int("excluded", len(e.excluded)))
	}
	return nil
}

// Thresholds returns the current threshold triple.
func (e *TrustEngine) Thresholds() domain.Thresholds {
	return e.thresholds
}

// SetThresholds pushes new thresholds into the engine's working state.
// Called by the loop after each mutation evaluation.
func (e *TrustEngine) SetThresholds(t domain.Thresholds) {
	e.thresholds = t
}

// SuppressionCycles reports whether the agent is currently suppressed
// (probation or excluded) and its redemption cycle count.
func (e *TrustEngine) SuppressionCycles(agentID string) (bool, int) {
	if cycles, ok := e.suppressed[agentID]; ok {
		return true, cycles
	}
	if cycles, ok := e.excluded[agentID]; ok {
		return true, cycles
	}
	return false, 0
}

// ResetAgent clears an agent's suppression, exclusion, and drift state.
// This is the caller-side recovery hook after a circuit-breaker trip; the
// kernel never invokes it on its own.
func (e *TrustEngine) ResetAgent(agentID string) {
	delete(e.suppressed, agentID)
	delete(e.excluded, agentID)
	delete(e.drifting, agentID)
}

// Snapshot returns a monitoring view of one agent's engine state.
func (e *TrustEngine) Snapshot(agentID string) domain.AgentSnapshot {
	history := make([]float64, len(e.trustHistory[agentID]))
	copy(history, e.trustHistory[agentID])

	suppressedNow, cycles := e.SuppressionCycles(agentID)
	remaining := e.maxRedemptionCycles - cycles
	if remaining < 0 {
		remaining = 0
	}
	return domain.AgentSnapshot{
		AgentID:             agentID,
		TrustHistory:        history,
		IsSuppressed:        suppressedNow,
		SuppressionCycles:   cycles,
		IsDrifting:          e.drifting[agentID],
		RedemptionRemaining: remaining,
	}
}

// AssignAgents partitions the pool per the lifecycle state machine and maps
// each task, in priority order, to an eligible agent.
//
// Returns ErrCircuitBreaker when no agent is eligible at all, and a
// NoEligibleAgentError when a specific task cannot be routed safely. Either
// error aborts the cycle before any execution.
func (e *TrustEngine) AssignAgents(ctx context.Context, tasks []domain.Task, agents map[string]*domain.Agent) ([]domain.Assignment, error) {
	e.recordTrustHistory(agents)
	e.detectDrift()

	active, probation, err := e.partition(ctx, agents)
	if err != nil {
		return nil, err
	}

	// Circuit breaker: nothing eligible means no assignments at all.
	if len(active) == 0 && len(probation) == 0 {
		e.logger.Warn("circuit breaker triggered",
			zap.Float64("trust_threshold", e.thresholds.Trust),
			zap.Int("excluded", len(e.excluded)))
		return nil, fmt.Errorf("circuit breaker: %w", domain.ErrCircuitBreaker)
	}

	e.rank(active)
	e.rank(probation)

	assignments := make([]domain.Assignment, 0, len(tasks))
	probationUsed := 0
	for _, task := range tasks {
		lowRisk := task.Risk <= probationRiskCeiling

		var agent *domain.Agent
		switch {
		// Probation agents get a small quota of low-risk work each
		// cycle so trust recovery is possible.
		case lowRisk && probationUsed < e.probationQuota && len(probation) > 0:
			agent = e.pick(probation)
			probationUsed++
		case len(active) > 0:
			agent = e.pick(active)
		case lowRisk && len(probation) > 0:
			agent = e.pick(probation)
		default:
			return nil, &domain.NoEligibleAgentError{TaskID: task.ID, Risk: task.Risk}
		}

		assignments = append(assignments, domain.Assignment{TaskID: task.ID, AgentID: agent.ID})
	}

	return assignments, nil
}

// recordTrustHistory appends each agent's current trust to its in-memory
// history, capped at historyWindow samples.
func (e *TrustEngine) recordTrustHistory(agents map[string]*domain.Agent) {
	for agentID, agent := range agents {
		history := append(e.trustHistory[agentID], agent.TrustScore)
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		e.trustHistory[agentID] = history
	}
}

// detectDrift flags agents whose trust dropped by more than the drift delta
// between consecutive cycles. Any non-negative change clears the flag.
// Advisory only: affects ranking preference, not eligibility.
func (e *TrustEngine) detectDrift() {
	for agentID, history := range e.trustHistory {
		if len(history) < 2 {
			continue
		}
		delta := history[len(history)-1] - history[len(history)-2]
		switch {
		case delta < -e.thresholds.DriftDelta:
			if !e.drifting[agentID] {
				e.logger.Warn("drift detected",
					zap.String("agent_id", agentID), zap.Float64("delta", delta))
			}
			e.drifting[agentID] = true
		case delta >= 0 && e.drifting[agentID]:
			e.logger.Info("drift recovery",
				zap.String("agent_id", agentID), zap.Float64("delta", delta))
			e.drifting[agentID] = false
		}
	}
}

// partition walks the suppression state machine for every agent and splits
// the pool into active and probation sets. Excluded agents land in neither.
// Durable status is pushed through the status sink on every transition.
func (e *TrustEngine) partition(ctx context.Context, agents map[string]*domain.Agent) (active, probation []*domain.Agent, err error) {
	for agentID, agent := range agents {
		if _, isExcluded := e.excluded[agentID]; isExcluded {
			// Out of the pool until trust is externally reset.
			continue
		}

		if cycles, isSuppressed := e.suppressed[agentID]; isSuppressed {
			if agent.TrustScore >= e.thresholds.Suppression {
				// Redemption: back to full eligibility.
				delete(e.suppressed, agentID)
				e.logger.Info("agent redeemed",
					zap.String("agent_id", agentID), zap.Float64("trust", agent.TrustScore))
				if err := e.setStatus(ctx, agent, domain.StatusActive); err != nil {
					return nil, nil, err
				}
				active = append(active, agent)
				continue
			}

			if cycles > e.maxRedemptionCycles {
				e.excluded[agentID] = cycles
				delete(e.suppressed, agentID)
				e.logger.Warn("agent excluded after redemption window",
					zap.String("agent_id", agentID), zap.Int("cycles", cycles))
				if err := e.setStatus(ctx, agent, domain.StatusSuppressed); err != nil {
					return nil, nil, err
				}
				continue
			}

			e.suppressed[agentID] = cycles + 1
			if err := e.setStatus(ctx, agent, domain.StatusProbation); err != nil {
				return nil, nil, err
			}
			probation = append(probation, agent)
			continue
		}

		if agent.TrustScore < e.thresholds.Suppression {
			e.suppressed[agentID] = 1
			e.logger.Info("suppression initiated",
				zap.String("agent_id", agentID),
				zap.Float64("trust", agent.TrustScore),
				zap.Float64("suppression_threshold", e.thresholds.Suppression))
			if err := e.setStatus(ctx, agent, domain.StatusProbation); err != nil {
				return nil, nil, err
			}
			probation = append(probation, agent)
			continue
		}

		if err := e.setStatus(ctx, agent, domain.StatusActive); err != nil {
			return nil, nil, err
		}
		active = append(active, agent)
	}
	return active, probation, nil
}

func (e *TrustEngine) setStatus(ctx context.Context, agent *domain.Agent, status domain.AgentStatus) error {
	if agent.Status == status {
		return nil
	}
	agent.Status = status
	if e.statusSink == nil {
		return nil
	}
	if err := e.statusSink.UpdateStatus(ctx, agent.ID, status); err != nil {
		return fmt.Errorf("failed to update status for agent %s: %w", agent.ID, err)
	}
	return nil
}

// rank orders candidates by trust descending, with non-drifting agents
// ahead of drifting agents of equal trust.
func (e *TrustEngine) rank(candidates []*domain.Agent) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.TrustScore != b.TrustScore {
			return a.TrustScore > b.TrustScore
		}
		return !e.drifting[a.ID] && e.drifting[b.ID]
	})
}

// pick selects one agent from a ranked, non-empty candidate list according
// to the routing mode: the top candidate in deterministic mode, or a
// trust-weighted random draw in competitive mode.
func (e *TrustEngine) pick(candidates []*domain.Agent) *domain.Agent {
	if e.mode == config.RoutingDeterministic || len(candidates) == 1 {
		return candidates[0]
	}

	total := 0.0
	for _, a := range candidates {
		total += a.TrustScore
	}
	if total <= 0 {
		return candidates[e.rng.Intn(len(candidates))]
	}

	draw := e.rng.Float64() * total
	for _, a := range candidates {
		draw -= a.TrustScore
		if draw <= 0 {
			return a
		}
	}
	return candidates[len(candidates)-1]
}
