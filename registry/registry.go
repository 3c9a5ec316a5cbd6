// Package registry manages durable agent identity and lifecycle.
package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/domain"
	"github.com/ErikG1776/syntropiq/store"
)

// AgentRegistry is the durable source of truth for agent identity. Trust
// scores persisted by previous runs take precedence over the initial trust
// supplied at registration, which is what gives agents continuity across
// restarts.
type AgentRegistry struct {
	store  store.Store
	agents map[string]*domain.Agent
	logger *zap.Logger
}

// New creates an agent registry backed by the given store.
func New(s store.Store, logger *zap.Logger) *AgentRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentRegistry{
		store:  s,
		agents: make(map[string]*domain.Agent),
		logger: logger,
	}
}

// Register registers a new agent or rebinds an existing one. For agents the
// store already knows, the persisted trust score wins over initialTrust.
func (r *AgentRegistry) Register(ctx context.Context, agentID string, capabilities []string, initialTrust float64, status domain.AgentStatus) (*domain.Agent, error) {
	if initialTrust < 0.0 || initialTrust > 1.0 {
		return nil, &domain.InvalidTrustError{AgentID: agentID, Score: initialTrust}
	}
	if status == "" {
		status = domain.StatusActive
	}

	persisted, err := r.store.GetTrustScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trust scores: %w", err)
	}

	trust := initialTrust
	if score, ok := persisted[agentID]; ok {
		trust = score
		r.logger.Info("agent already registered, using persisted trust",
			zap.String("agent_id", agentID), zap.Float64("trust", trust))
	} else {
		if err := r.store.UpdateTrustScores(ctx, map[string]float64{agentID: trust}, "initial_registration"); err != nil {
			return nil, fmt.Errorf("failed to persist initial trust: %w", err)
		}
		r.logger.Info("registered new agent",
			zap.String("agent_id", agentID), zap.Float64("trust", trust))
	}

	agent := &domain.Agent{
		ID:           agentID,
		TrustScore:   trust,
		Capabilities: capabilities,
		Status:       status,
	}
	if err := r.store.RegisterAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	r.agents[agentID] = agent
	return agent, nil
}

// Get returns the agent with the given id, or nil if unknown.
func (r *AgentRegistry) Get(agentID string) *domain.Agent {
	return r.agents[agentID]
}

// List returns all agents, optionally filtered by status (empty = all).
func (r *AgentRegistry) List(status domain.AgentStatus) []*domain.Agent {
	agents := make([]*domain.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if status != "" && a.Status != status {
			continue
		}
		agents = append(agents, a)
	}
	return agents
}

// AgentsDict returns agents keyed by id, optionally filtered by status.
// This is the shape the governance loop consumes.
func (r *AgentRegistry) AgentsDict(status domain.AgentStatus) map[string]*domain.Agent {
	agents := make(map[string]*domain.Agent)
	for id, a := range r.agents {
		if status != "" && a.Status != status {
			continue
		}
		agents[id] = a
	}
	return agents
}

// UpdateStatus updates an agent's lifecycle status in memory and durably.
func (r *AgentRegistry) UpdateStatus(ctx context.Context, agentID string, status domain.AgentStatus) error {
	agent, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s not found in registry: %w", agentID, domain.ErrNoAgents)
	}

	agent.Status = status
	if err := r.store.UpdateAgentStatus(ctx, agentID, status); err != nil {
		return fmt.Errorf("failed to update agent status: %w", err)
	}
	r.logger.Info("agent status updated",
		zap.String("agent_id", agentID), zap.String("status", string(status)))
	return nil
}

// SyncTrustScores pulls the latest persisted trust scores into the in-memory
// agent objects. Call after a governance cycle to refresh the working set.
func (r *AgentRegistry) SyncTrustScores(ctx context.Context) error {
	scores, err := r.store.GetTrustScores(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync trust scores: %w", err)
	}
	for agentID, score := range scores {
		if agent, ok := r.agents[agentID]; ok {
			agent.TrustScore = score
		}
	}
	return nil
}

// Statistics summarizes the registry's current agent pool.
type Statistics struct {
	TotalAgents      int     `json:"total_agents"`
	ActiveAgents     int     `json:"active_agents"`
	ProbationAgents  int     `json:"probation_agents"`
	SuppressedAgents int     `json:"suppressed_agents"`
	AvgTrustScore    float64 `json:"avg_trust_score"`
	HighestTrust     float64 `json:"highest_trust"`
	LowestTrust      float64 `json:"lowest_trust"`
}

// Stats returns summary statistics over the registered agents.
func (r *AgentRegistry) Stats() Statistics {
	stats := Statistics{TotalAgents: len(r.agents)}
	if len(r.agents) == 0 {
		return stats
	}

	sum := 0.0
	stats.LowestTrust = 1.0
	for _, a := range r.agents {
		switch a.Status {
		case domain.StatusActive:
			stats.ActiveAgents++
		case domain.StatusProbation:
			stats.ProbationAgents++
		case domain.StatusSuppressed:
			stats.SuppressedAgents++
		}
		sum += a.TrustScore
		if a.TrustScore > stats.HighestTrust {
			stats.HighestTrust = a.TrustScore
		}
		if a.TrustScore < stats.LowestTrust {
			stats.LowestTrust = a.TrustScore
		}
	}
	stats.AvgTrustScore = sum / float64(len(r.agents))
	return stats
}
