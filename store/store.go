// Package store defines the persistence port and its implementations.
package store

import (
	"context"

	"github.com/ErikG1776/syntropiq/domain"
)

// Store is the durable record the kernel depends on for continuity across
// restarts. Every write method is its own atomic transaction, so the store
// may be shared between independent governance loops.
type Store interface {
	// Agent operations
	RegisterAgent(ctx context.Context, agent *domain.Agent) error
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	UpdateAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) error

	// Trust score operations
	GetTrustScores(ctx context.Context) (map[string]float64, error)
	UpdateTrustScores(ctx context.Context, updates map[string]float64, reason string) error
	GetTrustHistory(ctx context.Context, agentID string, limit int) ([]domain.TrustHistoryEntry, error)

	// Suppression state operations
	GetSuppressionStates(ctx context.Context) (map[string]domain.SuppressionState, error)
	UpdateSuppressionState(ctx context.Context, agentID string, suppressed bool, redemptionCycle int) error

	// Execution result log
	RecordExecutionResults(ctx context.Context, results []domain.ExecutionResult) error

	// Reflection log
	RecordReflection(ctx context.Context, reflection domain.Reflection) error
	GetRecentReflections(ctx context.Context, limit int) ([]domain.Reflection, error)

	// Mutation event log
	RecordMutationEvent(ctx context.Context, record domain.MutationRecord) error
	GetMutationHistory(ctx context.Context, limit int) ([]domain.MutationRecord, error)
	GetLatestThresholds(ctx context.Context) (*domain.Thresholds, error)

	// Aggregate statistics
	GetStatistics(ctx context.Context) (*domain.SystemStatistics, error)

	// Lifecycle
	Close() error
}
