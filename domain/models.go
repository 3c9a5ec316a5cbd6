// Package domain defines the core domain models for the governance kernel.
package domain

import "time"

// AgentStatus represents the lifecycle state of an agent.
type AgentStatus string

const (
	// StatusActive agents are eligible for all tasks.
	StatusActive AgentStatus = "active"
	// StatusProbation agents receive only low-risk tasks while their
	// trust recovers within the redemption window.
	StatusProbation AgentStatus = "probation"
	// StatusSuppressed agents exhausted the redemption window and receive
	// no tasks until their trust is externally reset.
	StatusSuppressed AgentStatus = "suppressed"
)

// Task is a unit of work submitted to the kernel. Immutable once created;
// consumed within a single cycle.
type Task struct {
	ID       string            `json:"id"`
	Impact   float64           `json:"impact"`
	Urgency  float64           `json:"urgency"`
	Risk     float64           `json:"risk"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Agent is a registered task executor. ID and capabilities are fixed at
// registration; trust score and status are updated by the kernel every cycle.
type Agent struct {
	ID           string      `json:"id"`
	TrustScore   float64     `json:"trust_score"`
	Capabilities []string    `json:"capabilities"`
	Status       AgentStatus `json:"status"`
}

// Assignment pairs a task with the agent chosen to execute it.
// Produced and consumed within a single cycle.
type Assignment struct {
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
}

// ExecutionResult is the executor's report for one assignment. This is the
// sole ground truth from which trust updates derive.
type ExecutionResult struct {
	TaskID   string            `json:"task_id"`
	AgentID  string            `json:"agent_id"`
	Success  bool              `json:"success"`
	Latency  float64           `json:"latency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TrustHistoryEntry is one persisted trust score sample for an agent.
type TrustHistoryEntry struct {
	AgentID    string    `json:"agent_id"`
	TrustScore float64   `json:"trust_score"`
	Delta      float64   `json:"delta"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SuppressionState tracks an agent's redemption clock.
type SuppressionState struct {
	AgentID         string     `json:"agent_id"`
	IsSuppressed    bool       `json:"is_suppressed"`
	RedemptionCycle int        `json:"redemption_cycle"`
	SuppressedSince *time.Time `json:"suppressed_since,omitempty"`
}

// Thresholds is the tunable governance threshold triple.
type Thresholds struct {
	Trust       float64 `json:"trust_threshold"`
	Suppression float64 `json:"suppression_threshold"`
	DriftDelta  float64 `json:"drift_delta"`
}

// ThresholdChange records a single threshold's before/after values.
type ThresholdChange struct {
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// MutationAction describes the direction of a threshold mutation.
type MutationAction string

const (
	MutationTighten      MutationAction = "tighten"
	MutationLoosen       MutationAction = "loosen"
	MutationMinorTighten MutationAction = "minor_tighten"
	MutationMinorLoosen  MutationAction = "minor_loosen"
)

// MutationRecord is one entry in the append-only threshold mutation log.
type MutationRecord struct {
	CycleID              string          `json:"cycle_id"`
	SuccessRate          float64         `json:"success_rate"`
	Action               MutationAction  `json:"action"`
	TrustThreshold       ThresholdChange `json:"trust_threshold"`
	SuppressionThreshold ThresholdChange `json:"suppression_threshold"`
	DriftDelta           ThresholdChange `json:"drift_delta"`
	Timestamp            time.Time       `json:"timestamp,omitempty"`
}

// Reflection is the per-cycle self-report audit record.
type Reflection struct {
	RunID            string    `json:"run_id"`
	Text             string    `json:"reflection"`
	ConstraintScore  int       `json:"constraint_score"`
	Grounded         bool      `json:"grounded"`
	Recursive        bool      `json:"recursive"`
	PerformativeFlag bool      `json:"performative_flag"`
	Contradiction    bool      `json:"contradiction"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
}

// CycleStatistics summarizes one cycle's execution outcomes.
type CycleStatistics struct {
	TasksExecuted int     `json:"tasks_executed"`
	Successes     int     `json:"successes"`
	Failures      int     `json:"failures"`
	AvgLatency    float64 `json:"avg_latency"`
}

// CycleResult is the caller-visible outcome of one governance cycle.
type CycleResult struct {
	RunID        string             `json:"run_id"`
	Assignments  []Assignment       `json:"assignments"`
	Results      []ExecutionResult  `json:"results"`
	TrustUpdates map[string]float64 `json:"trust_updates"`
	Reflection   Reflection         `json:"reflection"`
	Thresholds   Thresholds         `json:"thresholds"`
	Statistics   CycleStatistics    `json:"statistics"`
}

// SystemStatistics is the aggregate view over the persistent store.
type SystemStatistics struct {
	TotalExecutions  int     `json:"total_executions"`
	SuccessRate      float64 `json:"success_rate"`
	SuppressedAgents int     `json:"suppressed_agents"`
	ValidReflections int     `json:"valid_reflections"`
}

// AgentSnapshot is the combined in-memory and persisted view of one agent,
// used for monitoring endpoints.
type AgentSnapshot struct {
	AgentID             string              `json:"agent_id"`
	TrustHistory        []float64           `json:"trust_history"`
	IsSuppressed        bool                `json:"is_suppressed"`
	SuppressionCycles   int                 `json:"suppression_cycles"`
	IsDrifting          bool                `json:"is_drifting"`
	RedemptionRemaining int                 `json:"redemption_remaining"`
	PersistedHistory    []TrustHistoryEntry `json:"trust_history_db,omitempty"`
}
