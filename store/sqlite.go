package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ErikG1776/syntropiq/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-writer access pattern; WAL keeps readers unblocked.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			capabilities TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trust_scores (
			agent_id TEXT PRIMARY KEY,
			trust_score REAL NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trust_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			trust_score REAL NOT NULL,
			delta REAL,
			reason TEXT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trust_history_agent ON trust_history(agent_id, id)`,
		`CREATE TABLE IF NOT EXISTS suppression_state (
			agent_id TEXT PRIMARY KEY,
			is_suppressed INTEGER NOT NULL,
			redemption_cycle INTEGER NOT NULL DEFAULT 0,
			suppressed_since DATETIME,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS execution_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			success INTEGER NOT NULL,
			latency REAL,
			metadata TEXT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_results_agent ON execution_results(agent_id, id)`,
		`CREATE TABLE IF NOT EXISTS reflections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			reflection_text TEXT NOT NULL,
			constraint_score INTEGER NOT NULL,
			grounded INTEGER,
			recursive INTEGER,
			performative_flag INTEGER,
			contradiction INTEGER,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS mutation_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id TEXT NOT NULL,
			success_rate REAL NOT NULL,
			action TEXT NOT NULL,
			trust_old REAL NOT NULL,
			trust_new REAL NOT NULL,
			suppression_old REAL NOT NULL,
			suppression_new REAL NOT NULL,
			drift_old REAL NOT NULL,
			drift_new REAL NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RegisterAgent registers or updates an agent row.
func (s *SQLiteStore) RegisterAgent(ctx context.Context, agent *domain.Agent) error {
	caps, _ := json.Marshal(agent.Capabilities)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (agent_id, capabilities, status) VALUES (?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
			capabilities = excluded.capabilities,
			status = excluded.status`,
		agent.ID, string(caps), agent.Status)
	return err
}

// GetAgent retrieves an agent row with its current trust score.
func (s *SQLiteStore) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	var agent domain.Agent
	var caps sql.NullString
	var trust sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT a.agent_id, a.capabilities, a.status, t.trust_score
		 FROM agents a LEFT JOIN trust_scores t ON a.agent_id = t.agent_id
		 WHERE a.agent_id = ?`,
		agentID).Scan(&agent.ID, &caps, &agent.Status, &trust)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if caps.Valid {
		_ = json.Unmarshal([]byte(caps.String), &agent.Capabilities)
	}
	if trust.Valid {
		agent.TrustScore = trust.Float64
	}
	return &agent, nil
}

// ListAgents lists all agent rows joined with their current trust score.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.agent_id, a.capabilities, a.status, t.trust_score
		 FROM agents a LEFT JOIN trust_scores t ON a.agent_id = t.agent_id
		 ORDER BY a.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		var agent domain.Agent
		var caps sql.NullString
		var trust sql.NullFloat64
		if err := rows.Scan(&agent.ID, &caps, &agent.Status, &trust); err != nil {
			return nil, err
		}
		if caps.Valid {
			_ = json.Unmarshal([]byte(caps.String), &agent.Capabilities)
		}
		if trust.Valid {
			agent.TrustScore = trust.Float64
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// UpdateAgentStatus updates the durable status of an agent.
func (s *SQLiteStore) UpdateAgentStatus(ctx context.Context, agentID string, status domain.AgentStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET status = ? WHERE agent_id = ?`,
		status, agentID)
	return err
}

// GetTrustScores returns the current trust score for every agent.
func (s *SQLiteStore) GetTrustScores(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_id, trust_score FROM trust_scores`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var agentID string
		var score float64
		if err := rows.Scan(&agentID, &score); err != nil {
			return nil, err
		}
		scores[agentID] = score
	}
	return scores, rows.Err()
}

// UpdateTrustScores upserts current scores and appends history entries with
// the delta from the previous score, all in one transaction.
func (s *SQLiteStore) UpdateTrustScores(ctx context.Context, updates map[string]float64, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for agentID, newScore := range updates {
		var oldScore float64
		err := tx.QueryRowContext(ctx,
			`SELECT trust_score FROM trust_scores WHERE agent_id = ?`, agentID).Scan(&oldScore)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trust_scores (agent_id, trust_score, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(agent_id) DO UPDATE SET
				trust_score = excluded.trust_score,
				updated_at = excluded.updated_at`,
			agentID, newScore, now); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trust_history (agent_id, trust_score, delta, reason, timestamp) VALUES (?, ?, ?, ?, ?)`,
			agentID, newScore, newScore-oldScore, reason, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetTrustHistory returns the most recent trust history entries for an agent,
// newest first.
func (s *SQLiteStore) GetTrustHistory(ctx context.Context, agentID string, limit int) ([]domain.TrustHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, trust_score, delta, reason, timestamp
		 FROM trust_history WHERE agent_id = ? ORDER BY id DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.TrustHistoryEntry
	for rows.Next() {
		var e domain.TrustHistoryEntry
		var delta sql.NullFloat64
		var reason sql.NullString
		if err := rows.Scan(&e.AgentID, &e.TrustScore, &delta, &reason, &e.Timestamp); err != nil {
			return nil, err
		}
		if delta.Valid {
			e.Delta = delta.Float64
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetSuppressionStates returns the suppression state for every agent.
func (s *SQLiteStore) GetSuppressionStates(ctx context.Context) (map[string]domain.SuppressionState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, is_suppressed, redemption_cycle, suppressed_since FROM suppression_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]domain.SuppressionState)
	for rows.Next() {
		var st domain.SuppressionState
		var since sql.NullTime
		if err := rows.Scan(&st.AgentID, &st.IsSuppressed, &st.RedemptionCycle, &since); err != nil {
			return nil, err
		}
		if since.Valid {
			st.SuppressedSince = &since.Time
		}
		states[st.AgentID] = st
	}
	return states, rows.Err()
}

// UpdateSuppressionState upserts the suppression state for an agent. The
// suppressed_since timestamp is set when suppression begins and cleared on
// recovery.
func (s *SQLiteStore) UpdateSuppressionState(ctx context.Context, agentID string, suppressed bool, redemptionCycle int) error {
	var since interface{}
	if suppressed {
		since = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppression_state (agent_id, is_suppressed, redemption_cycle, suppressed_since, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
			is_suppressed = excluded.is_suppressed,
			redemption_cycle = excluded.redemption_cycle,
			suppressed_since = CASE
				WHEN excluded.is_suppressed = 1 AND is_suppressed = 0 THEN excluded.suppressed_since
				WHEN excluded.is_suppressed = 0 THEN NULL
				ELSE suppressed_since
			END,
			updated_at = excluded.updated_at`,
		agentID, suppressed, redemptionCycle, since, time.Now())
	return err
}

// RecordExecutionResults appends execution results in one transaction.
func (s *SQLiteStore) RecordExecutionResults(ctx context.Context, results []domain.ExecutionResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, r := range results {
		metadata, _ := json.Marshal(r.Metadata)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO execution_results (task_id, agent_id, success, latency, metadata, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.TaskID, r.AgentID, r.Success, r.Latency, string(metadata), now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordReflection appends a reflection record.
func (s *SQLiteStore) RecordReflection(ctx context.Context, reflection domain.Reflection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reflections (run_id, reflection_text, constraint_score, grounded, recursive, performative_flag, contradiction)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reflection.RunID, reflection.Text, reflection.ConstraintScore,
		reflection.Grounded, reflection.Recursive, reflection.PerformativeFlag, reflection.Contradiction)
	return err
}

// GetRecentReflections returns the most recent reflections, newest first.
func (s *SQLiteStore) GetRecentReflections(ctx context.Context, limit int) ([]domain.Reflection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, reflection_text, constraint_score, grounded, recursive, performative_flag, contradiction, timestamp
		 FROM reflections ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reflections []domain.Reflection
	for rows.Next() {
		var r domain.Reflection
		if err := rows.Scan(&r.RunID, &r.Text, &r.ConstraintScore, &r.Grounded,
			&r.Recursive, &r.PerformativeFlag, &r.Contradiction, &r.Timestamp); err != nil {
			return nil, err
		}
		reflections = append(reflections, r)
	}
	return reflections, rows.Err()
}

// RecordMutationEvent appends a threshold mutation record.
func (s *SQLiteStore) RecordMutationEvent(ctx context.Context, record domain.MutationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mutation_events (cycle_id, success_rate, action, trust_old, trust_new,
			suppression_old, suppression_new, drift_old, drift_new)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.CycleID, record.SuccessRate, record.Action,
		record.TrustThreshold.Old, record.TrustThreshold.New,
		record.SuppressionThreshold.Old, record.SuppressionThreshold.New,
		record.DriftDelta.Old, record.DriftDelta.New)
	return err
}

// GetMutationHistory returns the most recent mutation records, newest first.
func (s *SQLiteStore) GetMutationHistory(ctx context.Context, limit int) ([]domain.MutationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, success_rate, action, trust_old, trust_new,
			suppression_old, suppression_new, drift_old, drift_new, timestamp
		 FROM mutation_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.MutationRecord
	for rows.Next() {
		var r domain.MutationRecord
		if err := rows.Scan(&r.CycleID, &r.SuccessRate, &r.Action,
			&r.TrustThreshold.Old, &r.TrustThreshold.New,
			&r.SuppressionThreshold.Old, &r.SuppressionThreshold.New,
			&r.DriftDelta.Old, &r.DriftDelta.New, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetLatestThresholds returns the threshold triple from the most recent
// mutation record, or nil if no mutations have been recorded.
func (s *SQLiteStore) GetLatestThresholds(ctx context.Context) (*domain.Thresholds, error) {
	var t domain.Thresholds
	err := s.db.QueryRowContext(ctx,
		`SELECT trust_new, suppression_new, drift_new
		 FROM mutation_events ORDER BY id DESC LIMIT 1`).Scan(&t.Trust, &t.Suppression, &t.DriftDelta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetStatistics returns aggregate governance statistics.
func (s *SQLiteStore) GetStatistics(ctx context.Context) (*domain.SystemStatistics, error) {
	var stats domain.SystemStatistics

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM execution_results`).Scan(&stats.TotalExecutions); err != nil {
		return nil, err
	}

	var successRate sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT AVG(CAST(success AS REAL)) FROM execution_results`).Scan(&successRate); err != nil {
		return nil, err
	}
	if successRate.Valid {
		stats.SuccessRate = successRate.Float64
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suppression_state WHERE is_suppressed = 1`).Scan(&stats.SuppressedAgents); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reflections WHERE constraint_score >= 3`).Scan(&stats.ValidReflections); err != nil {
		return nil, err
	}

	return &stats, nil
}
