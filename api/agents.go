package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/domain"
)

// AgentRegisterRequest is the request to register an agent.
type AgentRegisterRequest struct {
	AgentID      string   `json:"agent_id"`
	TrustScore   *float64 `json:"trust_score,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// RegisterAgent registers a new agent, or rebinds an existing one with its
// persisted trust score.
// POST /v1/agents/register
func (h *Handler) RegisterAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req AgentRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.AgentID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
	}

	initialTrust := h.config.TrustThreshold
	if req.TrustScore != nil {
		initialTrust = *req.TrustScore
	}

	agent, err := h.registry.Register(ctx, req.AgentID, req.Capabilities, initialTrust, domain.StatusActive)
	if err != nil {
		var invalidTrust *domain.InvalidTrustError
		if errors.As(err, &invalidTrust) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": invalidTrust.Error()})
		}
		h.logger.Error("failed to register agent", zap.String("agent_id", req.AgentID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to register agent"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":    true,
		"agent": agent,
	})
}

// ListAgents lists registered agents, optionally filtered by status.
// GET /v1/agents?status=active
func (h *Handler) ListAgents(c echo.Context) error {
	status := domain.AgentStatus(c.QueryParam("status"))

	agents := h.registry.List(status)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": agents,
		"stats":  h.registry.Stats(),
	})
}

// GetAgent returns one agent combined with its governance snapshot: trust
// history, suppression clock, and drift flag.
// GET /v1/agents/:agent_id
func (h *Handler) GetAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	agent := h.registry.Get(agentID)
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	snapshot, err := h.loop.AgentStatus(ctx, agentID)
	if err != nil {
		h.logger.Error("failed to load agent snapshot", zap.String("agent_id", agentID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load agent status"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"agent":      agent,
		"governance": snapshot,
	})
}

// AgentStatusRequest is the request to update an agent's lifecycle status.
type AgentStatusRequest struct {
	Status domain.AgentStatus `json:"status"`
}

// UpdateAgentStatus updates an agent's lifecycle status.
// PUT /v1/agents/:agent_id/status
func (h *Handler) UpdateAgentStatus(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	var req AgentStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	switch req.Status {
	case domain.StatusActive, domain.StatusProbation, domain.StatusSuppressed:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status must be active, probation, or suppressed"})
	}

	if err := h.registry.UpdateStatus(ctx, agentID, req.Status); err != nil {
		if errors.Is(err, domain.ErrNoAgents) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
		}
		h.logger.Error("failed to update agent status", zap.String("agent_id", agentID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update agent status"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

// AgentResetRequest is the request to reset a suppressed agent.
type AgentResetRequest struct {
	TrustScore *float64 `json:"trust_score,omitempty"`
}

// ResetAgent is the operator recovery hook: it clears the agent's
// suppression and drift state and optionally restores its trust score.
// POST /v1/agents/:agent_id/reset
func (h *Handler) ResetAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	agent := h.registry.Get(agentID)
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	var req AgentResetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.TrustScore != nil {
		if *req.TrustScore < 0.0 || *req.TrustScore > 1.0 {
			invalidTrust := &domain.InvalidTrustError{AgentID: agentID, Score: *req.TrustScore}
			return c.JSON(http.StatusBadRequest, map[string]string{"error": invalidTrust.Error()})
		}
		agent.TrustScore = *req.TrustScore
		if err := h.store.UpdateTrustScores(ctx, map[string]float64{agentID: agent.TrustScore}, "operator_reset"); err != nil {
			h.logger.Error("failed to persist reset trust", zap.String("agent_id", agentID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to reset agent"})
		}
	}

	h.loop.TrustEngine().ResetAgent(agentID)
	if err := h.store.UpdateSuppressionState(ctx, agentID, false, 0); err != nil {
		h.logger.Error("failed to clear suppression state", zap.String("agent_id", agentID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to reset agent"})
	}
	if err := h.registry.UpdateStatus(ctx, agentID, domain.StatusActive); err != nil {
		h.logger.Error("failed to restore agent status", zap.String("agent_id", agentID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to reset agent"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":    true,
		"agent": agent,
	})
}
