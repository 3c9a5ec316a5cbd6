// Package api provides the HTTP surface of the governance kernel.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/config"
	"github.com/ErikG1776/syntropiq/executor"
	"github.com/ErikG1776/syntropiq/governance"
	"github.com/ErikG1776/syntropiq/policy"
	"github.com/ErikG1776/syntropiq/registry"
	"github.com/ErikG1776/syntropiq/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store    store.Store
	registry *registry.AgentRegistry
	loop     *governance.GovernanceLoop
	exec     executor.Executor
	policy   *policy.Engine
	config   *config.Config
	logger   *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(s store.Store, reg *registry.AgentRegistry, loop *governance.GovernanceLoop, exec executor.Executor, policyEngine *policy.Engine, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    s,
		registry: reg,
		loop:     loop,
		exec:     exec,
		policy:   policyEngine,
		config:   cfg,
		logger:   logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Task submission
	e.POST("/v1/tasks/submit", h.SubmitTasks)

	// Agent registry API
	e.POST("/v1/agents/register", h.RegisterAgent)
	e.GET("/v1/agents", h.ListAgents)
	e.GET("/v1/agents/:agent_id", h.GetAgent)
	e.PUT("/v1/agents/:agent_id/status", h.UpdateAgentStatus)
	e.POST("/v1/agents/:agent_id/reset", h.ResetAgent)

	// Monitoring API
	e.GET("/v1/statistics", h.GetStatistics)
	e.GET("/v1/thresholds", h.GetThresholds)
	e.GET("/v1/reflections", h.GetReflections)
	e.GET("/v1/mutations", h.GetMutations)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
