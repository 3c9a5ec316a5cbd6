package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/domain"
	"github.com/ErikG1776/syntropiq/policy"
)

// TaskSubmitRequest is a batch of tasks to run through one governance cycle.
type TaskSubmitRequest struct {
	RunID string        `json:"run_id,omitempty"`
	Tasks []domain.Task `json:"tasks"`
}

// SubmitTasks admits a batch of tasks through the policy engine and runs
// one full governance cycle over the current agent pool.
// POST /v1/tasks/submit
func (h *Handler) SubmitTasks(c echo.Context) error {
	ctx := c.Request().Context()

	var req TaskSubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Tasks) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tasks must not be empty"})
	}
	for _, task := range req.Tasks {
		if task.ID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "every task needs an id"})
		}
	}

	// Admission control before anything reaches the kernel.
	for i := range req.Tasks {
		task := &req.Tasks[i]
		decision, err := h.policy.Evaluate(ctx, map[string]interface{}{
			"task_id": task.ID,
			"impact":  task.Impact,
			"urgency": task.Urgency,
			"risk":    task.Risk,
		})
		if err != nil {
			h.logger.Error("policy evaluation failed", zap.String("task_id", task.ID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "policy evaluation failed"})
		}
		switch decision {
		case policy.DecisionBlock:
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":   "task blocked by admission policy",
				"task_id": task.ID,
			})
		case policy.DecisionReview:
			if task.Metadata == nil {
				task.Metadata = make(map[string]string)
			}
			task.Metadata["policy"] = policy.DecisionReview
		}
	}

	result, err := h.loop.ExecuteCycle(ctx, req.Tasks, h.registry.AgentsDict(""), h.exec, req.RunID)
	if err != nil {
		return h.cycleError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// cycleError maps kernel errors onto HTTP statuses: pool problems are
// service-level outages, a single unroutable task is a conflict.
func (h *Handler) cycleError(c echo.Context, err error) error {
	var noEligible *domain.NoEligibleAgentError
	switch {
	case errors.Is(err, domain.ErrNoAgents):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no agents registered"})
	case errors.Is(err, domain.ErrCircuitBreaker):
		h.logger.Warn("circuit breaker rejected cycle", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error":           "no trusted agents available",
			"circuit_breaker": true,
		})
	case errors.As(err, &noEligible):
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   noEligible.Error(),
			"task_id": noEligible.TaskID,
		})
	default:
		h.logger.Error("governance cycle failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "governance cycle failed"})
	}
}
