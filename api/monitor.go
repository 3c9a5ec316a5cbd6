package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func limitParam(c echo.Context, fallback int) int {
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			return limit
		}
	}
	return fallback
}

// GetStatistics returns the aggregate system view: durable execution
// statistics, the live agent pool, current thresholds, and the recent
// performance trend.
// GET /v1/statistics
func (h *Handler) GetStatistics(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.store.GetStatistics(ctx)
	if err != nil {
		h.logger.Error("failed to load statistics", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load statistics"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"system":     stats,
		"agents":     h.registry.Stats(),
		"thresholds": h.loop.TrustEngine().Thresholds(),
		"trend":      h.loop.Mutation().Trend(),
	})
}

// GetThresholds returns the current governance threshold triple.
// GET /v1/thresholds
func (h *Handler) GetThresholds(c echo.Context) error {
	return c.JSON(http.StatusOK, h.loop.TrustEngine().Thresholds())
}

// GetReflections returns recent cycle reflections, newest first.
// GET /v1/reflections?limit=10
func (h *Handler) GetReflections(c echo.Context) error {
	ctx := c.Request().Context()

	reflections, err := h.store.GetRecentReflections(ctx, limitParam(c, 10))
	if err != nil {
		h.logger.Error("failed to load reflections", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load reflections"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"reflections": reflections})
}

// GetMutations returns the recent threshold mutation log, newest first.
// GET /v1/mutations?limit=20
func (h *Handler) GetMutations(c echo.Context) error {
	ctx := c.Request().Context()

	history, err := h.loop.Mutation().History(ctx, limitParam(c, 20))
	if err != nil {
		h.logger.Error("failed to load mutation history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load mutation history"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"mutations": history})
}
