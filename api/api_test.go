package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ErikG1776/syntropiq/config"
	"github.com/ErikG1776/syntropiq/domain"
	"github.com/ErikG1776/syntropiq/executor"
	"github.com/ErikG1776/syntropiq/governance"
	"github.com/ErikG1776/syntropiq/policy"
	"github.com/ErikG1776/syntropiq/registry"
	"github.com/ErikG1776/syntropiq/tests/helpers"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		TrustThreshold:       0.7,
		SuppressionThreshold: 0.75,
		DriftDelta:           0.1,
		MaxRedemptionCycles:  4,
		ProbationQuota:       2,
		RoutingMode:          config.RoutingDeterministic,
	}
	s := helpers.NewTestSQLiteStore(t)
	reg := registry.New(s, nil)

	trust := governance.NewTrustEngine(governance.TrustEngineParams{
		Thresholds: domain.Thresholds{
			Trust:       cfg.TrustThreshold,
			Suppression: cfg.SuppressionThreshold,
			DriftDelta:  cfg.DriftDelta,
		},
		MaxRedemptionCycles: cfg.MaxRedemptionCycles,
		ProbationQuota:      cfg.ProbationQuota,
		Mode:                cfg.RoutingMode,
		StatusSink:          reg,
	})
	mutation, err := governance.NewMutationEngine(ctx, governance.MutationEngineParams{
		Initial: trust.Thresholds(),
		Store:   s,
	})
	if err != nil {
		t.Fatalf("NewMutationEngine failed: %v", err)
	}
	loop := governance.NewGovernanceLoop(governance.LoopParams{
		Store:       s,
		TrustEngine: trust,
		Mutation:    mutation,
	})

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	return NewHandler(s, reg, loop, executor.NewDeterministic(0.0), policyEngine, cfg, nil)
}

func doJSON(t *testing.T, h func(echo.Context) error, method, path, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func registerAgent(t *testing.T, h *Handler, agentID string, trust float64) {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{"agent_id": agentID, "trust_score": trust})
	rec := doJSON(t, h.RegisterAgent, http.MethodPost, "/v1/agents/register", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: expected 200, got %d: %s", agentID, rec.Code, rec.Body.String())
	}
}

func TestRegisterAgentValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.RegisterAgent, http.MethodPost, "/v1/agents/register", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing agent_id, got %d", rec.Code)
	}

	rec = doJSON(t, h.RegisterAgent, http.MethodPost, "/v1/agents/register", `{"agent_id":"a1","trust_score":1.5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid trust, got %d", rec.Code)
	}
}

func TestRegisterAndGetAgent(t *testing.T) {
	h := newTestHandler(t)
	registerAgent(t, h, "a1", 0.9)

	rec := doJSON(t, h.GetAgent, http.MethodGet, "/v1/agents/a1", "", "agent_id", "a1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Agent domain.Agent `json:"agent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Agent.ID != "a1" || resp.Agent.TrustScore != 0.9 {
		t.Fatalf("unexpected agent: %+v", resp.Agent)
	}

	rec = doJSON(t, h.GetAgent, http.MethodGet, "/v1/agents/ghost", "", "agent_id", "ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateAgentStatus(t *testing.T) {
	h := newTestHandler(t)
	registerAgent(t, h, "a1", 0.9)

	rec := doJSON(t, h.UpdateAgentStatus, http.MethodPut, "/v1/agents/a1/status", `{"status":"probation"}`, "agent_id", "a1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := h.registry.Get("a1").Status; got != domain.StatusProbation {
		t.Fatalf("expected probation, got %s", got)
	}

	rec = doJSON(t, h.UpdateAgentStatus, http.MethodPut, "/v1/agents/a1/status", `{"status":"nonsense"}`, "agent_id", "a1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, h.UpdateAgentStatus, http.MethodPut, "/v1/agents/ghost/status", `{"status":"active"}`, "agent_id", "ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitTasksValidation(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", `{"tasks":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}

	rec = doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", `{"tasks":[{"impact":0.5,"urgency":0.5,"risk":0.5}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing task id, got %d", rec.Code)
	}
}

func TestSubmitTasksBlockedByPolicy(t *testing.T) {
	h := newTestHandler(t)
	registerAgent(t, h, "a1", 0.9)

	body := `{"tasks":[{"id":"t1","impact":2.0,"urgency":0.5,"risk":0.5}]}`
	rec := doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitTasksNoAgents(t *testing.T) {
	h := newTestHandler(t)

	body := `{"tasks":[{"id":"t1","impact":0.5,"urgency":0.5,"risk":0.5}]}`
	rec := doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitTasksNoEligibleAgent(t *testing.T) {
	h := newTestHandler(t)
	registerAgent(t, h, "shaky", 0.72)

	body := `{"tasks":[{"id":"hot","impact":0.5,"urgency":0.5,"risk":0.85}]}`
	rec := doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["task_id"] != "hot" {
		t.Fatalf("expected task_id hot, got %v", resp["task_id"])
	}
}

func TestSubmitTasksRunsFullCycle(t *testing.T) {
	h := newTestHandler(t)
	registerAgent(t, h, "a1", 0.9)

	body := `{"run_id":"run_1","tasks":[{"id":"t1","impact":0.5,"urgency":0.5,"risk":0.2}]}`
	rec := doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.CycleResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode cycle result: %v", err)
	}
	if result.RunID != "run_1" {
		t.Fatalf("expected run_1, got %s", result.RunID)
	}
	if result.Statistics.TasksExecuted != 1 || result.Statistics.Successes != 1 {
		t.Fatalf("unexpected statistics: %+v", result.Statistics)
	}
	if result.TrustUpdates["a1"] != 0.92 {
		t.Fatalf("expected trust 0.92, got %v", result.TrustUpdates["a1"])
	}

	// The cycle landed in the store.
	stats, err := h.store.GetStatistics(context.Background())
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.TotalExecutions != 1 {
		t.Fatalf("expected 1 execution, got %d", stats.TotalExecutions)
	}
}

func TestResetAgentClearsSuppression(t *testing.T) {
	h := newTestHandler(t)
	registerAgent(t, h, "shaky", 0.5)

	// One cycle puts the low-trust agent on probation.
	body := `{"tasks":[{"id":"t1","impact":0.5,"urgency":0.5,"risk":0.2}]}`
	rec := doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if suppressed, _ := h.loop.TrustEngine().SuppressionCycles("shaky"); !suppressed {
		t.Fatal("expected agent to be suppressed")
	}

	rec = doJSON(t, h.ResetAgent, http.MethodPost, "/v1/agents/shaky/reset", `{"trust_score":0.8}`, "agent_id", "shaky")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if suppressed, _ := h.loop.TrustEngine().SuppressionCycles("shaky"); suppressed {
		t.Fatal("expected suppression cleared")
	}
	agent := h.registry.Get("shaky")
	if agent.TrustScore != 0.8 || agent.Status != domain.StatusActive {
		t.Fatalf("unexpected agent after reset: %+v", agent)
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	h := newTestHandler(t)
	registerAgent(t, h, "a1", 0.9)

	body := `{"run_id":"run_1","tasks":[{"id":"t1","impact":0.5,"urgency":0.5,"risk":0.2}]}`
	rec := doJSON(t, h.SubmitTasks, http.MethodPost, "/v1/tasks/submit", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h.GetStatistics, http.MethodGet, "/v1/statistics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("statistics: expected 200, got %d", rec.Code)
	}
	var stats map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode statistics: %v", err)
	}
	for _, key := range []string{"system", "agents", "thresholds", "trend"} {
		if _, ok := stats[key]; !ok {
			t.Fatalf("statistics response missing %q", key)
		}
	}

	rec = doJSON(t, h.GetThresholds, http.MethodGet, "/v1/thresholds", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("thresholds: expected 200, got %d", rec.Code)
	}
	var thresholds domain.Thresholds
	if err := json.Unmarshal(rec.Body.Bytes(), &thresholds); err != nil {
		t.Fatalf("failed to decode thresholds: %v", err)
	}
	if thresholds.Suppression < thresholds.Trust {
		t.Fatalf("threshold band violated: %+v", thresholds)
	}

	rec = doJSON(t, h.GetReflections, http.MethodGet, "/v1/reflections?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reflections: expected 200, got %d", rec.Code)
	}
	var reflections struct {
		Reflections []domain.Reflection `json:"reflections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reflections); err != nil {
		t.Fatalf("failed to decode reflections: %v", err)
	}
	if len(reflections.Reflections) != 1 || reflections.Reflections[0].RunID != "run_1" {
		t.Fatalf("unexpected reflections: %+v", reflections.Reflections)
	}

	rec = doJSON(t, h.GetMutations, http.MethodGet, "/v1/mutations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("mutations: expected 200, got %d", rec.Code)
	}
	var mutations struct {
		Mutations []domain.MutationRecord `json:"mutations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &mutations); err != nil {
		t.Fatalf("failed to decode mutations: %v", err)
	}
	if len(mutations.Mutations) != 1 {
		t.Fatalf("expected 1 mutation record, got %d", len(mutations.Mutations))
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h.Health, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
