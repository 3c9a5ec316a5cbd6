package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ErikG1776/syntropiq/domain"
)

// HTTP executes tasks by invoking remote agent services over HTTP. Each
// agent id maps to a base endpoint; tasks are POSTed to its /execute route
// and the agent reports success in the response body.
type HTTP struct {
	client    *http.Client
	endpoints map[string]string
}

// NewHTTP creates an HTTP executor with the given per-request timeout.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		client:    &http.Client{Timeout: timeout},
		endpoints: make(map[string]string),
	}
}

// RegisterEndpoint binds an agent id to its service base URL.
func (h *HTTP) RegisterEndpoint(agentID, endpoint string) {
	h.endpoints[agentID] = endpoint
}

type httpExecuteRequest struct {
	AgentID string      `json:"agent_id"`
	Task    domain.Task `json:"task"`
}

type httpExecuteResponse struct {
	Success  bool              `json:"success"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Execute POSTs the task to the agent's /execute endpoint. Transport and
// protocol failures are executor errors and abort the cycle; a task the
// agent could not complete comes back as a failed result.
func (h *HTTP) Execute(ctx context.Context, task domain.Task, agent *domain.Agent) (domain.ExecutionResult, error) {
	endpoint, ok := h.endpoints[agent.ID]
	if !ok {
		return domain.ExecutionResult{}, fmt.Errorf("no endpoint registered for agent %s", agent.ID)
	}

	body, err := json.Marshal(httpExecuteRequest{AgentID: agent.ID, Task: task})
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(endpoint, "/") + "/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Task-ID", task.ID)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("failed to invoke agent %s: %w", agent.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.ExecutionResult{}, fmt.Errorf("agent %s returned status %d: %s", agent.ID, resp.StatusCode, string(respBody))
	}

	var execResp httpExecuteResponse
	if err := json.NewDecoder(resp.Body).Decode(&execResp); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("failed to decode agent response: %w", err)
	}

	return domain.ExecutionResult{
		TaskID:   task.ID,
		AgentID:  agent.ID,
		Success:  execResp.Success,
		Latency:  time.Since(start).Seconds(),
		Metadata: execResp.Metadata,
	}, nil
}

// ValidateAgent reports whether an endpoint is registered for the agent.
func (h *HTTP) ValidateAgent(agent *domain.Agent) bool {
	if agent == nil {
		return false
	}
	_, ok := h.endpoints[agent.ID]
	return ok
}
