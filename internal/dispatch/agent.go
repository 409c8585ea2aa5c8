// ABOUTME: HTTP client for the downstream agent that turns a composed batch into a reply
// ABOUTME: The call is synchronous and possibly slow; the debounce worker blocks on it

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout caps how long one agent invocation may take.
const DefaultTimeout = 2 * time.Minute

// agentRequest is the JSON body for POST {endpoint}.
type agentRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// agentResponse is the agent's JSON reply.
type agentResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// AgentClient invokes the agent endpoint over HTTP. It satisfies the
// debounce coordinator's Dispatcher interface.
type AgentClient struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewAgentClient creates a client for the given endpoint. A timeout <= 0
// falls back to DefaultTimeout. Pass nil logger for default.
func NewAgentClient(endpoint string, timeout time.Duration, logger *slog.Logger) *AgentClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "dispatch"),
	}
}

// Dispatch sends the composed batch and returns the agent's reply text.
func (a *AgentClient) Dispatch(ctx context.Context, conversation, text string) (string, error) {
	body, err := json.Marshal(agentRequest{
		ConversationID: conversation,
		Text:           text,
	})
	if err != nil {
		return "", fmt.Errorf("encoding agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("agent returned %d: %s", resp.StatusCode, snippet)
	}

	var out agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding agent response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("agent error: %s", out.Error)
	}

	a.logger.Debug("agent dispatch complete",
		"conversation", conversation,
		"duration", time.Since(start))
	return out.Reply, nil
}
