// ABOUTME: Tests for the agent HTTP client
// ABOUTME: Uses httptest servers to validate the request shape and error paths

package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentClient_Dispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req agentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "5511988887777", req.ConversationID)
		assert.Equal(t, "rice | milk", req.Text)

		json.NewEncoder(w).Encode(agentResponse{Reply: "order noted"})
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, time.Second, nil)

	reply, err := c.Dispatch(context.Background(), "5511988887777", "rice | milk")
	require.NoError(t, err)
	assert.Equal(t, "order noted", reply)
}

func TestAgentClient_Dispatch_AgentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(agentResponse{Error: "model overloaded"})
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, time.Second, nil)

	_, err := c.Dispatch(context.Background(), "5511988887777", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestAgentClient_Dispatch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewAgentClient(srv.URL, time.Second, nil)

	_, err := c.Dispatch(context.Background(), "5511988887777", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestAgentClient_Dispatch_Unreachable(t *testing.T) {
	c := NewAgentClient("http://127.0.0.1:1/agent", 100*time.Millisecond, nil)

	_, err := c.Dispatch(context.Background(), "5511988887777", "hi")
	assert.Error(t, err)
}
