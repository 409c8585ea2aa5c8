// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"

redis:
  addr: "localhost:6379"
  db: 2

database:
  path: "./transcript.db"

agent:
  endpoint: "http://localhost:9000/agent"
  timeout: "90s"

outbound:
  endpoint: "http://localhost:9001/send"
  max_chunk: 500
  operator_number: "5511900000000"

debounce:
  quantum: "5s"
  stall_limit: 3

ttl:
  buffer: "300s"
  cooldown: "15m"
  session_building: "40m"
  session_sent: "15m"
  history_marker: "2h"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "localhost:6379")
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("Redis.DB = %d, want 2", cfg.Redis.DB)
	}
	if cfg.Database.Path != "./transcript.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./transcript.db")
	}
	if cfg.Agent.Timeout != 90*time.Second {
		t.Errorf("Agent.Timeout = %v, want 90s", cfg.Agent.Timeout)
	}
	if cfg.Debounce.Quantum != 5*time.Second {
		t.Errorf("Debounce.Quantum = %v, want 5s", cfg.Debounce.Quantum)
	}
	if cfg.Debounce.StallLimit != 3 {
		t.Errorf("Debounce.StallLimit = %d, want 3", cfg.Debounce.StallLimit)
	}
	if cfg.TTL.SessionBuilding != 40*time.Minute {
		t.Errorf("TTL.SessionBuilding = %v, want 40m", cfg.TTL.SessionBuilding)
	}
	if cfg.TTL.HistoryMarker != 2*time.Hour {
		t.Errorf("TTL.HistoryMarker = %v, want 2h", cfg.TTL.HistoryMarker)
	}
	if cfg.Outbound.OperatorNumber != "5511900000000" {
		t.Errorf("Outbound.OperatorNumber = %q, want %q", cfg.Outbound.OperatorNumber, "5511900000000")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "sekrit")

	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
redis:
  addr: "localhost:6379"
  password: "${TEST_REDIS_PASSWORD}"
agent:
  endpoint: "http://localhost:9000/agent"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.Password != "sekrit" {
		t.Errorf("Redis.Password = %q, want expanded env value", cfg.Redis.Password)
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
redis:
  password: "${DEFINITELY_NOT_SET_ANYWHERE}"
agent:
  endpoint: "http://localhost:9000/agent"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Redis.Password != "" {
		t.Errorf("Redis.Password = %q, want empty", cfg.Redis.Password)
	}
}

func TestLoad_MissingHTTPAddr(t *testing.T) {
	configPath := writeConfig(t, `
agent:
  endpoint: "http://localhost:9000/agent"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "http_addr") {
		t.Errorf("Load() error = %v, want http_addr validation failure", err)
	}
}

func TestLoad_MissingAgentEndpoint(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "agent.endpoint") {
		t.Errorf("Load() error = %v, want agent.endpoint validation failure", err)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: ":8080"
agent:
  endpoint: "http://localhost:9000/agent"
debounce:
  quantum: "five seconds"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "quantum") {
		t.Errorf("Load() error = %v, want quantum parse failure", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}
