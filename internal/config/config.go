// ABOUTME: Configuration loading and parsing for mercado-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete mercado-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Agent    AgentConfig    `yaml:"agent"`
	Outbound OutboundConfig `yaml:"outbound"`
	Debounce DebounceConfig `yaml:"debounce"`
	TTL      TTLConfig      `yaml:"ttl"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// RedisConfig holds the networked store configuration. An empty addr runs
// the gateway on the in-process store only (single process, no persistence).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds the transcript database path. Empty disables the
// transcript store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AgentConfig holds the downstream agent endpoint configuration
type AgentConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// OutboundConfig holds reply delivery configuration
type OutboundConfig struct {
	Endpoint string `yaml:"endpoint"`
	MaxChunk int    `yaml:"max_chunk"`
	// OperatorNumber is the human operator's own number, used to tell
	// takeover messages apart from internal chatter.
	OperatorNumber string `yaml:"operator_number"`
}

// DebounceConfig tunes burst coalescing
type DebounceConfig struct {
	Quantum    time.Duration `yaml:"-"`
	StallLimit int           `yaml:"stall_limit"`

	QuantumRaw string `yaml:"quantum"`
}

// TTLConfig holds the lifecycle windows for all conversation-scoped state
type TTLConfig struct {
	Buffer          time.Duration `yaml:"-"`
	Cooldown        time.Duration `yaml:"-"`
	SessionBuilding time.Duration `yaml:"-"`
	SessionSent     time.Duration `yaml:"-"`
	HistoryMarker   time.Duration `yaml:"-"`

	BufferRaw          string `yaml:"buffer"`
	CooldownRaw        string `yaml:"cooldown"`
	SessionBuildingRaw string `yaml:"session_building"`
	SessionSentRaw     string `yaml:"session_sent"`
	HistoryMarkerRaw   string `yaml:"history_marker"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Agent.Endpoint == "" {
		return fmt.Errorf("agent.endpoint is required")
	}
	if c.Debounce.StallLimit < 0 {
		return fmt.Errorf("debounce.stall_limit must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cfg.Agent.TimeoutRaw, "agent.timeout", &cfg.Agent.Timeout},
		{cfg.Debounce.QuantumRaw, "debounce.quantum", &cfg.Debounce.Quantum},
		{cfg.TTL.BufferRaw, "ttl.buffer", &cfg.TTL.Buffer},
		{cfg.TTL.CooldownRaw, "ttl.cooldown", &cfg.TTL.Cooldown},
		{cfg.TTL.SessionBuildingRaw, "ttl.session_building", &cfg.TTL.SessionBuilding},
		{cfg.TTL.SessionSentRaw, "ttl.session_sent", &cfg.TTL.SessionSent},
		{cfg.TTL.HistoryMarkerRaw, "ttl.history_marker", &cfg.TTL.HistoryMarker},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
