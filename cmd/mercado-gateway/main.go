// ABOUTME: Entry point for the mercado-gateway conversation server
// ABOUTME: Wires the store, debounce coordinator, and webhook surface together

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/caravela-labs/mercado-gateway/internal/buffer"
	"github.com/caravela-labs/mercado-gateway/internal/config"
	"github.com/caravela-labs/mercado-gateway/internal/cooldown"
	"github.com/caravela-labs/mercado-gateway/internal/debounce"
	"github.com/caravela-labs/mercado-gateway/internal/dispatch"
	"github.com/caravela-labs/mercado-gateway/internal/ingress"
	"github.com/caravela-labs/mercado-gateway/internal/kv"
	"github.com/caravela-labs/mercado-gateway/internal/outbound"
	"github.com/caravela-labs/mercado-gateway/internal/session"
	"github.com/caravela-labs/mercado-gateway/internal/transcript"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                    _
 _ __ ___   ___ _ __ ___ __ _  __| | ___
| '_ ' _ \ / _ \ '__/ __/ _' |/ _' |/ _ \
| | | | | |  __/ | | (_| (_| | (_| | (_) |
|_| |_| |_|\___|_|  \___\__,_|\__,_|\___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: MERCADO_CONFIG env var > XDG_CONFIG_HOME/mercado/gateway.yaml > ~/.config/mercado/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MERCADO_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mercado", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mercado-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server")
		fmt.Println("  health    Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	if cfg.Redis.Addr != "" {
		fmt.Printf("Store:   redis (%s)\n", cfg.Redis.Addr)
	} else {
		fmt.Printf("Store:   in-process\n")
	}
	green.Print("    ▶ ")
	fmt.Printf("Agent:   %s\n", cfg.Agent.Endpoint)

	fmt.Println()

	logger.Info("starting mercado-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Conversation state store. With no Redis configured the gateway runs
	// on the in-process store alone; with Redis, the in-process store is
	// the degraded-mode fallback.
	memory := kv.NewMemoryStore()
	var store kv.Store = memory
	if cfg.Redis.Addr != "" {
		redis := kv.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redis.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup, continuing degraded", "error", err)
		}
		store = kv.NewFailover(redis, memory, logger)
	}
	defer store.Close()

	// Transcript store is optional
	var transcripts *transcript.Store
	if cfg.Database.Path != "" {
		transcripts, err = transcript.NewStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening transcript database: %w", err)
		}
		defer transcripts.Close()
	}
	var ingressRecorder ingress.Recorder
	var outboundRecorder outbound.Recorder
	if transcripts != nil {
		ingressRecorder = transcripts
		outboundRecorder = transcripts
	}

	buf := buffer.New(store, cfg.TTL.Buffer, logger)
	cooldowns := cooldown.New(store, logger)
	sessions := session.New(store, session.Config{
		BuildTTL:   cfg.TTL.SessionBuilding,
		ModifyTTL:  cfg.TTL.SessionSent,
		HistoryTTL: cfg.TTL.HistoryMarker,
	}, logger)

	agent := dispatch.NewAgentClient(cfg.Agent.Endpoint, cfg.Agent.Timeout, logger)
	sender := outbound.NewSender(cfg.Outbound.Endpoint, cfg.Outbound.MaxChunk, outboundRecorder, logger)

	coordinator := debounce.New(buf, sessions, agent, sender, debounce.Config{
		Quantum:    cfg.Debounce.Quantum,
		StallLimit: cfg.Debounce.StallLimit,
	}, logger)

	service := ingress.New(buf, cooldowns, coordinator, ingressRecorder, ingress.Config{
		CooldownTTL:    cfg.TTL.Cooldown,
		OperatorNumber: cfg.Outbound.OperatorNumber,
	}, logger)

	server := ingress.NewServer(service, cfg.Server.HTTPAddr, version, logger)
	return server.Run(ctx)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
