// ABOUTME: HTTP surface for inbound webhook events and health checks
// ABOUTME: The webhook always answers promptly; degraded stores never surface as 5xx

package ingress

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// WebhookRequest is the JSON request body for POST /webhook.
type WebhookRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	Operator       bool   `json:"operator,omitempty"`
}

// WebhookResponse is the JSON response for POST /webhook.
type WebhookResponse struct {
	Status string `json:"status"`
}

// Server exposes the ingress service over HTTP.
type Server struct {
	service *Service
	addr    string
	version string
	logger  *slog.Logger
}

// NewServer creates the HTTP server. Pass nil logger for default.
func NewServer(service *Service, addr, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: service,
		addr:    addr,
		version: version,
		logger:  logger.With("component", "http"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully. In-flight
// debounce workers are not waited for; they are abandoned by design.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return mux
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result := s.service.HandleInbound(r.Context(), req.ConversationID, req.Text, req.Operator)
	writeJSON(w, http.StatusOK, WebhookResponse{Status: string(result)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"version": s.version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
