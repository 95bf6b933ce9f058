// Package webhook receives device event notifications over HTTP and wakes
// the control loop so a pressed input is acted on without waiting for the
// next polling tick.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lightingctl/internal/wake"
)

// Server is an HTTP server that receives device webhooks and raises the
// controller wake signal.
type Server struct {
	addr       string
	path       string
	signal     *wake.Signal
	httpServer *http.Server
}

// NewServer creates a new webhook server.
func NewServer(host string, port int, path string, signal *wake.Signal) *Server {
	return &Server{
		addr:   fmt.Sprintf("%s:%d", host, port),
		path:   path,
		signal: signal,
	}
}

// Run starts the webhook server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Str("path", s.path).Msg("Starting webhook server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Webhook server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Handler returns the HTTP handler, exposed separately for testing
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebhook)
	return mux
}

// webhookBody is the subset of a Shelly webhook payload we extract.
// Everything is optional; devices vary in what they send.
type webhookBody struct {
	Component string `json:"component"`
	Event     string `json:"event"`
	State     string `json:"state"`
}

// handleWebhook parses the notification and wakes the control loop
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		// Health probe
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("webhook receiver up\n"))
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read webhook request body")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Payload parsing is best effort: an unparseable body still wakes the
	// loop, it just carries no component detail.
	var parsed webhookBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			parsed = webhookBody{}
		}
	}

	eventID := uuid.NewString()

	log.Debug().
		Str("event_id", eventID).
		Str("component", parsed.Component).
		Str("event", parsed.Event).
		Int("body_len", len(body)).
		Msg("Received webhook request")

	s.signal.Notify(wake.Payload{
		ID:        eventID,
		Component: parsed.Component,
		Event:     parsed.Event,
		State:     parsed.State,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
