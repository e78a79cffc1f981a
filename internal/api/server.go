// Package api exposes the chat pipeline over HTTP as a small JSON API.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/teamcheckmate/chaekcheck/internal/chat"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Agent       *chat.Agent // Required
	CORSOrigins []string    // Allowed origins for CORS
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("chat agent is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{agent: cfg.Agent, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", ch.send)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probe stays outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /{$}", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
