// Package app provides application initialization and dependency wiring.
//
// App is the container that initializes Genkit, the chunk store, the session
// store, and the chat agent with all necessary dependencies.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teamcheckmate/chaekcheck/internal/chat"
	"github.com/teamcheckmate/chaekcheck/internal/config"
	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool // nil in dev mode (in-memory store)
	Knowledge knowledge.Store
	Sessions  *session.Store
	Agent     *chat.Agent

	otelCleanup func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	slog.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		slog.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
