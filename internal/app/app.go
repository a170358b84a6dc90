// Package app provides application initialization and shutdown.
//
// App is the container that wires configuration, the Genkit provider
// plugin, the vector store, and the question-answering workflow together.
// Setup constructs everything once at process start; nothing lives in
// package-level state.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coderTtxi12/model-rag/internal/config"
	"github.com/coderTtxi12/model-rag/internal/rag"
	"github.com/coderTtxi12/model-rag/internal/store"
)

// Mode selects how the vector store is opened.
type Mode int

const (
	// ModeServe opens the store for reading; multiple processes may
	// serve from the same index concurrently.
	ModeServe Mode = iota

	// ModeIngest opens the store exclusively for writing.
	ModeIngest
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Store    store.Store
	Workflow *rag.Workflow

	// Pool is non-nil only with the postgres driver; the HTTP readiness
	// probe pings it.
	Pool *pgxpool.Pool

	// cleanups run in reverse registration order on Close.
	cleanups []func()
}

// onClose registers a cleanup to run during Close.
func (a *App) onClose(f func()) {
	a.cleanups = append(a.cleanups, f)
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn("closing vector store", "error", err)
		}
		a.Store = nil
	}

	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil

	return nil
}
