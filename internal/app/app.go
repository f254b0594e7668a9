// Package app wires the process-level dependencies: data directory,
// single-instance lock, and the database handle. Everything is constructed
// once at startup and torn down on shutdown; nothing is reached through
// ambient globals.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/arlo/taskmill/internal/config"
	"github.com/arlo/taskmill/internal/db"
)

// App holds the application state and dependencies
type App struct {
	DB       *db.DB
	Config   *config.Config
	lockFile *flock.Flock
}

// New creates a new application instance
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	app := &App{Config: cfg}

	// SQLite supports one writer: refuse to start a second server instance
	// against the same data directory.
	if err := app.acquireLock(); err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		app.releaseLock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.DB = database

	return app, nil
}

// acquireLock acquires an exclusive file lock to prevent multiple instances
func (a *App) acquireLock() error {
	lockPath := filepath.Join(a.Config.DataDir, "taskmill.lock")
	a.lockFile = flock.New(lockPath)

	locked, err := a.lockFile.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another instance of taskmill is already running")
	}
	return nil
}

func (a *App) releaseLock() {
	if a.lockFile != nil {
		a.lockFile.Unlock()
	}
}

// Close releases the lock and closes the database.
func (a *App) Close() error {
	a.releaseLock()
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
