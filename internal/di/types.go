// Package di wires the application's dependencies into a single Container.
package di

import (
	"context"

	"github.com/aristath/watchfolio/internal/clientdata"
	"github.com/aristath/watchfolio/internal/database"
	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/events"
	"github.com/aristath/watchfolio/internal/modules/holdings"
	"github.com/aristath/watchfolio/internal/modules/rotation"
	"github.com/aristath/watchfolio/internal/ratelimit"
	"github.com/aristath/watchfolio/internal/reliability"
	"github.com/aristath/watchfolio/internal/scheduler"
)

// Container holds all application dependencies. It is the single source of
// truth for service instances and is handed to the HTTP server.
type Container struct {
	// Databases
	HoldingsDB *database.DB // holdings.db - owner portfolios
	CacheDB    *database.DB // cache.db - instrument profile cache

	// Repositories
	HoldingsRepo   *holdings.Repository
	ClientDataRepo *clientdata.Repository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Market data
	QuoteProvider domain.QuoteProvider
	Limiter       *ratelimit.Limiter
	ProfileCache  *clientdata.ProfileCache
	SymbolCache   *clientdata.SymbolCache

	// Services
	HoldingsService *holdings.Service
	RotationManager *rotation.Manager

	// Jobs
	Scheduler      *scheduler.Scheduler
	CleanupJob     *clientdata.CleanupJob
	MaintenanceJob *reliability.MaintenanceJob
	Jobs           map[string]scheduler.Job // by name, for manual runs

	// cancel stops every refresh session started from the container
	cancel context.CancelFunc
}

// Close stops all sessions and closes the databases. Stop the scheduler and
// the HTTP server first.
func (c *Container) Close() error {
	if c.RotationManager != nil {
		c.RotationManager.StopAll()
	}
	if c.cancel != nil {
		c.cancel()
	}

	var firstErr error
	for _, db := range []*database.DB{c.HoldingsDB, c.CacheDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
