package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/watchfolio/internal/config"
	"github.com/aristath/watchfolio/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. holdings.db - owner portfolios, the source of every rotation
	holdingsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "holdings.db"),
		Profile: database.ProfileStandard,
		Name:    "holdings",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize holdings database: %w", err)
	}
	container.HoldingsDB = holdingsDB

	// 2. cache.db - provider responses that are safe to lose
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		holdingsDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{holdingsDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			holdingsDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized and schemas applied")

	return container, nil
}
