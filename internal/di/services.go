package di

import (
	"context"
	"fmt"

	"github.com/aristath/watchfolio/internal/clientdata"
	"github.com/aristath/watchfolio/internal/clients/tradernet"
	"github.com/aristath/watchfolio/internal/clients/yahoo"
	"github.com/aristath/watchfolio/internal/config"
	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/events"
	"github.com/aristath/watchfolio/internal/modules/holdings"
	"github.com/aristath/watchfolio/internal/modules/rotation"
	"github.com/aristath/watchfolio/internal/ratelimit"
	"github.com/rs/zerolog"
)

// InitializeServices builds repositories, the event system, the shared
// limiter and the rotation manager on top of the databases.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.HoldingsRepo = holdings.NewRepository(container.HoldingsDB.Conn(), log)
	container.ClientDataRepo = clientdata.NewRepository(container.CacheDB.Conn())

	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// One limiter for the whole process: every screen shares the ceiling
	limiter, err := ratelimit.New(cfg.MaxCallsPerMinute, log)
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	container.Limiter = limiter

	container.ProfileCache = clientdata.NewProfileCache(container.ClientDataRepo, cfg.ProfileCacheTTL, log)
	container.SymbolCache = clientdata.NewSymbolCache(container.ClientDataRepo, clientdata.TTLSymbolResolution, log)

	provider, err := NewQuoteProvider(cfg, container.Limiter, container.SymbolCache, log)
	if err != nil {
		return err
	}
	container.QuoteProvider = provider
	container.HoldingsService = holdings.NewService(container.HoldingsRepo, container.EventManager, log)

	ctx, cancel := context.WithCancel(context.Background())
	container.cancel = cancel
	container.RotationManager = rotation.NewManager(ctx, rotation.Deps{
		Holdings:     container.HoldingsService,
		Provider:     container.QuoteProvider,
		Limiter:      container.Limiter,
		Profiles:     container.ProfileCache,
		Events:       container.EventManager,
		EmptyBackoff: cfg.EmptyBackoff,
		Log:          log,
	}, cfg.Screens...)

	log.Info().
		Str("provider", cfg.QuoteProvider).
		Int("max_calls_per_minute", cfg.MaxCallsPerMinute).
		Msg("Services initialized")

	return nil
}

// NewQuoteProvider selects the upstream market data client. Yahoo needs the
// limiter and symbol cache for ISIN lookups, which happen outside the caller's
// admitted slot.
func NewQuoteProvider(cfg *config.Config, limiter *ratelimit.Limiter, symbols *clientdata.SymbolCache, log zerolog.Logger) (domain.QuoteProvider, error) {
	switch cfg.QuoteProvider {
	case config.ProviderYahoo, "":
		var cache yahoo.SymbolCache
		if symbols != nil {
			cache = symbols
		}
		return yahoo.NewClient(limiter, cache, log), nil
	case config.ProviderTradernet:
		return tradernet.NewClient(cfg.TradernetAPIKey, cfg.TradernetAPISecret, cfg.TradernetBaseURL, log), nil
	default:
		return nil, fmt.Errorf("unknown quote provider %q", cfg.QuoteProvider)
	}
}
