package holdings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/watchfolio/internal/domain"
	"github.com/aristath/watchfolio/internal/events"
	"github.com/rs/zerolog"
)

// Input is a create or update request. CostBasis defaults to
// Quantity*AvgCost when omitted.
type Input struct {
	Symbol      string   `json:"symbol"`
	Quantity    float64  `json:"quantity"`
	AvgCost     float64  `json:"avg_cost"`
	CostBasis   *float64 `json:"cost_basis,omitempty"`
	RealizedPnL float64  `json:"realized_pnl"`
}

// Validate normalizes and checks the input
func (in *Input) Validate() error {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if in.Symbol == "" {
		return errors.New("symbol is required")
	}
	if in.Quantity < 0 {
		return errors.New("quantity must not be negative")
	}
	if in.AvgCost < 0 {
		return errors.New("avg_cost must not be negative")
	}
	return nil
}

func (in Input) toHolding(ownerID string, key int64) domain.Holding {
	costBasis := in.Quantity * in.AvgCost
	if in.CostBasis != nil {
		costBasis = *in.CostBasis
	}
	return domain.Holding{
		Key:         key,
		OwnerID:     ownerID,
		Symbol:      in.Symbol,
		Quantity:    in.Quantity,
		AvgCost:     in.AvgCost,
		CostBasis:   costBasis,
		RealizedPnL: in.RealizedPnL,
	}
}

// Service wraps the repository, announces changes on the event bus and
// implements domain.HoldingsSource on top of those announcements.
type Service struct {
	repo   *Repository
	events *events.Manager
	log    zerolog.Logger
}

// NewService creates a new holdings service
func NewService(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: eventManager,
		log:    log.With().Str("service", "holdings").Logger(),
	}
}

// ErrInvalidInput wraps validation failures
var ErrInvalidInput = errors.New("invalid holding")

// List returns the owner's holdings
func (s *Service) List(ctx context.Context, ownerID string) ([]domain.Holding, error) {
	return s.repo.List(ctx, ownerID)
}

// Create adds a holding for owner
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*domain.Holding, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	h := in.toHolding(ownerID, 0)
	key, err := s.repo.Create(ctx, h)
	if err != nil {
		return nil, err
	}
	h.Key = key

	s.changed(ownerID, key, "created")
	return &h, nil
}

// Update replaces a holding's fields
func (s *Service) Update(ctx context.Context, ownerID string, key int64, in Input) (*domain.Holding, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	h := in.toHolding(ownerID, key)
	if err := s.repo.Update(ctx, h); err != nil {
		return nil, err
	}

	s.changed(ownerID, key, "updated")
	return &h, nil
}

// Delete removes a holding
func (s *Service) Delete(ctx context.Context, ownerID string, key int64) error {
	if err := s.repo.Delete(ctx, ownerID, key); err != nil {
		return err
	}

	s.changed(ownerID, key, "deleted")
	return nil
}

func (s *Service) changed(ownerID string, key int64, action string) {
	s.events.EmitTyped("holdings", &events.HoldingsChangedData{OwnerID: ownerID, Key: key, Action: action})
}

// Observe streams the owner's holdings: the current list first, then a fresh
// list after every change. Bursts of changes collapse into one re-query.
func (s *Service) Observe(ctx context.Context, ownerID string) (<-chan []domain.Holding, error) {
	// Subscribe before the first read so no change between them is missed.
	dirty := make(chan struct{}, 1)
	unsubscribe := s.events.Bus().Subscribe(events.HoldingsChanged, func(e *events.Event) {
		data, ok := e.Data.(*events.HoldingsChangedData)
		if !ok || data.OwnerID != ownerID {
			return
		}
		select {
		case dirty <- struct{}{}:
		default:
		}
	})

	initial, err := s.repo.List(ctx, ownerID)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	out := make(chan []domain.Holding, 1)
	out <- initial

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
			}

			holdings, err := s.repo.List(ctx, ownerID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Error().Err(err).Str("owner", ownerID).Msg("Failed to reload holdings")
				continue
			}

			// Replace an unread snapshot with the newer one.
			select {
			case out <- holdings:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- holdings:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
