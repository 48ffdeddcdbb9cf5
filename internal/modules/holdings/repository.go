// Package holdings stores owner holdings and streams them to refresh loops.
package holdings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/watchfolio/internal/database"
	"github.com/aristath/watchfolio/internal/domain"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a holding does not exist for the owner
var ErrNotFound = errors.New("holding not found")

// Repository handles holdings persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new holdings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "holdings").Logger(),
	}
}

const holdingColumns = "id, owner_id, symbol, quantity, avg_cost, cost_basis, realized_pnl"

// List returns an owner's holdings in display order
func (r *Repository) List(ctx context.Context, ownerID string) ([]domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE owner_id = ? ORDER BY position, id",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	holdings := make([]domain.Holding, 0)
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// Get returns one holding of owner
func (r *Repository) Get(ctx context.Context, ownerID string, key int64) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE owner_id = ? AND id = ?",
		ownerID, key,
	)

	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Create inserts h at the end of the owner's list and returns its key
func (r *Repository) Create(ctx context.Context, h domain.Holding) (int64, error) {
	var key int64
	now := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var position int64
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position), -1) + 1 FROM holdings WHERE owner_id = ?", h.OwnerID,
		).Scan(&position); err != nil {
			return fmt.Errorf("failed to compute position: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (owner_id, symbol, quantity, avg_cost, cost_basis, realized_pnl, position, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.OwnerID, h.Symbol, h.Quantity, h.AvgCost, h.CostBasis, h.RealizedPnL, position, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert holding: %w", err)
		}

		key, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().Str("owner", h.OwnerID).Str("symbol", h.Symbol).Int64("key", key).Msg("Holding created")
	return key, nil
}

// Update overwrites the stored fields of h
func (r *Repository) Update(ctx context.Context, h domain.Holding) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE holdings
		SET symbol = ?, quantity = ?, avg_cost = ?, cost_basis = ?, realized_pnl = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`,
		h.Symbol, h.Quantity, h.AvgCost, h.CostBasis, h.RealizedPnL, time.Now().Unix(), h.OwnerID, h.Key,
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a holding
func (r *Repository) Delete(ctx context.Context, ownerID string, key int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM holdings WHERE owner_id = ? AND id = ?", ownerID, key)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s scanner) (domain.Holding, error) {
	var h domain.Holding
	err := s.Scan(&h.Key, &h.OwnerID, &h.Symbol, &h.Quantity, &h.AvgCost, &h.CostBasis, &h.RealizedPnL)
	if errors.Is(err, sql.ErrNoRows) {
		return h, err
	}
	if err != nil {
		return h, fmt.Errorf("failed to scan holding: %w", err)
	}
	return h, nil
}
