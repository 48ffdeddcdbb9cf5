// Package clientdata provides persistent caching for provider responses that
// are not live market data. Entries are JSON blobs with an expiry so lookups
// can be cache-first with a stale fallback.
package clientdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Cache tables
const (
	TableInstrumentProfiles = "instrument_profiles" // keyed by symbol
	TableSymbolResolutions  = "symbol_resolutions"  // keyed by ISIN
)

// AllTables lists all cache tables for cleanup operations.
var AllTables = []string{
	TableInstrumentProfiles,
	TableSymbolResolutions,
}

var validTables = func() map[string]bool {
	m := make(map[string]bool, len(AllTables))
	for _, t := range AllTables {
		m[t] = true
	}
	return m
}()

// Repository provides cache operations for client data.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// validateTable guards table names, which are interpolated into SQL.
func validateTable(table string) error {
	if !validTables[table] {
		return fmt.Errorf("invalid table name: %s", table)
	}
	return nil
}

func keyColumn(table string) string {
	switch table {
	case TableInstrumentProfiles:
		return "symbol"
	case TableSymbolResolutions:
		return "isin"
	default:
		return "key"
	}
}

// Store upserts data with expiration = now + ttl.
func (r *Repository) Store(ctx context.Context, table, key string, data interface{}, ttl time.Duration) error {
	if err := validateTable(table); err != nil {
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s, data, expires_at) VALUES (?, ?, ?)",
		table, keyColumn(table),
	)
	if _, err := r.db.ExecContext(ctx, query, key, string(jsonData), r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store data in %s: %w", table, err)
	}

	return nil
}

// GetIfFresh returns data only if it has not expired; nil, nil otherwise.
func (r *Repository) GetIfFresh(ctx context.Context, table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ? AND expires_at > ?", table, keyColumn(table))
	return r.scan(ctx, table, query, key, r.now().Unix())
}

// Get returns data regardless of expiration; nil, nil if the key is unknown.
func (r *Repository) Get(ctx context.Context, table, key string) (json.RawMessage, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", table, keyColumn(table))
	return r.scan(ctx, table, query, key)
}

func (r *Repository) scan(ctx context.Context, table, query string, args ...interface{}) (json.RawMessage, error) {
	var data string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get data from %s: %w", table, err)
	}
	return json.RawMessage(data), nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, table, key string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyColumn(table))
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// DeleteExpired removes all expired rows of table and returns how many.
func (r *Repository) DeleteExpired(ctx context.Context, table string) (int64, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= ?", table)
	result, err := r.db.ExecContext(ctx, query, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired from %s: %w", table, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return deleted, nil
}

// DeleteAllExpired removes expired entries from every table.
func (r *Repository) DeleteAllExpired(ctx context.Context) (map[string]int64, error) {
	results := make(map[string]int64, len(AllTables))

	for _, table := range AllTables {
		deleted, err := r.DeleteExpired(ctx, table)
		if err != nil {
			return results, err
		}
		results[table] = deleted
	}

	return results, nil
}
