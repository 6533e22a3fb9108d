package store

import (
	"context"
	"fmt"

	"github.com/invoicepipe/invoicepipe/internal/etl"
)

// Dimension scans. Each query reads the full reference table; the resulting
// maps are immutable for the rest of the run. These tables are small by
// construction (reference data), so a full scan per run is the simple and
// correct choice over any caching scheme.
const (
	customerDimQuery = `SELECT customer_id, customer_key FROM dim_customer`
	itemDimQuery     = `SELECT item_description, item_key FROM dim_item`
	statusDimQuery   = `SELECT status_name, status_key FROM dim_status`
)

// LoadDimensions full-scans the three reference tables into lookup maps.
// Any failure is surfaced as-is; the caller treats it as fatal to the run.
func (r *Repository) LoadDimensions(ctx context.Context) (*etl.Dimensions, error) {
	customers, err := r.scanDimension(ctx, customerDimQuery)
	if err != nil {
		return nil, fmt.Errorf("customer dimension: %w", err)
	}
	items, err := r.scanDimension(ctx, itemDimQuery)
	if err != nil {
		return nil, fmt.Errorf("item dimension: %w", err)
	}
	statuses, err := r.scanDimension(ctx, statusDimQuery)
	if err != nil {
		return nil, fmt.Errorf("status dimension: %w", err)
	}

	return &etl.Dimensions{
		Customers: customers,
		Items:     items,
		Statuses:  statuses,
	}, nil
}

// scanDimension reads (natural key, surrogate key) pairs into a map.
func (r *Repository) scanDimension(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]int64)
	for rows.Next() {
		var key string
		var surrogate int64
		if err := rows.Scan(&key, &surrogate); err != nil {
			return nil, err
		}
		m[key] = surrogate
	}
	return m, rows.Err()
}
