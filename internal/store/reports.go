package store

import (
	"context"
	"fmt"
	"time"
)

// Read-only aggregate queries over the fact store for the reporting API.
// The fact schema is a public read contract; these queries must keep
// working across pipeline changes.

// CustomerSales is one row of the top-customers report.
type CustomerSales struct {
	Customer string  `json:"customer"`
	Sales    float64 `json:"sells"`
}

// PeriodSales is one bucket of the sales-over-time report.
type PeriodSales struct {
	Period string  `json:"period"`
	Sales  float64 `json:"sells"`
}

const topCustomersQuery = `
	SELECT c.customer_name, SUM(f.total) AS sales
	FROM fact_invoices f
	JOIN dim_customer c ON f.customer_key = c.customer_key
	GROUP BY c.customer_name
	ORDER BY sales DESC
	LIMIT $1`

// TopCustomers returns the top-N customers by summed invoice total.
func (r *Repository) TopCustomers(ctx context.Context, limit int) ([]CustomerSales, error) {
	rows, err := r.pool.Query(ctx, topCustomersQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("top customers: %w", err)
	}
	defer rows.Close()

	var result []CustomerSales
	for rows.Next() {
		var cs CustomerSales
		if err := rows.Scan(&cs.Customer, &cs.Sales); err != nil {
			return nil, err
		}
		result = append(result, cs)
	}
	return result, rows.Err()
}

const (
	monthlySalesQuery = `
		SELECT to_char(issue_date, 'YYYY-MM') AS period, SUM(total)
		FROM fact_invoices
		WHERE issue_date BETWEEN $1 AND $2
		GROUP BY period
		ORDER BY period`

	weeklySalesQuery = `
		SELECT to_char(issue_date, 'IYYY - "W"IW') AS period, SUM(total)
		FROM fact_invoices
		WHERE issue_date BETWEEN $1 AND $2
		GROUP BY period
		ORDER BY period`
)

// SalesByPeriod returns period-bucketed invoice totals between start and
// end inclusive. Period is "monthly" or "weekly".
func (r *Repository) SalesByPeriod(ctx context.Context, period string, start, end time.Time) ([]PeriodSales, error) {
	var query string
	switch period {
	case "monthly":
		query = monthlySalesQuery
	case "weekly":
		query = weeklySalesQuery
	default:
		return nil, fmt.Errorf("unsupported period %q", period)
	}

	rows, err := r.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("sales by period: %w", err)
	}
	defer rows.Close()

	var result []PeriodSales
	for rows.Next() {
		var ps PeriodSales
		if err := rows.Scan(&ps.Period, &ps.Sales); err != nil {
			return nil, err
		}
		result = append(result, ps)
	}
	return result, rows.Err()
}
