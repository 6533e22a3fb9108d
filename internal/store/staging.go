package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/invoicepipe/invoicepipe/internal/etl"
)

// stagingColumns is the staging schema: the input columns verbatim plus
// batch identity. This table is the system of record for what was
// received, before any business-rule judgment.
var stagingColumns = []string{
	"invoice_id",
	"issue_date",
	"customer_id",
	"customer_name",
	"item_description",
	"qty",
	"unit_price",
	"total",
	"status",
	"batch_id",
	"file_name",
}

// StageRaw persists every raw row unconditionally via the COPY protocol,
// tagged with batch id and file name. The copy either fully applies or
// fails as a whole; a failure is fatal to the file.
func (r *Repository) StageRaw(ctx context.Context, batch etl.Batch, rows []etl.RawRecord) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"stg_invoices"},
		stagingColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{
				nullable(row.InvoiceID),
				nullable(row.IssueDate),
				nullable(row.CustomerID),
				nullable(row.CustomerName),
				nullable(row.ItemDescription),
				nullable(row.Qty),
				nullable(row.UnitPrice),
				nullable(row.Total),
				nullable(row.Status),
				batch.ID,
				batch.FileName,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy into stg_invoices: %w", err)
	}

	return n, nil
}
