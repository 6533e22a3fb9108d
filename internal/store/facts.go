package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/invoicepipe/invoicepipe/internal/etl"
)

// insertFactQuery is deliberately insert-if-absent, not last-write-wins:
// a re-run after a partial failure must never overwrite facts that were
// already committed. invoice_id is the natural key.
const insertFactQuery = `
	INSERT INTO fact_invoices (
		invoice_id, issue_date,
		customer_key, item_key, status_key,
		qty, unit_price, total
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (invoice_id) DO NOTHING`

// InsertFacts writes validated records into the fact store in one batched
// round trip. Returns the number of rows actually inserted; rows whose
// invoice_id already exists count as zero. Empty input is a no-op.
func (r *Repository) InsertFacts(ctx context.Context, records []etl.ValidatedRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, rec := range records {
		b.Queue(insertFactQuery,
			rec.InvoiceID,
			rec.IssueDate,
			rec.CustomerKey,
			rec.ItemKey,
			rec.StatusKey,
			rec.Qty.String(),
			rec.UnitPrice.String(),
			rec.Total.String(),
		)
	}

	br := r.pool.SendBatch(ctx, b)
	defer br.Close()

	var affected int64
	for range records {
		tag, err := br.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert into fact_invoices: %w", err)
		}
		affected += tag.RowsAffected()
	}

	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close fact batch: %w", err)
	}

	return affected, nil
}
