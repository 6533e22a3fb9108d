package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/invoicepipe/invoicepipe/internal/etl"
)

// No ON CONFLICT clause here: the rejection quarantine is append-only
// history, and duplicates across re-runs are expected.
const insertRejectionQuery = `
	INSERT INTO rejected_invoices (invoice_id, reason, raw_record, batch_id, file_name)
	VALUES ($1, $2, $3, $4, $5)`

// InsertRejections appends every rejection record, tagged with batch
// identity. Empty input is a no-op.
func (r *Repository) InsertRejections(ctx context.Context, batch etl.Batch, rejections []etl.Rejection) (int64, error) {
	if len(rejections) == 0 {
		return 0, nil
	}

	b := &pgx.Batch{}
	for _, rej := range rejections {
		b.Queue(insertRejectionQuery,
			nullable(rej.InvoiceID),
			string(rej.Reason),
			rej.RawPayload,
			batch.ID,
			batch.FileName,
		)
	}

	br := r.pool.SendBatch(ctx, b)
	defer br.Close()

	var affected int64
	for range rejections {
		tag, err := br.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert into rejected_invoices: %w", err)
		}
		affected += tag.RowsAffected()
	}

	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close rejection batch: %w", err)
	}

	return affected, nil
}
