// Package etl provides the business logic for the invoice batch pipeline.
// This package has no transport dependencies and owns the clean-validate-load
// flow: raw rows are staged verbatim, validated against reference dimensions,
// and either materialized as facts or quarantined as rejections.
package etl

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Columns is the required header contract for invoice batch files.
// A file missing any of these columns is rejected as a whole.
var Columns = []string{
	"invoice_id",
	"issue_date",
	"customer_id",
	"customer_name",
	"item_description",
	"qty",
	"unit_price",
	"total",
	"status",
}

// RawRecord is one row exactly as read from an input file.
// All fields are untyped text; absent cells are empty strings.
type RawRecord struct {
	InvoiceID       string `json:"invoice_id"`
	IssueDate       string `json:"issue_date"`
	CustomerID      string `json:"customer_id"`
	CustomerName    string `json:"customer_name"`
	ItemDescription string `json:"item_description"`
	Qty             string `json:"qty"`
	UnitPrice       string `json:"unit_price"`
	Total           string `json:"total"`
	Status          string `json:"status"`

	// Line is the 1-based source line number, for diagnostics only.
	Line int `json:"-"`
}

// ValidatedRecord is a row that passed every validation rule.
// All foreign keys are resolved surrogate keys, so a ValidatedRecord is
// always loadable into the fact store without referential violation.
type ValidatedRecord struct {
	InvoiceID   string
	IssueDate   time.Time
	CustomerKey int64
	ItemKey     int64
	StatusKey   int64
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// RejectionReason identifies the first validation rule a row violated.
type RejectionReason string

const (
	ReasonUnknownInvoiceID RejectionReason = "UNKNOWN_INVOICE_ID"
	ReasonInvalidDate      RejectionReason = "INVALID_DATE"
	ReasonUnknownCustomer  RejectionReason = "UNKNOWN_CUSTOMER"
	ReasonUnknownItem      RejectionReason = "UNKNOWN_ITEM"
	ReasonUnknownStatus    RejectionReason = "UNKNOWN_STATUS"
	ReasonInvalidQuantity  RejectionReason = "INVALID_QUANTITY"
	ReasonInvalidUnitPrice RejectionReason = "INVALID_UNIT_PRICE"
	ReasonInvalidTotal     RejectionReason = "INVALID_TOTAL"
	ReasonTotalMismatch    RejectionReason = "TOTAL_MISMATCH"
)

// Rejection is a quarantined row: the first violated reason plus the full
// original raw payload, serialized for forensic use.
type Rejection struct {
	// InvoiceID is empty when the row had no usable invoice identifier.
	InvoiceID  string
	Reason     RejectionReason
	RawPayload string // raw record serialized as JSON
	Line       int
}

// Batch identifies one processing unit: a single input file.
// Batch ids are opaque unique tokens, never reused or mutated.
type Batch struct {
	ID       string
	FileName string
}

// Dimensions holds the reference mappings loaded once per run.
// Maps are natural business key to surrogate key, immutable after load.
type Dimensions struct {
	Customers map[string]int64 // customer external id
	Items     map[string]int64 // item description text
	Statuses  map[string]int64 // status name (upper case)
}

// BatchPhase indicates the current stage of a file's state machine.
// Transitions are strictly sequential; no phase is skipped.
type BatchPhase string

const (
	PhaseDiscovered       BatchPhase = "discovered"
	PhaseStaged           BatchPhase = "staged"
	PhaseValidated        BatchPhase = "validated"
	PhaseFactLoaded       BatchPhase = "fact_loaded"
	PhaseRejectionsLoaded BatchPhase = "rejections_loaded"
	PhaseDone             BatchPhase = "done"
	PhaseFailed           BatchPhase = "failed"
)

// FileResult is the outcome of one file's pass through the pipeline.
type FileResult struct {
	BatchID  string
	FileName string
	Phase    BatchPhase
	Staged   int64
	Loaded   int64
	Rejected int64
	Reasons  map[RejectionReason]int
	Error    string // non-empty if Phase is PhaseFailed
	Duration time.Duration
}

// Failed reports whether the file aborted before completing its state machine.
func (r FileResult) Failed() bool {
	return r.Phase == PhaseFailed
}

// RunSummary aggregates results across all files in one run.
type RunSummary struct {
	FilesProcessed int
	FilesFailed    int
	RowsStaged     int64
	FactsLoaded    int64
	RowsRejected   int64
	Reasons        map[RejectionReason]int
	Files          []FileResult
}

// Store is the persistence surface the pipeline depends on.
// Implemented by store.Repository; test doubles implement it in-memory.
type Store interface {
	// LoadDimensions full-scans the three reference tables.
	// Failure here is fatal to the run.
	LoadDimensions(ctx context.Context) (*Dimensions, error)

	// StageRaw persists every raw row verbatim, tagged with batch identity.
	// Bulk write; either fully applies or fails as a whole.
	StageRaw(ctx context.Context, batch Batch, rows []RawRecord) (int64, error)

	// InsertFacts writes validated records with insert-if-absent semantics
	// keyed on invoice_id. Returns the number of rows actually inserted.
	InsertFacts(ctx context.Context, records []ValidatedRecord) (int64, error)

	// InsertRejections appends rejection records. No idempotency: rejections
	// are append-only history and duplicates across re-runs are expected.
	InsertRejections(ctx context.Context, batch Batch, rejections []Rejection) (int64, error)
}
