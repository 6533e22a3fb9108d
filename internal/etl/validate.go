package etl

// validate.go applies the ordered rule chain that decides whether a raw row
// becomes a fact or a rejection. Rules short-circuit: a row is tagged with
// the first violated reason only, and the rejection carries the original
// raw payload, not the partially normalized one.
//
// Rule order is a contract, not an implementation detail. Reordering rules
// changes which reason codes existing data would be rejected with.

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SynthesizedIDPrefix marks invoice identifiers generated for rows that
// arrived without one.
const SynthesizedIDPrefix = "GEN-"

// Validator applies the validation rule chain against one run's dimensions.
// The dimensions are immutable after load; a Validator is safe to reuse for
// every row of every file in the run.
type Validator struct {
	dims                  *Dimensions
	allowMissingInvoiceID bool
	logger                *slog.Logger

	// newID generates synthesized invoice identifiers. Overridable in tests.
	newID func() string
}

// NewValidator creates a validator for one run.
// When allowMissingInvoiceID is true, rows without an invoice identifier
// get a synthesized one instead of being rejected; each synthesis is logged.
func NewValidator(dims *Dimensions, allowMissingInvoiceID bool, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		dims:                  dims,
		allowMissingInvoiceID: allowMissingInvoiceID,
		logger:                logger,
		newID: func() string {
			return SynthesizedIDPrefix + uuid.NewString()
		},
	}
}

// Validate runs the rule chain over one raw row.
// Exactly one of the return values is meaningful: a nil rejection means the
// record passed every rule and carries resolved surrogate keys.
func (v *Validator) Validate(raw RawRecord) (ValidatedRecord, *Rejection) {
	invoiceID := strings.TrimSpace(raw.InvoiceID)

	// Rule 1: invoice identifier present, or synthesized when tolerated.
	if invoiceID == "" {
		if !v.allowMissingInvoiceID {
			return ValidatedRecord{}, v.reject(raw, "", ReasonUnknownInvoiceID)
		}
		invoiceID = v.newID()
		v.logger.Warn("synthesized invoice id for row without one",
			"invoice_id", invoiceID,
			"line", raw.Line,
		)
	}

	// Rule 2: issue date must normalize.
	issueDate, ok := ParseDate(raw.IssueDate)
	if !ok {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonInvalidDate)
	}

	// Rules 3-5: referential integrity against the dimensions.
	customerID := strings.TrimSpace(raw.CustomerID)
	customerKey, ok := v.dims.Customers[customerID]
	if !ok {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonUnknownCustomer)
	}

	itemDesc := strings.TrimSpace(raw.ItemDescription)
	itemKey, ok := v.dims.Items[itemDesc]
	if !ok {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonUnknownItem)
	}

	status := NormalizeStatus(raw.Status)
	statusKey, ok := v.dims.Statuses[status]
	if !ok {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonUnknownStatus)
	}

	// Rules 6-8: numeric fields must normalize and be in range.
	qty, ok := ParseAmount(raw.Qty)
	if !ok || !qty.IsPositive() {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonInvalidQuantity)
	}

	unitPrice, ok := ParseAmount(raw.UnitPrice)
	if !ok || unitPrice.IsNegative() {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonInvalidUnitPrice)
	}

	total, ok := ParseAmount(raw.Total)
	if !ok || total.IsNegative() {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonInvalidTotal)
	}

	// Rule 9: reconciliation at currency scale.
	if !reconciles(qty, unitPrice, total) {
		return ValidatedRecord{}, v.reject(raw, invoiceID, ReasonTotalMismatch)
	}

	return ValidatedRecord{
		InvoiceID:   invoiceID,
		IssueDate:   issueDate,
		CustomerKey: customerKey,
		ItemKey:     itemKey,
		StatusKey:   statusKey,
		Qty:         qty,
		UnitPrice:   unitPrice,
		Total:       total,
	}, nil
}

// reconciles checks round(qty*unit_price, 2) == round(total, 2).
func reconciles(qty, unitPrice, total decimal.Decimal) bool {
	return qty.Mul(unitPrice).Round(2).Equal(total.Round(2))
}

// reject builds a Rejection carrying the serialized original payload.
func (v *Validator) reject(raw RawRecord, invoiceID string, reason RejectionReason) *Rejection {
	payload, err := json.Marshal(raw)
	if err != nil {
		// RawRecord is all strings; marshaling cannot realistically fail,
		// but a rejection must never be dropped over its payload.
		payload = []byte("{}")
	}
	return &Rejection{
		InvoiceID:  invoiceID,
		Reason:     reason,
		RawPayload: string(payload),
		Line:       raw.Line,
	}
}
