package scan

import "strings"

// Status is the terminal outcome of one scan attempt.
type Status string

const (
	StatusAccepted     Status = "accepted"
	StatusDuplicate    Status = "duplicate"
	StatusNotFound     Status = "not_found"
	StatusInvalidInput Status = "invalid_input"
	StatusStoreError   Status = "store_error"
)

// Result carries the outcome plus the derived model code when one was
// resolved. Err is set only for StatusStoreError.
type Result struct {
	Status Status
	Model  string
	Err    error
}

// LedgerStatus is the tri-state outcome of the insert-if-absent primitive on
// the dedup ledger. Failures travel separately as errors.
type LedgerStatus int

const (
	LedgerInserted LedgerStatus = iota
	LedgerExists
)

// modelCodeLen is the fixed barcode prefix that identifies a product type.
const modelCodeLen = 9

// ModelCode derives the model code from a full barcode: the upper-cased
// 9-character prefix. A shorter barcode is upper-cased and used whole; this
// degraded match is deliberate, see the short-barcode tests.
func ModelCode(barcode string) string {
	if len(barcode) > modelCodeLen {
		barcode = barcode[:modelCodeLen]
	}
	return strings.ToUpper(barcode)
}
