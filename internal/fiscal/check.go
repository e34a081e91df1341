package fiscal

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculatedSign indicates the direction of a check.
type CalculatedSign string

const (
	SignAccrual     CalculatedSign = "accrual"     // sale
	SignConsumption CalculatedSign = "consumption" // refund
)

// Check is the read-only sale aggregate supplied by the host per registration
// attempt. The builder never mutates it.
type Check struct {
	UniqueID    string
	Kind        CheckKind
	Sign        CalculatedSign
	CreatedAt   time.Time
	ClientEmail string
	ClientPhone string
	Total       decimal.Decimal
	Lines       []CheckLine
	Payments    []Payment
}

// CheckLine is one item position of a check.
type CheckLine struct {
	Name          string
	Price         decimal.Decimal
	Sum           decimal.Decimal
	Quantity      float64
	VAT           string // host VAT class key, resolved through RegisterSettings.VATMap
	PaymentObject PaymentObject
	MeasureCode   string
	MarkingCode   string // raw traceability code, base64-encoded on the wire
	Supplier      *SupplierInfo
}

// SupplierInfo carries agent-scheme supplier data for a line (tags 1222/1224).
type SupplierInfo struct {
	Name   string
	INN    string
	Phones []string
}

// Payment is one payment entry of a check.
type Payment struct {
	Type PaymentType
	Sum  decimal.Decimal
}

// CorrectionCheck is the aggregate for an out-of-band correction receipt.
type CorrectionCheck struct {
	UniqueID   string
	Kind       CheckKind
	Sign       CalculatedSign
	CreatedAt  time.Time
	Payments   []Payment
	Correction CorrectionInfo
}

// CorrectionInfo describes the source document being corrected.
type CorrectionInfo struct {
	Type           string // "self" | "instruction"
	DocumentDate   time.Time
	DocumentNumber string
	Description    string
	VATs           []VATTotal
}

// VATTotal is a per-VAT-class sum of a correction.
type VATTotal struct {
	Type string // host VAT class key
	Sum  decimal.Decimal
}
