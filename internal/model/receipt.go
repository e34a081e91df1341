package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fiscalgate/internal/fiscal"
)

// Receipt statuses.
const (
	ReceiptStatusCreated    = "created"    // payload built, not yet accepted by the gateway
	ReceiptStatusRegistered = "registered" // gateway accepted, fiscalization pending
	ReceiptStatusDone       = "done"       // fiscal document issued
	ReceiptStatusError      = "error"      // gateway rejected or unreachable
)

// Receipt stores one fiscal registration attempt and, once fiscalized, the
// machine-readable proof the tax authority recognizes.
type Receipt struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID uuid.UUID `gorm:"type:uuid;index;not null"`

	// ExternalID is the deterministic correlation id sent to the gateway.
	ExternalID string `gorm:"type:varchar(128);uniqueIndex;not null"`
	Kind       string `gorm:"type:varchar(40);not null"`
	Operation  string `gorm:"type:varchar(20);not null"`
	Status     string `gorm:"type:varchar(20);not null;default:'created'"`

	// UUID is the gateway-assigned correlation identifier.
	UUID *string `gorm:"type:varchar(64);index;column:uuid"`

	ClientEmail *string `gorm:"type:varchar(120)"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	// PayloadJSON is the built wire payload, kept for idempotent re-sends.
	PayloadJSON string `gorm:"type:jsonb;column:payload_json"`

	// Fiscal attributes extracted from the gateway report.
	RegistrationNumber      *string    `gorm:"type:varchar(40)"`
	FiscalDocumentAttribute *int64
	FiscalDocumentNumber    *int64
	FiscalReceiptNumber     *int64
	FNNumber                *string `gorm:"type:varchar(40);column:fn_number"`
	ShiftNumber             *int64
	DocSum                  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ReceiptAt               *time.Time

	ErrorCode *string `gorm:"type:varchar(40)"`
	ErrorText *string

	// Retry fields — used by the retry cron to re-attempt gateway calls.
	RetryCount  int        `gorm:"not null;default:0"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at"`
	LastError   *string

	PDFPath *string `gorm:"column:pdf_path"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApplyRegisterOutcome writes a registration outcome onto the receipt.
// A gateway rejection is terminal — the payload itself is wrong, so the
// retry cron must not replay it.
func ApplyRegisterOutcome(rec *Receipt, out *fiscal.Outcome) {
	switch out.State {
	case fiscal.StateRegistered:
		rec.Status = ReceiptStatusRegistered
		u := out.UUID
		rec.UUID = &u
		rec.NextRetryAt = nil
		rec.LastError = nil
		rec.ErrorCode = nil
		rec.ErrorText = nil
	default:
		rec.Status = ReceiptStatusError
		rec.NextRetryAt = nil
		if out.ErrorCode != "" {
			code := out.ErrorCode
			rec.ErrorCode = &code
		}
		if out.ErrorText != "" {
			text := out.ErrorText
			rec.ErrorText = &text
		}
	}
}

// ApplyFiscalAttributes copies the gateway report attributes onto the receipt
// and clears the error/retry fields a completed fiscalization obsoletes.
func ApplyFiscalAttributes(rec *Receipt, attrs *fiscal.FiscalAttributes) {
	if attrs == nil {
		return
	}
	if attrs.RegistrationNumber != "" {
		v := attrs.RegistrationNumber
		rec.RegistrationNumber = &v
	}
	if attrs.FiscalDocumentAttribute != 0 {
		v := attrs.FiscalDocumentAttribute
		rec.FiscalDocumentAttribute = &v
	}
	if attrs.FiscalDocumentNumber != 0 {
		v := attrs.FiscalDocumentNumber
		rec.FiscalDocumentNumber = &v
	}
	if attrs.FiscalReceiptNumber != 0 {
		v := attrs.FiscalReceiptNumber
		rec.FiscalReceiptNumber = &v
	}
	if attrs.FNNumber != "" {
		v := attrs.FNNumber
		rec.FNNumber = &v
	}
	if attrs.ShiftNumber != 0 {
		v := attrs.ShiftNumber
		rec.ShiftNumber = &v
	}
	if attrs.Total != 0 {
		v := decimal.NewFromFloat(attrs.Total)
		rec.DocSum = &v
	}
	if !attrs.ReceiptAt.IsZero() {
		v := attrs.ReceiptAt
		rec.ReceiptAt = &v
	}
	rec.ErrorCode = nil
	rec.ErrorText = nil
	rec.NextRetryAt = nil
	rec.LastError = nil
}
