package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"fiscalgate/internal/fiscal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type RegisterCheckRequest struct {
	UniqueID  string    `json:"unique_id"  validate:"required,max=64"`
	Kind      string    `json:"kind"       validate:"required"`
	Sign      string    `json:"sign"       validate:"required,oneof=accrual consumption"`
	CreatedAt time.Time `json:"created_at" validate:"required"`

	ClientEmail string `json:"client_email" validate:"omitempty,email"`
	ClientPhone string `json:"client_phone"`

	Total    decimal.Decimal       `json:"total"    validate:"required"`
	Lines    []CheckLineRequest    `json:"lines"    validate:"required,min=1,dive"`
	Payments []CheckPaymentRequest `json:"payments" validate:"required,min=1,dive"`
}

type CheckLineRequest struct {
	Name          string          `json:"name"           validate:"required"`
	Price         decimal.Decimal `json:"price"          validate:"required"`
	Sum           decimal.Decimal `json:"sum"            validate:"required"`
	Quantity      float64         `json:"quantity"       validate:"required,gt=0"`
	VAT           string          `json:"vat"`
	PaymentObject string          `json:"payment_object" validate:"required"`
	MeasureCode   string          `json:"measure_code"`
	MarkingCode   string          `json:"marking_code"`
	Supplier      *SupplierRequest `json:"supplier"`
}

type SupplierRequest struct {
	Name   string   `json:"name"`
	INN    string   `json:"inn"`
	Phones []string `json:"phones"`
}

type CheckPaymentRequest struct {
	Type string          `json:"type" validate:"required,oneof=cash cashless advance credit"`
	Sum  decimal.Decimal `json:"sum"  validate:"required"`
}

type CorrectionCheckRequest struct {
	UniqueID  string    `json:"unique_id"  validate:"required,max=64"`
	Kind      string    `json:"kind"       validate:"required"`
	Sign      string    `json:"sign"       validate:"required,oneof=accrual consumption"`
	CreatedAt time.Time `json:"created_at" validate:"required"`

	Payments []CheckPaymentRequest `json:"payments" validate:"required,min=1,dive"`

	Correction CorrectionInfoRequest `json:"correction" validate:"required"`
}

type CorrectionInfoRequest struct {
	Type           string            `json:"type"            validate:"required,oneof=self instruction"`
	DocumentDate   time.Time         `json:"document_date"   validate:"required"`
	DocumentNumber string            `json:"document_number" validate:"required"`
	Description    string            `json:"description"`
	VATs           []VATTotalRequest `json:"vats"            validate:"required,min=1,dive"`
}

type VATTotalRequest struct {
	Type string          `json:"type"`
	Sum  decimal.Decimal `json:"sum" validate:"required"`
}

// GatewayCallback is what the gateway posts back once fiscalization finishes.
// Field names follow the gateway's wire contract.
type GatewayCallback struct {
	UUID   string `json:"uuid" validate:"required"`
	Status string `json:"status"`
	// Error codes arrive as JSON numbers on the wire.
	Error *struct {
		Code json.Number `json:"code"`
		Text string      `json:"text"`
	} `json:"error"`
	Payload *struct {
		ReceiptDatetime         string  `json:"receipt_datetime"`
		ECRRegistrationNumber   string  `json:"ecr_registration_number"`
		FiscalDocumentAttribute int64   `json:"fiscal_document_attribute"`
		FiscalDocumentNumber    int64   `json:"fiscal_document_number"`
		FiscalReceiptNumber     int64   `json:"fiscal_receipt_number"`
		FNNumber                string  `json:"fn_number"`
		ShiftNumber             int64   `json:"shift_number"`
		Total                   float64 `json:"total"`
	} `json:"payload"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OutcomeResponse struct {
	State     string `json:"state"`
	UUID      string `json:"uuid,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorText string `json:"error_text,omitempty"`
}

type ReceiptResponse struct {
	ID         string `json:"id"`
	RegisterID string `json:"register_id"`
	ExternalID string `json:"external_id"`
	Kind       string `json:"kind"`
	Operation  string `json:"operation"`
	Status     string `json:"status"`
	UUID       *string `json:"uuid,omitempty"`

	Total decimal.Decimal `json:"total"`

	RegistrationNumber      *string          `json:"registration_number,omitempty"`
	FiscalDocumentAttribute *int64           `json:"fiscal_document_attribute,omitempty"`
	FiscalDocumentNumber    *int64           `json:"fiscal_document_number,omitempty"`
	FiscalReceiptNumber     *int64           `json:"fiscal_receipt_number,omitempty"`
	FNNumber                *string          `json:"fn_number,omitempty"`
	ShiftNumber             *int64           `json:"shift_number,omitempty"`
	DocSum                  *decimal.Decimal `json:"doc_sum,omitempty"`
	ReceiptAt               *string          `json:"receipt_at,omitempty"`

	ErrorCode *string `json:"error_code,omitempty"`
	ErrorText *string `json:"error_text,omitempty"`

	CreatedAt string `json:"created_at"`
}

// ─── Conversions ─────────────────────────────────────────────────────────────

// ToCheck converts the request into the fiscal-core aggregate.
func (r *RegisterCheckRequest) ToCheck() *fiscal.Check {
	check := &fiscal.Check{
		UniqueID:    r.UniqueID,
		Kind:        fiscal.CheckKind(r.Kind),
		Sign:        fiscal.CalculatedSign(r.Sign),
		CreatedAt:   r.CreatedAt,
		ClientEmail: r.ClientEmail,
		ClientPhone: r.ClientPhone,
		Total:       r.Total,
	}
	for _, l := range r.Lines {
		line := fiscal.CheckLine{
			Name:          l.Name,
			Price:         l.Price,
			Sum:           l.Sum,
			Quantity:      l.Quantity,
			VAT:           l.VAT,
			PaymentObject: fiscal.PaymentObject(l.PaymentObject),
			MeasureCode:   l.MeasureCode,
			MarkingCode:   l.MarkingCode,
		}
		if l.Supplier != nil {
			line.Supplier = &fiscal.SupplierInfo{
				Name:   l.Supplier.Name,
				INN:    l.Supplier.INN,
				Phones: l.Supplier.Phones,
			}
		}
		check.Lines = append(check.Lines, line)
	}
	for _, p := range r.Payments {
		check.Payments = append(check.Payments, fiscal.Payment{
			Type: fiscal.PaymentType(p.Type),
			Sum:  p.Sum,
		})
	}
	return check
}

// ToCorrectionCheck converts the request into the fiscal-core aggregate.
func (r *CorrectionCheckRequest) ToCorrectionCheck() *fiscal.CorrectionCheck {
	check := &fiscal.CorrectionCheck{
		UniqueID:  r.UniqueID,
		Kind:      fiscal.CheckKind(r.Kind),
		Sign:      fiscal.CalculatedSign(r.Sign),
		CreatedAt: r.CreatedAt,
		Correction: fiscal.CorrectionInfo{
			Type:           r.Correction.Type,
			DocumentDate:   r.Correction.DocumentDate,
			DocumentNumber: r.Correction.DocumentNumber,
			Description:    r.Correction.Description,
		},
	}
	for _, p := range r.Payments {
		check.Payments = append(check.Payments, fiscal.Payment{
			Type: fiscal.PaymentType(p.Type),
			Sum:  p.Sum,
		})
	}
	for _, v := range r.Correction.VATs {
		check.Correction.VATs = append(check.Correction.VATs, fiscal.VATTotal{
			Type: v.Type,
			Sum:  v.Sum,
		})
	}
	return check
}
