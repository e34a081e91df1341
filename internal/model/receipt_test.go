package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalgate/internal/fiscal"
)

func TestApplyRegisterOutcomeAccepted(t *testing.T) {
	errText := "previous failure"
	retryAt := time.Now()
	rec := &Receipt{
		Status:      ReceiptStatusError,
		ErrorText:   &errText,
		LastError:   &errText,
		NextRetryAt: &retryAt,
	}

	ApplyRegisterOutcome(rec, &fiscal.Outcome{State: fiscal.StateRegistered, UUID: "u-1"})

	assert.Equal(t, ReceiptStatusRegistered, rec.Status)
	require.NotNil(t, rec.UUID)
	assert.Equal(t, "u-1", *rec.UUID)
	assert.Nil(t, rec.ErrorText)
	assert.Nil(t, rec.LastError)
	assert.Nil(t, rec.NextRetryAt)
}

func TestApplyRegisterOutcomeRejected(t *testing.T) {
	retryAt := time.Now()
	rec := &Receipt{Status: ReceiptStatusCreated, NextRetryAt: &retryAt}

	ApplyRegisterOutcome(rec, &fiscal.Outcome{
		State:     fiscal.StateFailed,
		ErrorCode: "32",
		ErrorText: "invalid inn",
	})

	assert.Equal(t, ReceiptStatusError, rec.Status)
	require.NotNil(t, rec.ErrorCode)
	assert.Equal(t, "32", *rec.ErrorCode)
	require.NotNil(t, rec.ErrorText)
	assert.Equal(t, "invalid inn", *rec.ErrorText)
	assert.Nil(t, rec.NextRetryAt, "a rejected payload must not be rescheduled")
}

func TestApplyFiscalAttributes(t *testing.T) {
	errText := "stale"
	rec := &Receipt{Status: ReceiptStatusRegistered, ErrorText: &errText, LastError: &errText}
	at := time.Date(2024, 3, 7, 15, 10, 0, 0, time.Local)

	ApplyFiscalAttributes(rec, &fiscal.FiscalAttributes{
		RegistrationNumber:      "0000111122223333",
		FiscalDocumentAttribute: 1234567890,
		FiscalDocumentNumber:    120,
		FiscalReceiptNumber:     12,
		FNNumber:                "9999000011112222",
		ShiftNumber:             5,
		Total:                   150.50,
		ReceiptAt:               at,
	})

	require.NotNil(t, rec.RegistrationNumber)
	assert.Equal(t, "0000111122223333", *rec.RegistrationNumber)
	require.NotNil(t, rec.FiscalDocumentNumber)
	assert.Equal(t, int64(120), *rec.FiscalDocumentNumber)
	require.NotNil(t, rec.DocSum)
	assert.True(t, rec.DocSum.Equal(decimal.NewFromFloat(150.50)))
	require.NotNil(t, rec.ReceiptAt)
	assert.True(t, rec.ReceiptAt.Equal(at))
	assert.Nil(t, rec.ErrorText)
	assert.Nil(t, rec.LastError)
}

func TestApplyFiscalAttributesPartialReport(t *testing.T) {
	rec := &Receipt{Status: ReceiptStatusRegistered}

	ApplyFiscalAttributes(rec, &fiscal.FiscalAttributes{FNNumber: "9999000011112222"})

	require.NotNil(t, rec.FNNumber)
	assert.Nil(t, rec.RegistrationNumber)
	assert.Nil(t, rec.DocSum)
	assert.Nil(t, rec.ReceiptAt)

	ApplyFiscalAttributes(rec, nil) // nil report is a no-op
	require.NotNil(t, rec.FNNumber)
}
