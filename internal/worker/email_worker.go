package worker

// email_worker.go
// Processes email jobs from QueueEmail. Renders the confirmation PDF for a
// fiscalized receipt (if not already rendered) and mails it to the customer.

import (
	"context"
	"encoding/json"
	"fmt"

	"fiscalgate/internal/infra"
	"fiscalgate/internal/model"
	"fiscalgate/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	ReceiptID string `json:"receipt_id"`
}

// EmailWorker sends fiscal receipt confirmations to customer emails via SMTP.
type EmailWorker struct {
	receiptRepo    repository.ReceiptRepository
	mailer         *infra.Mailer
	pdfStoragePath string
}

func NewEmailWorker(receiptRepo repository.ReceiptRepository, mailer *infra.Mailer, pdfStoragePath string) *EmailWorker {
	return &EmailWorker{
		receiptRepo:    receiptRepo,
		mailer:         mailer,
		pdfStoragePath: pdfStoragePath,
	}
}

// Process renders the PDF (when missing) and sends it as an attachment.
// Only receipts in "done" carry the fiscal attributes the PDF shows.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return
	}

	receiptID, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		log.Error().Str("receipt_id", payload.ReceiptID).Msg("email_worker: invalid receipt_id")
		return
	}

	rec, err := w.receiptRepo.FindByID(ctx, receiptID)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("email_worker: receipt not found")
		return
	}
	if rec.Status != model.ReceiptStatusDone {
		log.Warn().
			Str("receipt_id", payload.ReceiptID).
			Str("status", rec.Status).
			Msg("email_worker: receipt not fiscalized — skipping")
		return
	}
	if rec.ClientEmail == nil || *rec.ClientEmail == "" {
		log.Warn().Str("receipt_id", payload.ReceiptID).Msg("email_worker: no client email — skipping")
		return
	}

	pdfPath := ""
	if rec.PDFPath != nil {
		pdfPath = *rec.PDFPath
	}
	if pdfPath == "" {
		pdfPath, err = infra.GenerateReceiptPDF(rec, w.pdfStoragePath)
		if err != nil {
			log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("email_worker: PDF generation failed")
			return
		}
		rec.PDFPath = &pdfPath
		_ = w.receiptRepo.Update(ctx, rec)
	}

	subject := fmt.Sprintf("Fiscal receipt %s", rec.ExternalID)
	body := fmt.Sprintf("Your fiscal receipt is attached.\nTotal: %s", rec.Total.StringFixed(2))

	if err := w.mailer.SendReceipt(*rec.ClientEmail, subject, body, pdfPath); err != nil {
		log.Error().Err(err).Str("to", *rec.ClientEmail).Msg("email_worker: failed to send email")
		return
	}
	log.Info().Str("to", *rec.ClientEmail).Str("receipt_id", payload.ReceiptID).Msg("email_worker: receipt sent")
}
