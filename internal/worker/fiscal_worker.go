package worker

// fiscal_worker.go
// Processes check registration jobs from QueueFiscal. The payload the gateway
// receives was already built and validated at enqueue time; this worker only
// replays the stored wire JSON, so a job survives process restarts and retries
// send byte-identical bodies under the same external_id.

import (
	"context"
	"encoding/json"
	"time"

	"fiscalgate/internal/fiscal"
	"fiscalgate/internal/infra"
	"fiscalgate/internal/model"
	"fiscalgate/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FiscalJobPayload is the job envelope sent to QueueFiscal.
type FiscalJobPayload struct {
	ReceiptID string `json:"receipt_id"`
}

// FiscalWorker registers queued receipts with the fiscal gateway and stores
// the outcome on the receipt record.
type FiscalWorker struct {
	receiptRepo  repository.ReceiptRepository
	registerRepo repository.RegisterRepository
	gateways     *infra.GatewayFactory
}

func NewFiscalWorker(
	receiptRepo repository.ReceiptRepository,
	registerRepo repository.RegisterRepository,
	gateways *infra.GatewayFactory,
) *FiscalWorker {
	return &FiscalWorker{
		receiptRepo:  receiptRepo,
		registerRepo: registerRepo,
		gateways:     gateways,
	}
}

// Process handles a single fiscal job:
//  1. Parse FiscalJobPayload from the job envelope
//  2. Fetch the receipt and its register from DB
//  3. Replay the stored wire payload against the gateway (max 3 attempts,
//     exponential backoff)
//  4. Update the receipt: registered + UUID, or error with a retry schedule
func (w *FiscalWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload FiscalJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("fiscal_worker: invalid payload")
		return
	}

	receiptID, err := uuid.Parse(payload.ReceiptID)
	if err != nil {
		log.Error().Str("receipt_id", payload.ReceiptID).Msg("fiscal_worker: invalid receipt_id")
		return
	}

	rec, err := w.receiptRepo.FindByID(ctx, receiptID)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("fiscal_worker: receipt not found")
		return
	}
	if rec.Status != model.ReceiptStatusCreated && rec.Status != model.ReceiptStatusError {
		log.Warn().
			Str("receipt_id", payload.ReceiptID).
			Str("status", rec.Status).
			Msg("fiscal_worker: receipt already handled — skipping")
		return
	}

	reg, err := w.registerRepo.FindByID(ctx, rec.RegisterID)
	if err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("fiscal_worker: register not found")
		return
	}

	var query fiscal.CheckQuery
	if err := json.Unmarshal([]byte(rec.PayloadJSON), &query); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("fiscal_worker: stored payload is corrupt")
		return
	}

	client := w.gateways.ClientFor(reg)
	operation := fiscal.Operation(rec.Operation)

	var outcome *fiscal.Outcome
	sendErr := withRetry(ctx, 3, func(attempt int) error {
		out, err := client.RegisterCheck(ctx, operation, &query)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("receipt_id", payload.ReceiptID).
				Msg("fiscal_worker: gateway attempt failed, retrying")
			return err
		}
		outcome = out
		return nil
	})

	if sendErr != nil {
		// Gateway unreachable or auth broken — hand over to the retry cron.
		rec.Status = model.ReceiptStatusError
		rec.RetryCount++
		errMsg := sendErr.Error()
		rec.LastError = &errMsg
		nextRetry := time.Now().Add(computeRetryBackoff(rec.RetryCount))
		rec.NextRetryAt = &nextRetry
		_ = w.receiptRepo.Update(ctx, rec)
		log.Error().Err(sendErr).Str("receipt_id", payload.ReceiptID).Msg("fiscal_worker: gateway failed after all attempts")
		return
	}

	model.ApplyRegisterOutcome(rec, outcome)
	if err := w.receiptRepo.Update(ctx, rec); err != nil {
		log.Error().Err(err).Str("receipt_id", payload.ReceiptID).Msg("fiscal_worker: failed to update receipt")
		return
	}

	if outcome.State == fiscal.StateRegistered {
		log.Info().
			Str("receipt_id", payload.ReceiptID).
			Str("uuid", outcome.UUID).
			Msg("fiscal_worker: check registered")
	} else {
		log.Warn().
			Str("receipt_id", payload.ReceiptID).
			Str("error_code", outcome.ErrorCode).
			Str("error_text", outcome.ErrorText).
			Msg("fiscal_worker: gateway rejected check")
	}
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			// 1s, 2s … (exponential backoff)
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
