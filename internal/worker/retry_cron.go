package worker

// retry_cron.go
// Background goroutine with two duties per tick:
//   1. Poll the gateway report endpoint for receipts stuck in "registered" —
//      the callback may never arrive, so fiscalization must also be pulled.
//   2. Re-send errored receipts whose next_retry_at is in the past.
// Both run through the Circuit Breaker to avoid hammering a downed gateway.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fiscalgate/internal/fiscal"
	"fiscalgate/internal/infra"
	"fiscalgate/internal/model"
	"fiscalgate/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10

	// MaxReceiptRetries is how many gateway re-sends a receipt gets before it
	// is parked in the DLQ.
	MaxReceiptRetries = 5
)

// computeRetryBackoff returns the wait before the next re-send:
// 1m, 2m, 4m … capped at 30m.
func computeRetryBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	backoff := time.Minute << uint(retryCount-1)
	if backoff > 30*time.Minute {
		backoff = 30 * time.Minute
	}
	return backoff
}

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	ReceiptRepo  repository.ReceiptRepository
	RegisterRepo repository.RegisterRepository
	Gateways     *infra.GatewayFactory
	CB           *infra.CircuitBreaker
	RDB          *redis.Client
	Dispatcher   *Dispatcher
}

// StartRetryCron launches a background goroutine that ticks every 30s.
// It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				pollAwaiting(ctx, cfg)
				processRetries(ctx, cfg)
			}
		}
	}()
}

// pollAwaiting pulls fiscalization results for receipts the gateway accepted
// but has not reported back on.
func pollAwaiting(ctx context.Context, cfg RetryCronConfig) {
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping status polls")
		return
	}

	receipts, err := cfg.ReceiptRepo.ListAwaitingFiscalization(ctx, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query awaiting receipts")
		return
	}

	for i := range receipts {
		rec := &receipts[i]
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		reg, err := cfg.RegisterRepo.FindByID(ctx, rec.RegisterID)
		if err != nil {
			log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("retry_cron: register not found")
			continue
		}

		client := cfg.Gateways.ClientFor(reg)
		var outcome *fiscal.Outcome
		cbErr := cfg.CB.Execute(func() error {
			out, err := client.CheckStatus(ctx, *rec.UUID)
			if err != nil {
				return err
			}
			outcome = out
			return nil
		})
		if cbErr != nil {
			log.Warn().Err(cbErr).Str("receipt_id", rec.ID.String()).Msg("retry_cron: status poll failed")
			continue
		}

		switch outcome.State {
		case fiscal.StatePending:
			// Not fiscalized yet — poll again next tick.
		case fiscal.StateDone:
			model.ApplyFiscalAttributes(rec, outcome.Attributes)
			rec.Status = model.ReceiptStatusDone
			if err := cfg.ReceiptRepo.Update(ctx, rec); err != nil {
				log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("retry_cron: failed to update receipt")
				continue
			}
			log.Info().Str("receipt_id", rec.ID.String()).Msg("retry_cron: receipt fiscalized via poll")
			if rec.ClientEmail != nil && *rec.ClientEmail != "" {
				if err := cfg.Dispatcher.EnqueueEmail(ctx, EmailJobPayload{ReceiptID: rec.ID.String()}); err != nil {
					log.Warn().Err(err).Str("receipt_id", rec.ID.String()).Msg("retry_cron: failed to enqueue email")
				}
			}
		default:
			rec.Status = model.ReceiptStatusError
			if outcome.ErrorCode != "" {
				code := outcome.ErrorCode
				rec.ErrorCode = &code
			}
			if outcome.ErrorText != "" {
				text := outcome.ErrorText
				rec.ErrorText = &text
			}
			rec.NextRetryAt = nil
			_ = cfg.ReceiptRepo.Update(ctx, rec)
			log.Warn().
				Str("receipt_id", rec.ID.String()).
				Str("error_text", outcome.ErrorText).
				Msg("retry_cron: gateway reported fiscalization failure")
		}
	}
}

// processRetries re-sends errored receipts whose retry window has opened.
func processRetries(ctx context.Context, cfg RetryCronConfig) {
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping re-sends")
		return
	}

	now := time.Now()
	receipts, err := cfg.ReceiptRepo.ListPendingRetries(ctx, now, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending retries")
		return
	}

	if len(receipts) == 0 {
		return
	}
	log.Info().Int("count", len(receipts)).Msg("retry_cron: re-sending errored receipts")

	for i := range receipts {
		rec := &receipts[i]
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		reg, err := cfg.RegisterRepo.FindByID(ctx, rec.RegisterID)
		if err != nil {
			log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("retry_cron: register not found")
			continue
		}

		var query fiscal.CheckQuery
		if err := json.Unmarshal([]byte(rec.PayloadJSON), &query); err != nil {
			log.Error().Err(err).Str("receipt_id", rec.ID.String()).Msg("retry_cron: stored payload is corrupt")
			continue
		}

		client := cfg.Gateways.ClientFor(reg)
		var outcome *fiscal.Outcome
		cbErr := cfg.CB.Execute(func() error {
			out, err := client.RegisterCheck(ctx, fiscal.Operation(rec.Operation), &query)
			if err != nil {
				return err
			}
			outcome = out
			return nil
		})

		if cbErr != nil {
			rec.RetryCount++
			errMsg := cbErr.Error()
			rec.LastError = &errMsg
			nextRetry := time.Now().Add(computeRetryBackoff(rec.RetryCount))
			rec.NextRetryAt = &nextRetry

			if rec.RetryCount >= MaxReceiptRetries {
				rec.NextRetryAt = nil
				log.Error().
					Str("receipt_id", rec.ID.String()).
					Str("external_id", rec.ExternalID).
					Int("retries", rec.RetryCount).
					Msg("retry_cron: max retries exceeded, moving to DLQ")

				payload := fmt.Sprintf(`{"receipt_id":"%s","external_id":"%s"}`, rec.ID, rec.ExternalID)
				SendToDLQ(ctx, cfg.RDB, QueueFiscal, "fiscal", []byte(payload),
					fmt.Sprintf("max retries (%d) exceeded: %s", MaxReceiptRetries, errMsg),
					rec.RetryCount)
			} else {
				log.Warn().
					Str("receipt_id", rec.ID.String()).
					Int("retry_count", rec.RetryCount).
					Time("next_retry_at", *rec.NextRetryAt).
					Msg("retry_cron: gateway retry failed, scheduled next attempt")
			}

			_ = cfg.ReceiptRepo.Update(ctx, rec)
			continue
		}

		model.ApplyRegisterOutcome(rec, outcome)
		_ = cfg.ReceiptRepo.Update(ctx, rec)

		if outcome.State == fiscal.StateRegistered {
			log.Info().
				Str("receipt_id", rec.ID.String()).
				Str("uuid", outcome.UUID).
				Int("total_retries", rec.RetryCount).
				Msg("retry_cron: check registered after retry")
		} else {
			log.Warn().
				Str("receipt_id", rec.ID.String()).
				Str("error_text", outcome.ErrorText).
				Msg("retry_cron: gateway rejected check on retry")
		}
	}
}
