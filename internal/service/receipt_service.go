package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fiscalgate/internal/dto"
	"fiscalgate/internal/fiscal"
	"fiscalgate/internal/infra"
	"fiscalgate/internal/model"
	"fiscalgate/internal/repository"
	"fiscalgate/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrReceiptNotFound = errors.New("receipt not found")

// CheckValidationError aggregates the pre-send defects found in a built
// payload. Nothing was sent to the gateway when this is returned.
type CheckValidationError struct {
	Errors []fiscal.ValidationError
}

func (e *CheckValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.Message)
	}
	return "check validation failed: " + strings.Join(msgs, "; ")
}

type ReceiptService interface {
	// RegisterSale builds, validates and registers a sale/refund check
	// synchronously, persisting the attempt as a receipt.
	RegisterSale(ctx context.Context, registerID uuid.UUID, req dto.RegisterCheckRequest, cb fiscal.Callback) (*dto.OutcomeResponse, error)
	// RegisterCorrection does the same for a correction check.
	RegisterCorrection(ctx context.Context, registerID uuid.UUID, req dto.CorrectionCheckRequest, cb fiscal.Callback) (*dto.OutcomeResponse, error)
	// EnqueueSale builds and validates synchronously but hands the gateway
	// call to the worker pool.
	EnqueueSale(ctx context.Context, registerID uuid.UUID, req dto.RegisterCheckRequest, cb fiscal.Callback) (*dto.ReceiptResponse, error)
	// PollStatus returns the receipt for a gateway UUID, polling the report
	// endpoint first when fiscalization is still outstanding.
	PollStatus(ctx context.Context, gatewayUUID string) (*dto.ReceiptResponse, error)
	// ApplyCallback ingests the result the gateway posts to the callback URL.
	ApplyCallback(ctx context.Context, cb dto.GatewayCallback) error
}

type receiptService struct {
	receiptRepo  repository.ReceiptRepository
	registerRepo repository.RegisterRepository
	gateways     *infra.GatewayFactory
	dispatcher   *worker.Dispatcher
}

func NewReceiptService(
	receiptRepo repository.ReceiptRepository,
	registerRepo repository.RegisterRepository,
	gateways *infra.GatewayFactory,
	dispatcher *worker.Dispatcher,
) ReceiptService {
	return &receiptService{
		receiptRepo:  receiptRepo,
		registerRepo: registerRepo,
		gateways:     gateways,
		dispatcher:   dispatcher,
	}
}

// ── Sale / refund ────────────────────────────────────────────────────────────

func (s *receiptService) RegisterSale(ctx context.Context, registerID uuid.UUID, req dto.RegisterCheckRequest, cb fiscal.Callback) (*dto.OutcomeResponse, error) {
	reg, err := s.findRegister(ctx, registerID)
	if err != nil {
		return nil, err
	}

	check := req.ToCheck()
	builder := fiscal.NewBuilder(s.gateways.SettingsFor(reg))
	query, err := builder.BuildSaleQuery(check, cb)
	if err != nil {
		return nil, err
	}
	if verrs := fiscal.ValidateCheckQuery(query); len(verrs) > 0 {
		return nil, &CheckValidationError{Errors: verrs}
	}

	operation := fiscal.SaleOperation(check.Sign)
	rec, handled, err := s.upsertReceipt(ctx, reg, query, receiptSeed{
		kind:        string(check.Kind),
		operation:   operation,
		clientEmail: check.ClientEmail,
		total:       check.Total,
	})
	if err != nil {
		return nil, err
	}
	if handled {
		return receiptOutcome(rec), nil
	}

	return s.sendRegistration(ctx, reg, rec, operation, query)
}

func (s *receiptService) RegisterCorrection(ctx context.Context, registerID uuid.UUID, req dto.CorrectionCheckRequest, cb fiscal.Callback) (*dto.OutcomeResponse, error) {
	reg, err := s.findRegister(ctx, registerID)
	if err != nil {
		return nil, err
	}

	check := req.ToCorrectionCheck()
	builder := fiscal.NewBuilder(s.gateways.SettingsFor(reg))
	query, err := builder.BuildCorrectionQuery(check, cb)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, p := range check.Payments {
		total = total.Add(p.Sum)
	}

	operation := fiscal.CorrectionOperation(check.Sign)
	rec, handled, err := s.upsertReceipt(ctx, reg, query, receiptSeed{
		kind:      string(check.Kind),
		operation: operation,
		total:     total,
	})
	if err != nil {
		return nil, err
	}
	if handled {
		return receiptOutcome(rec), nil
	}

	return s.sendRegistration(ctx, reg, rec, operation, query)
}

// EnqueueSale validates up front so the caller gets payload defects
// synchronously; only the gateway round trip is deferred to the pool.
func (s *receiptService) EnqueueSale(ctx context.Context, registerID uuid.UUID, req dto.RegisterCheckRequest, cb fiscal.Callback) (*dto.ReceiptResponse, error) {
	reg, err := s.findRegister(ctx, registerID)
	if err != nil {
		return nil, err
	}

	check := req.ToCheck()
	builder := fiscal.NewBuilder(s.gateways.SettingsFor(reg))
	query, err := builder.BuildSaleQuery(check, cb)
	if err != nil {
		return nil, err
	}
	if verrs := fiscal.ValidateCheckQuery(query); len(verrs) > 0 {
		return nil, &CheckValidationError{Errors: verrs}
	}

	operation := fiscal.SaleOperation(check.Sign)
	rec, handled, err := s.upsertReceipt(ctx, reg, query, receiptSeed{
		kind:        string(check.Kind),
		operation:   operation,
		clientEmail: check.ClientEmail,
		total:       check.Total,
	})
	if err != nil {
		return nil, err
	}
	if !handled {
		if err := s.dispatcher.EnqueueFiscal(ctx, worker.FiscalJobPayload{ReceiptID: rec.ID.String()}); err != nil {
			return nil, fmt.Errorf("enqueue fiscal job: %w", err)
		}
	}
	return receiptToResponse(rec), nil
}

// ── Status ───────────────────────────────────────────────────────────────────

func (s *receiptService) PollStatus(ctx context.Context, gatewayUUID string) (*dto.ReceiptResponse, error) {
	rec, err := s.receiptRepo.FindByUUID(ctx, gatewayUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}

	if rec.Status == model.ReceiptStatusRegistered {
		reg, err := s.findRegister(ctx, rec.RegisterID)
		if err != nil {
			return nil, err
		}
		outcome, err := s.gateways.ClientFor(reg).CheckStatus(ctx, gatewayUUID)
		if err != nil {
			return nil, err
		}
		if err := s.applyStatusOutcome(ctx, rec, outcome); err != nil {
			return nil, err
		}
	}

	return receiptToResponse(rec), nil
}

func (s *receiptService) ApplyCallback(ctx context.Context, cb dto.GatewayCallback) error {
	rec, err := s.receiptRepo.FindByUUID(ctx, cb.UUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReceiptNotFound
		}
		return err
	}
	if rec.Status == model.ReceiptStatusDone {
		return nil // already settled, callback replayed
	}
	return s.applyStatusOutcome(ctx, rec, callbackOutcome(cb))
}

// applyStatusOutcome settles a receipt from a fiscalization result, whether
// it arrived by poll or by callback. A "done" with a client email queues the
// confirmation mail.
func (s *receiptService) applyStatusOutcome(ctx context.Context, rec *model.Receipt, out *fiscal.Outcome) error {
	switch out.State {
	case fiscal.StatePending:
		return nil
	case fiscal.StateDone:
		model.ApplyFiscalAttributes(rec, out.Attributes)
		rec.Status = model.ReceiptStatusDone
		if err := s.receiptRepo.Update(ctx, rec); err != nil {
			return err
		}
		if rec.ClientEmail != nil && *rec.ClientEmail != "" {
			_ = s.dispatcher.EnqueueEmail(ctx, worker.EmailJobPayload{ReceiptID: rec.ID.String()})
		}
		return nil
	default:
		rec.Status = model.ReceiptStatusError
		rec.NextRetryAt = nil
		if out.ErrorCode != "" {
			code := out.ErrorCode
			rec.ErrorCode = &code
		}
		if out.ErrorText != "" {
			text := out.ErrorText
			rec.ErrorText = &text
		}
		return s.receiptRepo.Update(ctx, rec)
	}
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (s *receiptService) findRegister(ctx context.Context, id uuid.UUID) (*model.Register, error) {
	reg, err := s.registerRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegisterNotFound
		}
		return nil, err
	}
	return reg, nil
}

type receiptSeed struct {
	kind        string
	operation   fiscal.Operation
	clientEmail string
	total       decimal.Decimal
}

// upsertReceipt finds or creates the receipt row for an external id.
// Returns handled=true when the gateway already accepted this payload —
// identical unique ids must not register twice.
func (s *receiptService) upsertReceipt(ctx context.Context, reg *model.Register, query *fiscal.CheckQuery, seed receiptSeed) (*model.Receipt, bool, error) {
	payloadJSON, err := json.Marshal(query)
	if err != nil {
		return nil, false, fmt.Errorf("marshal payload: %w", err)
	}

	existing, err := s.receiptRepo.FindByExternalID(ctx, query.ExternalID)
	if err == nil {
		if existing.Status == model.ReceiptStatusRegistered || existing.Status == model.ReceiptStatusDone {
			return existing, true, nil
		}
		// Previous attempt never got through — replace the payload and retry.
		existing.PayloadJSON = string(payloadJSON)
		existing.Status = model.ReceiptStatusCreated
		existing.ErrorCode = nil
		existing.ErrorText = nil
		existing.NextRetryAt = nil
		if err := s.receiptRepo.Update(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	rec := &model.Receipt{
		RegisterID:  reg.ID,
		ExternalID:  query.ExternalID,
		Kind:        seed.kind,
		Operation:   string(seed.operation),
		Status:      model.ReceiptStatusCreated,
		Total:       seed.total,
		PayloadJSON: string(payloadJSON),
	}
	if seed.clientEmail != "" {
		email := seed.clientEmail
		rec.ClientEmail = &email
	}
	if err := s.receiptRepo.Create(ctx, rec); err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

// sendRegistration performs the synchronous gateway call and stores the result.
// Transport and auth failures schedule the receipt for the retry cron before
// being returned to the caller.
func (s *receiptService) sendRegistration(ctx context.Context, reg *model.Register, rec *model.Receipt, operation fiscal.Operation, query *fiscal.CheckQuery) (*dto.OutcomeResponse, error) {
	outcome, err := s.gateways.ClientFor(reg).RegisterCheck(ctx, operation, query)
	if err != nil {
		rec.Status = model.ReceiptStatusError
		rec.RetryCount++
		errMsg := err.Error()
		rec.LastError = &errMsg
		nextRetry := time.Now().Add(time.Minute)
		rec.NextRetryAt = &nextRetry
		_ = s.receiptRepo.Update(ctx, rec)
		return nil, err
	}

	model.ApplyRegisterOutcome(rec, outcome)
	if err := s.receiptRepo.Update(ctx, rec); err != nil {
		return nil, err
	}

	return &dto.OutcomeResponse{
		State:     string(outcome.State),
		UUID:      outcome.UUID,
		ErrorCode: outcome.ErrorCode,
		ErrorText: outcome.ErrorText,
	}, nil
}

// receiptOutcome summarizes a stored receipt as a registration outcome,
// used when a duplicate external id short-circuits the gateway call.
func receiptOutcome(rec *model.Receipt) *dto.OutcomeResponse {
	out := &dto.OutcomeResponse{}
	switch rec.Status {
	case model.ReceiptStatusDone:
		out.State = string(fiscal.StateDone)
	default:
		out.State = string(fiscal.StateRegistered)
	}
	if rec.UUID != nil {
		out.UUID = *rec.UUID
	}
	return out
}

// callbackOutcome maps the gateway's callback body onto an outcome.
func callbackOutcome(cb dto.GatewayCallback) *fiscal.Outcome {
	if cb.Status == "wait" {
		return &fiscal.Outcome{State: fiscal.StatePending, UUID: cb.UUID}
	}
	if cb.Error != nil && cb.Error.Text != "" {
		return &fiscal.Outcome{
			State:     fiscal.StateFailed,
			UUID:      cb.UUID,
			ErrorCode: cb.Error.Code.String(),
			ErrorText: cb.Error.Text,
		}
	}
	if cb.Status == "done" && cb.Payload != nil {
		attrs := &fiscal.FiscalAttributes{
			RegistrationNumber:      cb.Payload.ECRRegistrationNumber,
			FiscalDocumentAttribute: cb.Payload.FiscalDocumentAttribute,
			FiscalDocumentNumber:    cb.Payload.FiscalDocumentNumber,
			FiscalReceiptNumber:     cb.Payload.FiscalReceiptNumber,
			FNNumber:                cb.Payload.FNNumber,
			ShiftNumber:             cb.Payload.ShiftNumber,
			Total:                   cb.Payload.Total,
		}
		if t, err := fiscal.ParseGatewayTime(cb.Payload.ReceiptDatetime); err == nil {
			attrs.ReceiptAt = t
		}
		return &fiscal.Outcome{State: fiscal.StateDone, UUID: cb.UUID, Attributes: attrs}
	}
	return &fiscal.Outcome{
		State:     fiscal.StateFailed,
		UUID:      cb.UUID,
		ErrorText: "the gateway did not report a fiscalized document",
	}
}

func receiptToResponse(rec *model.Receipt) *dto.ReceiptResponse {
	resp := &dto.ReceiptResponse{
		ID:                      rec.ID.String(),
		RegisterID:              rec.RegisterID.String(),
		ExternalID:              rec.ExternalID,
		Kind:                    rec.Kind,
		Operation:               rec.Operation,
		Status:                  rec.Status,
		UUID:                    rec.UUID,
		Total:                   rec.Total,
		RegistrationNumber:      rec.RegistrationNumber,
		FiscalDocumentAttribute: rec.FiscalDocumentAttribute,
		FiscalDocumentNumber:    rec.FiscalDocumentNumber,
		FiscalReceiptNumber:     rec.FiscalReceiptNumber,
		FNNumber:                rec.FNNumber,
		ShiftNumber:             rec.ShiftNumber,
		DocSum:                  rec.DocSum,
		ErrorCode:               rec.ErrorCode,
		ErrorText:               rec.ErrorText,
		CreatedAt:               rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.ReceiptAt != nil {
		s := rec.ReceiptAt.Format(time.RFC3339)
		resp.ReceiptAt = &s
	}
	return resp
}
