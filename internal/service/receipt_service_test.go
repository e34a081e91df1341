package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fiscalgate/internal/config"
	"fiscalgate/internal/dto"
	"fiscalgate/internal/fiscal"
	"fiscalgate/internal/infra"
	"fiscalgate/internal/model"
	"fiscalgate/internal/repository"
	"fiscalgate/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── In-memory repository stubs ───────────────────────────────────────────────

var (
	_ repository.RegisterRepository = (*stubRegisterRepo)(nil)
	_ repository.ReceiptRepository  = (*stubReceiptRepo)(nil)
)

type stubRegisterRepo struct {
	registers map[uuid.UUID]*model.Register
}

func newStubRegisterRepo() *stubRegisterRepo {
	return &stubRegisterRepo{registers: make(map[uuid.UUID]*model.Register)}
}

func (r *stubRegisterRepo) Create(_ context.Context, reg *model.Register) error {
	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	reg.CreatedAt = time.Now()
	r.registers[reg.ID] = reg
	return nil
}

func (r *stubRegisterRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Register, error) {
	reg, ok := r.registers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return reg, nil
}

func (r *stubRegisterRepo) FindByGroupCode(_ context.Context, groupCode string) (*model.Register, error) {
	for _, reg := range r.registers {
		if reg.GroupCode == groupCode {
			return reg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRegisterRepo) List(_ context.Context) ([]model.Register, error) {
	out := make([]model.Register, 0, len(r.registers))
	for _, reg := range r.registers {
		out = append(out, *reg)
	}
	return out, nil
}

func (r *stubRegisterRepo) Update(_ context.Context, reg *model.Register) error {
	r.registers[reg.ID] = reg
	return nil
}

func (r *stubRegisterRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.registers, id)
	return nil
}

type stubReceiptRepo struct {
	receipts map[uuid.UUID]*model.Receipt
}

func newStubReceiptRepo() *stubReceiptRepo {
	return &stubReceiptRepo{receipts: make(map[uuid.UUID]*model.Receipt)}
}

func (r *stubReceiptRepo) Create(_ context.Context, rec *model.Receipt) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()
	r.receipts[rec.ID] = rec
	return nil
}

func (r *stubReceiptRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Receipt, error) {
	rec, ok := r.receipts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (r *stubReceiptRepo) FindByUUID(_ context.Context, gatewayUUID string) (*model.Receipt, error) {
	for _, rec := range r.receipts {
		if rec.UUID != nil && *rec.UUID == gatewayUUID {
			return rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubReceiptRepo) FindByExternalID(_ context.Context, externalID string) (*model.Receipt, error) {
	for _, rec := range r.receipts {
		if rec.ExternalID == externalID {
			return rec, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubReceiptRepo) Update(_ context.Context, rec *model.Receipt) error {
	r.receipts[rec.ID] = rec
	return nil
}

func (r *stubReceiptRepo) ListAwaitingFiscalization(_ context.Context, limit int) ([]model.Receipt, error) {
	var out []model.Receipt
	for _, rec := range r.receipts {
		if rec.Status == model.ReceiptStatusRegistered && rec.UUID != nil && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *stubReceiptRepo) ListPendingRetries(_ context.Context, now time.Time, limit int) ([]model.Receipt, error) {
	var out []model.Receipt
	for _, rec := range r.receipts {
		if rec.Status == model.ReceiptStatusError && rec.NextRetryAt != nil && !rec.NextRetryAt.After(now) && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type receiptFixture struct {
	svc         ReceiptService
	receiptRepo *stubReceiptRepo
	register    *model.Register
	gatewayHits *int
}

// newReceiptFixture wires the service against an httptest gateway that hands
// out a token and answers every registration with the given handler.
func newReceiptFixture(t *testing.T, register func(w http.ResponseWriter, r *http.Request)) *receiptFixture {
	hits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/getToken", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits++
		register(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		GatewayURL:     srv.URL,
		GatewayTestURL: srv.URL,
		GatewayTimeout: 5 * time.Second,
		ServiceEmail:   "billing@host.example",
	}

	registerRepo := newStubRegisterRepo()
	receiptRepo := newStubReceiptRepo()

	reg := &model.Register{
		Name:           "Main",
		GroupCode:      "shop-1",
		Login:          "login",
		Password:       "pass",
		INN:            "7700000000",
		PaymentAddress: "https://shop.example",
		SNO:            "usn_income",
		ClientInfo:     "NONE",
		VATMap:         map[string]string{"A": "vat20"},
		DefaultVAT:     "none",
		Mode:           "ACTIVE",
	}
	require.NoError(t, registerRepo.Create(context.Background(), reg))

	// Dispatcher aims at a dead address: enqueue failures are tolerated by the
	// code paths under test and no test depends on a delivered job.
	dispatcher := worker.NewDispatcher(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}))
	gateways := infra.NewGatewayFactory(cfg, fiscal.NewMemoryTokenStore())

	return &receiptFixture{
		svc:         NewReceiptService(receiptRepo, registerRepo, gateways, dispatcher),
		receiptRepo: receiptRepo,
		register:    reg,
		gatewayHits: &hits,
	}
}

func acceptWith(uuid string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"uuid": uuid, "status": "wait"})
	}
}

func saleRequest(uniqueID string) dto.RegisterCheckRequest {
	return dto.RegisterCheckRequest{
		UniqueID:    uniqueID,
		Kind:        "sell",
		Sign:        "accrual",
		CreatedAt:   time.Date(2024, 3, 7, 15, 4, 5, 0, time.Local),
		ClientEmail: "buyer@example.com",
		Total:       decimal.NewFromInt(100),
		Lines: []dto.CheckLineRequest{{
			Name:          "Widget",
			Price:         decimal.NewFromInt(100),
			Sum:           decimal.NewFromInt(100),
			Quantity:      1,
			VAT:           "A",
			PaymentObject: "commodity",
		}},
		Payments: []dto.CheckPaymentRequest{{Type: "cashless", Sum: decimal.NewFromInt(100)}},
	}
}

var testCallback = fiscal.Callback{Scheme: "https", Host: "host.example", Port: 443}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestRegisterSalePersistsReceipt(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("u-1"))

	out, err := fx.svc.RegisterSale(context.Background(), fx.register.ID, saleRequest("order-1"), testCallback)
	require.NoError(t, err)

	assert.Equal(t, "registered", out.State)
	assert.Equal(t, "u-1", out.UUID)

	rec, err := fx.receiptRepo.FindByExternalID(context.Background(), "check_order-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusRegistered, rec.Status)
	assert.Equal(t, "sell", rec.Operation)
	require.NotNil(t, rec.UUID)
	assert.Equal(t, "u-1", *rec.UUID)
	assert.NotEmpty(t, rec.PayloadJSON)
	require.NotNil(t, rec.ClientEmail)
	assert.Equal(t, "buyer@example.com", *rec.ClientEmail)
}

func TestRegisterSaleDeduplicatesByExternalID(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("u-2"))

	_, err := fx.svc.RegisterSale(context.Background(), fx.register.ID, saleRequest("order-2"), testCallback)
	require.NoError(t, err)
	firstHits := *fx.gatewayHits

	out, err := fx.svc.RegisterSale(context.Background(), fx.register.ID, saleRequest("order-2"), testCallback)
	require.NoError(t, err)

	assert.Equal(t, "registered", out.State)
	assert.Equal(t, "u-2", out.UUID)
	assert.Equal(t, firstHits, *fx.gatewayHits, "an accepted external id must not be registered twice")
}

func TestRegisterSaleValidationRunsBeforeNetwork(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("never"))

	req := saleRequest("order-3")
	req.ClientEmail = ""
	req.ClientPhone = ""

	_, err := fx.svc.RegisterSale(context.Background(), fx.register.ID, req, testCallback)

	var verr *CheckValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, fiscal.ErrCodeMissingContact, verr.Errors[0].Code)
	assert.Zero(t, *fx.gatewayHits, "nothing may reach the gateway on validation failure")
}

func TestRegisterSaleUnknownRegister(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("never"))

	_, err := fx.svc.RegisterSale(context.Background(), uuid.New(), saleRequest("order-4"), testCallback)
	assert.ErrorIs(t, err, ErrRegisterNotFound)
}

func TestRegisterSaleGatewayRejection(t *testing.T) {
	fx := newReceiptFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":32,"text":"invalid inn"}}`))
	})

	out, err := fx.svc.RegisterSale(context.Background(), fx.register.ID, saleRequest("order-5"), testCallback)
	require.NoError(t, err)

	assert.Equal(t, "failed", out.State)
	assert.Equal(t, "invalid inn", out.ErrorText)

	rec, err := fx.receiptRepo.FindByExternalID(context.Background(), "check_order-5")
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusError, rec.Status)
	assert.Nil(t, rec.NextRetryAt, "a rejection is terminal, not retried")
}

func TestRegisterCorrection(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("u-6"))

	req := dto.CorrectionCheckRequest{
		UniqueID:  "corr-1",
		Kind:      "sell",
		Sign:      "accrual",
		CreatedAt: time.Date(2024, 3, 7, 12, 0, 0, 0, time.Local),
		Payments:  []dto.CheckPaymentRequest{{Type: "cash", Sum: decimal.NewFromInt(50)}},
		Correction: dto.CorrectionInfoRequest{
			Type:           "self",
			DocumentDate:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local),
			DocumentNumber: "ORD-9",
			VATs:           []dto.VATTotalRequest{{Type: "A", Sum: decimal.NewFromInt(50)}},
		},
	}

	out, err := fx.svc.RegisterCorrection(context.Background(), fx.register.ID, req, testCallback)
	require.NoError(t, err)
	assert.Equal(t, "registered", out.State)

	rec, err := fx.receiptRepo.FindByExternalID(context.Background(), "check_corr-1")
	require.NoError(t, err)
	assert.Equal(t, "sell_correction", rec.Operation)
	assert.True(t, rec.Total.Equal(decimal.NewFromInt(50)), "correction total is the payment sum")
}

func TestApplyCallbackDone(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("u-7"))

	_, err := fx.svc.RegisterSale(context.Background(), fx.register.ID, saleRequest("order-7"), testCallback)
	require.NoError(t, err)

	var cb dto.GatewayCallback
	require.NoError(t, json.Unmarshal([]byte(`{
		"uuid": "u-7",
		"status": "done",
		"payload": {
			"receipt_datetime": "07.03.2024 15:10:00",
			"ecr_registration_number": "0000111122223333",
			"fiscal_document_attribute": 1234567890,
			"fiscal_document_number": 120,
			"fiscal_receipt_number": 12,
			"fn_number": "9999000011112222",
			"shift_number": 5,
			"total": 100
		}
	}`), &cb))

	require.NoError(t, fx.svc.ApplyCallback(context.Background(), cb))

	rec, err := fx.receiptRepo.FindByUUID(context.Background(), "u-7")
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusDone, rec.Status)
	require.NotNil(t, rec.RegistrationNumber)
	assert.Equal(t, "0000111122223333", *rec.RegistrationNumber)
	require.NotNil(t, rec.FiscalDocumentNumber)
	assert.Equal(t, int64(120), *rec.FiscalDocumentNumber)
	require.NotNil(t, rec.DocSum)
	assert.True(t, rec.DocSum.Equal(decimal.NewFromInt(100)))

	// Replayed callbacks are a no-op.
	require.NoError(t, fx.svc.ApplyCallback(context.Background(), cb))
}

func TestApplyCallbackFailure(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("u-8"))

	_, err := fx.svc.RegisterSale(context.Background(), fx.register.ID, saleRequest("order-8"), testCallback)
	require.NoError(t, err)

	// Error codes come off the wire as JSON numbers.
	var cb dto.GatewayCallback
	require.NoError(t, json.Unmarshal([]byte(`{"uuid":"u-8","status":"fail","error":{"code":32,"text":"shift closed"}}`), &cb))

	require.NoError(t, fx.svc.ApplyCallback(context.Background(), cb))

	rec, err := fx.receiptRepo.FindByUUID(context.Background(), "u-8")
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusError, rec.Status)
	require.NotNil(t, rec.ErrorCode)
	assert.Equal(t, "32", *rec.ErrorCode)
	require.NotNil(t, rec.ErrorText)
	assert.Equal(t, "shift closed", *rec.ErrorText)
}

func TestApplyCallbackUnknownUUID(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("u-9"))

	err := fx.svc.ApplyCallback(context.Background(), dto.GatewayCallback{UUID: "ghost"})
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestEnqueueSaleCreatesPendingReceipt(t *testing.T) {
	fx := newReceiptFixture(t, acceptWith("never"))

	// The dead dispatcher makes the enqueue fail — the receipt must still be
	// validated and persisted before that point.
	_, err := fx.svc.EnqueueSale(context.Background(), fx.register.ID, saleRequest("order-10"), testCallback)
	require.Error(t, err)

	rec, err := fx.receiptRepo.FindByExternalID(context.Background(), "check_order-10")
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptStatusCreated, rec.Status)
	assert.Zero(t, *fx.gatewayHits, "async registration must not call the gateway inline")
}
