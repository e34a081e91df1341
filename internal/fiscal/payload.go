package fiscal

// payload.go
// Builds the gateway wire JSON for sale / refund / correction operations.
// A sale query carries a receipt section, a correction query a correction
// section — never both.

import (
	"encoding/base64"
	"fmt"
)

const (
	// timestampLayout is the gateway's required DD.MM.YYYY HH:MM:SS format.
	timestampLayout = "02.01.2006 15:04:05"

	// CallbackPath is where the gateway posts the registration result.
	CallbackPath = "/v1/checks/callback"

	documentKindCheck = "check"

	maxNameLength        = 128
	maxSupplierNameLen   = 256
	maxCorrectionDescLen = 255

	markCodeTypeGS1M = "gs1m"

	// placeholderINN is sent when a supplier has no tax id.
	placeholderINN = "000000000000"
)

// ExternalID derives the deterministic gateway correlation identifier for a
// check. Identical inputs always produce the identical id, which is what lets
// the gateway deduplicate retried registration calls.
func ExternalID(uniqueID string) string {
	return documentKindCheck + "_" + uniqueID
}

// ── Wire types ───────────────────────────────────────────────────────────────

// CheckQuery is the registration request body. Exactly one of Receipt or
// Correction is set.
type CheckQuery struct {
	Timestamp  string           `json:"timestamp"`
	ExternalID string           `json:"external_id"`
	Service    ServiceBlock     `json:"service"`
	Receipt    *ReceiptBlock    `json:"receipt,omitempty"`
	Correction *CorrectionBlock `json:"correction,omitempty"`
}

type ServiceBlock struct {
	CallbackURL string `json:"callback_url"`
}

type ReceiptBlock struct {
	Client   ClientBlock    `json:"client"`
	Company  CompanyBlock   `json:"company"`
	Payments []PaymentEntry `json:"payments"`
	Items    []Position     `json:"items"`
	Total    float64        `json:"total"`
}

type ClientBlock struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CompanyBlock struct {
	Email          string `json:"email,omitempty"`
	SNO            string `json:"sno"`
	INN            string `json:"inn"`
	PaymentAddress string `json:"payment_address"`
}

type PaymentEntry struct {
	Type int     `json:"type"`
	Sum  float64 `json:"sum"`
}

type Position struct {
	Name               string         `json:"name"`
	Price              float64        `json:"price"`
	Sum                float64        `json:"sum"`
	Quantity           float64        `json:"quantity"`
	Measure            *int           `json:"measure,omitempty"`
	PaymentMethod      string         `json:"payment_method"`
	PaymentObject      int            `json:"payment_object"`
	VAT                VATBlock       `json:"vat"`
	MarkProcessingMode string         `json:"mark_processing_mode,omitempty"`
	MarkCode           *MarkCode      `json:"mark_code,omitempty"`
	AgentInfo          *AgentInfo     `json:"agent_info,omitempty"`
	SupplierInfo       *SupplierBlock `json:"supplier_info,omitempty"`
}

// VATBlock keeps Type a pointer: an unresolved VAT stays nil so validation
// can reject it before anything is sent.
type VATBlock struct {
	Type *string `json:"type"`
}

type MarkCode struct {
	GS1M string `json:"gs1m"`
}

// AgentInfo is the tag 1222 block; the platform always acts as "another".
type AgentInfo struct {
	Type string `json:"type"`
}

type SupplierBlock struct {
	Phones []string `json:"phones,omitempty"`
	Name   string   `json:"name,omitempty"`
	INN    string   `json:"inn"`
}

type CorrectionBlock struct {
	Company        CompanyBlock        `json:"company"`
	CorrectionInfo CorrectionInfoBlock `json:"correction_info"`
	Payments       []PaymentEntry      `json:"payments"`
	VATs           []VATEntry          `json:"vats"`
}

type CorrectionInfoBlock struct {
	Type       string `json:"type"`
	BaseDate   string `json:"base_date"`
	BaseNumber string `json:"base_number"`
	BaseName   string `json:"base_name"`
}

type VATEntry struct {
	Type string  `json:"type"`
	Sum  float64 `json:"sum"`
}

// ── Operations ───────────────────────────────────────────────────────────────

// Operation is the gateway registration endpoint segment.
type Operation string

const (
	OperationSell           Operation = "sell"
	OperationSellRefund     Operation = "sell_refund"
	OperationSellCorrection Operation = "sell_correction"
)

// SaleOperation picks the registration operation for a sale check.
func SaleOperation(sign CalculatedSign) Operation {
	if sign == SignConsumption {
		return OperationSellRefund
	}
	return OperationSell
}

// CorrectionOperation picks the registration operation for a correction check.
func CorrectionOperation(sign CalculatedSign) Operation {
	if sign == SignConsumption {
		return OperationSellRefund
	}
	return OperationSellCorrection
}

// ── Callback ─────────────────────────────────────────────────────────────────

// Callback carries the host request's scheme/host/port used to derive the
// callback URL the gateway posts results to.
type Callback struct {
	Scheme string
	Host   string
	Port   int
}

// URL renders the callback URL, eliding the port for 80/443.
func (c Callback) URL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	if c.Port == 0 || c.Port == 80 || c.Port == 443 {
		return fmt.Sprintf("%s://%s%s", scheme, c.Host, CallbackPath)
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, c.Host, c.Port, CallbackPath)
}

// ── Builder ──────────────────────────────────────────────────────────────────

// Builder turns check aggregates into gateway wire payloads for one register.
type Builder struct {
	settings RegisterSettings
}

func NewBuilder(settings RegisterSettings) *Builder {
	return &Builder{settings: settings}
}

// BuildSaleQuery builds the registration payload for a sale or refund check.
func (b *Builder) BuildSaleQuery(check *Check, cb Callback) (*CheckQuery, error) {
	query := &CheckQuery{
		Timestamp:  check.CreatedAt.Format(timestampLayout),
		ExternalID: ExternalID(check.UniqueID),
		Service:    ServiceBlock{CallbackURL: cb.URL()},
		Receipt: &ReceiptBlock{
			Company: CompanyBlock{
				Email:          b.settings.ServiceEmail,
				SNO:            b.settings.SNO,
				INN:            b.settings.INN,
				PaymentAddress: b.settings.PaymentAddress,
			},
			Total: check.Total.InexactFloat64(),
		},
	}

	query.Receipt.Client = b.buildClient(check)

	payments, err := b.buildPayments(check.Payments)
	if err != nil {
		return nil, err
	}
	query.Receipt.Payments = payments

	for i := range check.Lines {
		pos, err := b.buildPosition(check, &check.Lines[i])
		if err != nil {
			return nil, err
		}
		query.Receipt.Items = append(query.Receipt.Items, *pos)
	}

	return query, nil
}

// BuildCorrectionQuery builds the registration payload for a correction check.
func (b *Builder) BuildCorrectionQuery(check *CorrectionCheck, cb Callback) (*CheckQuery, error) {
	query := &CheckQuery{
		Timestamp:  check.CreatedAt.Format(timestampLayout),
		ExternalID: ExternalID(check.UniqueID),
		Service:    ServiceBlock{CallbackURL: cb.URL()},
		Correction: &CorrectionBlock{
			Company: CompanyBlock{
				SNO:            b.settings.SNO,
				INN:            b.settings.INN,
				PaymentAddress: b.settings.PaymentAddress,
			},
			CorrectionInfo: CorrectionInfoBlock{
				Type:       check.Correction.Type,
				BaseDate:   check.Correction.DocumentDate.Format(timestampLayout),
				BaseNumber: check.Correction.DocumentNumber,
				BaseName:   truncate(check.Correction.Description, maxCorrectionDescLen),
			},
		},
	}

	payments, err := b.buildPayments(check.Payments)
	if err != nil {
		return nil, err
	}
	query.Correction.Payments = payments

	for _, v := range check.Correction.VATs {
		resolved := b.settings.resolveVAT(v.Type)
		entry := VATEntry{Sum: v.Sum.InexactFloat64()}
		if resolved != nil {
			entry.Type = *resolved
		}
		query.Correction.VATs = append(query.Correction.VATs, entry)
	}

	return query, nil
}

func (b *Builder) buildClient(check *Check) ClientBlock {
	phone := NormalizePhone(check.ClientPhone)

	switch b.settings.ClientInfo {
	case ClientInfoPhone:
		return ClientBlock{Phone: phone}
	case ClientInfoEmail:
		return ClientBlock{Email: check.ClientEmail}
	default:
		return ClientBlock{Email: check.ClientEmail, Phone: phone}
	}
}

func (b *Builder) buildPayments(payments []Payment) ([]PaymentEntry, error) {
	entries := make([]PaymentEntry, 0, len(payments))
	for _, p := range payments {
		code, err := p.Type.GatewayCode()
		if err != nil {
			return nil, err
		}
		entries = append(entries, PaymentEntry{Type: code, Sum: p.Sum.InexactFloat64()})
	}
	return entries, nil
}

// buildPosition builds one receipt item from a check line.
func (b *Builder) buildPosition(check *Check, line *CheckLine) (*Position, error) {
	method, err := check.Kind.PaymentMethod()
	if err != nil {
		return nil, err
	}
	object, err := line.PaymentObject.GatewayCode()
	if err != nil {
		return nil, err
	}

	pos := &Position{
		Name:          truncate(line.Name, maxNameLength),
		Price:         line.Price.InexactFloat64(),
		Sum:           line.Sum.InexactFloat64(),
		Quantity:      line.Quantity,
		Measure:       b.settings.resolveMeasure(line.MeasureCode),
		PaymentMethod: method,
		PaymentObject: object,
		VAT:           VATBlock{Type: b.buildPositionVAT(check.Kind, line.VAT)},
	}

	if line.MarkingCode != "" {
		pos.MarkProcessingMode = "0"
		pos.MarkCode = &MarkCode{
			GS1M: base64.StdEncoding.EncodeToString([]byte(line.MarkingCode)),
		}
	}

	if line.Supplier != nil {
		pos.AgentInfo = &AgentInfo{Type: "another"}
		pos.SupplierInfo = buildSupplier(line.Supplier)
	}

	return pos, nil
}

func (b *Builder) buildPositionVAT(kind CheckKind, key string) *string {
	resolved := b.settings.resolveVAT(key)
	if resolved == nil {
		return nil
	}
	mapped := mapVATForKind(kind, *resolved)
	return &mapped
}

func buildSupplier(supplier *SupplierInfo) *SupplierBlock {
	block := &SupplierBlock{
		Name: truncate(supplier.Name, maxSupplierNameLen),
		INN:  supplier.INN,
	}
	if block.INN == "" {
		block.INN = placeholderINN
	}
	for _, raw := range supplier.Phones {
		if phone := NormalizePhone(raw); phone != "" {
			block.Phones = append(block.Phones, phone)
		}
	}
	return block
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
