package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateRegisterRequest struct {
	Name      string `json:"name"       validate:"required,max=120"`
	GroupCode string `json:"group_code" validate:"required,max=64"`

	Login    string `json:"login"    validate:"required"`
	Password string `json:"password" validate:"required"`

	INN            string `json:"inn"             validate:"required,max=20"`
	PaymentAddress string `json:"payment_address" validate:"required"`
	SNO            string `json:"sno"             validate:"required,oneof=osn usn_income usn_income_outcome envd esn patent"`
	ServiceEmail   string `json:"service_email"   validate:"omitempty,email"`

	ClientInfo string `json:"client_info" validate:"omitempty,oneof=NONE PHONE EMAIL"`

	VATMap     map[string]string `json:"vat_map"`
	DefaultVAT string            `json:"default_vat" validate:"omitempty,oneof=none vat0 vat5 vat7 vat10 vat20"`

	MeasureMap     map[string]int `json:"measure_map"`
	DefaultMeasure *int           `json:"default_measure"`

	Mode string `json:"mode" validate:"omitempty,oneof=ACTIVE TEST"`
}

type UpdateRegisterRequest = CreateRegisterRequest

// ─── Response DTOs ───────────────────────────────────────────────────────────

// RegisterResponse never echoes the gateway password.
type RegisterResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	GroupCode string `json:"group_code"`
	Login     string `json:"login"`

	INN            string `json:"inn"`
	PaymentAddress string `json:"payment_address"`
	SNO            string `json:"sno"`
	ServiceEmail   string `json:"service_email,omitempty"`

	ClientInfo string `json:"client_info"`

	VATMap     map[string]string `json:"vat_map,omitempty"`
	DefaultVAT string            `json:"default_vat"`

	MeasureMap     map[string]int `json:"measure_map,omitempty"`
	DefaultMeasure *int           `json:"default_measure,omitempty"`

	Mode      string `json:"mode"`
	CreatedAt string `json:"created_at"`
}
