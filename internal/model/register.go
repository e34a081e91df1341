package model

import (
	"time"

	"github.com/google/uuid"

	"fiscalgate/internal/fiscal"
)

// Register stores the per-cash-register gateway settings.
// Mode: "ACTIVE" | "TEST" — selects the production or test gateway base URL.
type Register struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"type:varchar(120);not null"`
	GroupCode string    `gorm:"type:varchar(64);uniqueIndex;not null"`

	Login    string `gorm:"type:varchar(120);not null"`
	Password string `gorm:"type:varchar(120);not null"`

	INN            string `gorm:"type:varchar(20);not null;column:inn"`
	PaymentAddress string `gorm:"type:varchar(255);not null"`
	SNO            string `gorm:"type:varchar(30);not null;column:sno"`
	ServiceEmail   string `gorm:"type:varchar(120)"`

	// ClientInfo: "NONE" | "PHONE" | "EMAIL"
	ClientInfo string `gorm:"type:varchar(10);not null;default:'NONE'"`

	VATMap     map[string]string `gorm:"serializer:json;column:vat_map"`
	DefaultVAT string            `gorm:"type:varchar(10);not null;default:'none';column:default_vat"`

	MeasureMap     map[string]int `gorm:"serializer:json"`
	DefaultMeasure *int

	Mode string `gorm:"type:varchar(10);not null;default:'ACTIVE'"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Settings materializes the fiscal-core settings value for this register.
// serviceEmailDefault is the host-wide sender address used when the register
// has no service email of its own.
func (r *Register) Settings(serviceEmailDefault string) fiscal.RegisterSettings {
	email := r.ServiceEmail
	if email == "" {
		email = serviceEmailDefault
	}
	return fiscal.RegisterSettings{
		GroupCode:      r.GroupCode,
		Login:          r.Login,
		Password:       r.Password,
		INN:            r.INN,
		PaymentAddress: r.PaymentAddress,
		SNO:            r.SNO,
		ServiceEmail:   email,
		ClientInfo:     fiscal.ClientInfoMode(r.ClientInfo),
		VATMap:         r.VATMap,
		DefaultVAT:     r.DefaultVAT,
		MeasureMap:     r.MeasureMap,
		DefaultMeasure: r.DefaultMeasure,
	}
}
