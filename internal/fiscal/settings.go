package fiscal

// ClientInfoMode selects which client contact field the payload carries.
type ClientInfoMode string

const (
	ClientInfoAuto  ClientInfoMode = "NONE" // whichever of email/phone is present
	ClientInfoPhone ClientInfoMode = "PHONE"
	ClientInfoEmail ClientInfoMode = "EMAIL"
)

// RegisterSettings is the per-cash-register configuration the builder and
// client operate on. It is an explicit value — no ambient option lookups.
type RegisterSettings struct {
	GroupCode string // cash-register group identifier at the gateway

	Login    string
	Password string

	INN            string
	PaymentAddress string
	SNO            string // tax regime code
	ServiceEmail   string // company email; caller pre-resolves the host-wide default

	ClientInfo ClientInfoMode

	// VATMap resolves host VAT class keys to gateway VAT type strings.
	// DefaultVAT is the "no VAT" fallback applied when a key is absent;
	// when DefaultVAT itself is empty a line's VAT stays unresolved and
	// validation rejects the payload.
	VATMap     map[string]string
	DefaultVAT string

	// MeasureMap resolves host measure codes to gateway unit tags.
	MeasureMap     map[string]int
	DefaultMeasure *int
}

// resolveVAT looks up a host VAT key, falling back to the configured default.
// Returns nil when neither resolves.
func (s RegisterSettings) resolveVAT(key string) *string {
	if v, ok := s.VATMap[key]; ok && v != "" {
		return &v
	}
	if s.DefaultVAT != "" {
		v := s.DefaultVAT
		return &v
	}
	return nil
}

// resolveMeasure looks up a host measure code, falling back to the configured
// default. Returns nil when neither resolves; the position then omits measure.
func (s RegisterSettings) resolveMeasure(code string) *int {
	if m, ok := s.MeasureMap[code]; ok {
		return &m
	}
	return s.DefaultMeasure
}
