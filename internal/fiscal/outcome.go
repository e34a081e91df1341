package fiscal

// outcome.go
// Classifies gateway responses into the outcome the host persists.

import "time"

// State is the terminality class of a gateway interaction.
type State string

const (
	// StateRegistered — registration accepted, fiscalization in progress.
	StateRegistered State = "registered"
	// StateDone — fiscal document issued; Attributes are populated.
	StateDone State = "done"
	// StatePending — status poll returned "wait"; retry the poll later.
	StatePending State = "pending"
	// StateFailed — the gateway rejected the document.
	StateFailed State = "failed"
)

// Outcome is the result of one gateway interaction.
type Outcome struct {
	State      State
	UUID       string
	ErrorCode  string
	ErrorText  string
	Attributes *FiscalAttributes
}

// FiscalAttributes are the machine-readable proof of registration the host
// persists against its check record.
type FiscalAttributes struct {
	RegistrationNumber      string
	FiscalDocumentAttribute int64
	FiscalDocumentNumber    int64
	FiscalReceiptNumber     int64
	FNNumber                string
	ShiftNumber             int64
	Total                   float64
	ReceiptAt               time.Time
}

const genericRegistrationError = "the gateway did not accept the check registration"

// ParseGatewayTime parses the gateway's DD.MM.YYYY HH:MM:SS timestamps.
func ParseGatewayTime(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, time.Local)
}

func interpretRegister(resp *gatewayResponse) *Outcome {
	if resp.HTTPCode == 200 {
		if resp.UUID != "" {
			return &Outcome{State: StateRegistered, UUID: resp.UUID}
		}
		return failedOutcome(resp)
	}
	return failedOutcome(resp)
}

func interpretStatus(uuid string, resp *gatewayResponse) *Outcome {
	if resp.Status == "wait" {
		return &Outcome{State: StatePending, UUID: uuid}
	}

	if resp.Error != nil && resp.Error.Text != "" {
		out := failedOutcome(resp)
		out.UUID = uuid
		return out
	}

	if resp.Status == "done" && resp.Payload != nil {
		return &Outcome{
			State:      StateDone,
			UUID:       uuid,
			Attributes: extractAttributes(resp.Payload),
		}
	}

	out := failedOutcome(resp)
	out.UUID = uuid
	return out
}

func failedOutcome(resp *gatewayResponse) *Outcome {
	out := &Outcome{State: StateFailed}
	if resp.Error != nil && resp.Error.Text != "" {
		out.ErrorCode = resp.Error.Code.String()
		out.ErrorText = resp.Error.Text
	} else {
		out.ErrorText = genericRegistrationError
	}
	return out
}

func extractAttributes(p *receiptPayload) *FiscalAttributes {
	attrs := &FiscalAttributes{
		RegistrationNumber:      p.ECRRegistrationNumber,
		FiscalDocumentAttribute: p.FiscalDocumentAttribute,
		FiscalDocumentNumber:    p.FiscalDocumentNumber,
		FiscalReceiptNumber:     p.FiscalReceiptNumber,
		FNNumber:                p.FNNumber,
		ShiftNumber:             p.ShiftNumber,
		Total:                   p.Total,
	}
	if t, err := ParseGatewayTime(p.ReceiptDatetime); err == nil {
		attrs.ReceiptAt = t
	}
	return attrs
}
