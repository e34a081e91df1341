package fiscal

// codes.go
// Domain → gateway vocabulary tables. Every table is total over its domain:
// an unmapped value comes back as a typed error, never as a silent zero.
// The numeric/string codes are fixed by the gateway's API contract — a wrong
// mapping produces a legally invalid fiscal document, so nothing here is
// configurable.

import "fmt"

// UnmappedCodeError is returned when a domain value has no gateway code.
type UnmappedCodeError struct {
	Domain string
	Value  string
}

func (e *UnmappedCodeError) Error() string {
	return fmt.Sprintf("fiscal: no gateway code for %s %q", e.Domain, e.Value)
}

// ── Payment type ─────────────────────────────────────────────────────────────

// PaymentType identifies how a payment was made.
type PaymentType string

const (
	PaymentTypeCash     PaymentType = "cash"
	PaymentTypeCashless PaymentType = "cashless"
	PaymentTypeAdvance  PaymentType = "advance"
	PaymentTypeCredit   PaymentType = "credit"
)

// GatewayCode returns the gateway's numeric payment-type code.
func (t PaymentType) GatewayCode() (int, error) {
	switch t {
	case PaymentTypeCash:
		return 0, nil
	case PaymentTypeCashless:
		return 1, nil
	case PaymentTypeAdvance:
		return 2, nil
	case PaymentTypeCredit:
		return 3, nil
	default:
		return 0, &UnmappedCodeError{Domain: "payment type", Value: string(t)}
	}
}

// ── Payment object ───────────────────────────────────────────────────────────

// PaymentObject classifies what a check line is paying for (tag 1212).
type PaymentObject string

const (
	PaymentObjectCommodity                     PaymentObject = "commodity"
	PaymentObjectExcise                        PaymentObject = "excise"
	PaymentObjectJob                           PaymentObject = "job"
	PaymentObjectService                       PaymentObject = "service"
	PaymentObjectGamblingBet                   PaymentObject = "gambling_bet"
	PaymentObjectGamblingPrize                 PaymentObject = "gambling_prize"
	PaymentObjectLottery                       PaymentObject = "lottery"
	PaymentObjectLotteryPrize                  PaymentObject = "lottery_prize"
	PaymentObjectIntellectualActivity          PaymentObject = "intellectual_activity"
	PaymentObjectPayment                       PaymentObject = "payment"
	PaymentObjectAgentCommission               PaymentObject = "agent_commission"
	PaymentObjectComposite                     PaymentObject = "composite"
	PaymentObjectAnother                       PaymentObject = "another"
	PaymentObjectPropertyRight                 PaymentObject = "property_right"
	PaymentObjectNonOperatingGain              PaymentObject = "non_operating_gain"
	PaymentObjectSalesTax                      PaymentObject = "sales_tax"
	PaymentObjectResortFee                     PaymentObject = "resort_fee"
	PaymentObjectDeposit                       PaymentObject = "deposit"
	PaymentObjectExpense                       PaymentObject = "expense"
	PaymentObjectPensionInsuranceIP            PaymentObject = "pension_insurance_ip"
	PaymentObjectPensionInsurance              PaymentObject = "pension_insurance"
	PaymentObjectMedicalInsuranceIP            PaymentObject = "medical_insurance_ip"
	PaymentObjectMedicalInsurance              PaymentObject = "medical_insurance"
	PaymentObjectSocialInsurance               PaymentObject = "social_insurance"
	PaymentObjectCasinoPayment                 PaymentObject = "casino_payment"
	PaymentObjectMarkingNoMarkingExcise        PaymentObject = "commodity_marking_no_marking_excise"
	PaymentObjectMarkingExcise                 PaymentObject = "commodity_marking_excise"
	PaymentObjectMarkingNoMarking              PaymentObject = "commodity_marking_no_marking"
	PaymentObjectMarking                       PaymentObject = "commodity_marking"
)

// GatewayCode returns the gateway's numeric payment-object code (1..33).
func (o PaymentObject) GatewayCode() (int, error) {
	switch o {
	case PaymentObjectCommodity:
		return 1, nil
	case PaymentObjectExcise:
		return 2, nil
	case PaymentObjectJob:
		return 3, nil
	case PaymentObjectService:
		return 4, nil
	case PaymentObjectGamblingBet:
		return 5, nil
	case PaymentObjectGamblingPrize:
		return 6, nil
	case PaymentObjectLottery:
		return 7, nil
	case PaymentObjectLotteryPrize:
		return 8, nil
	case PaymentObjectIntellectualActivity:
		return 9, nil
	case PaymentObjectPayment:
		return 10, nil
	case PaymentObjectAgentCommission:
		return 11, nil
	case PaymentObjectComposite:
		return 12, nil
	case PaymentObjectAnother:
		return 13, nil
	case PaymentObjectPropertyRight:
		return 14, nil
	case PaymentObjectNonOperatingGain:
		return 15, nil
	case PaymentObjectSalesTax:
		return 17, nil
	case PaymentObjectResortFee:
		return 18, nil
	case PaymentObjectDeposit:
		return 19, nil
	case PaymentObjectExpense:
		return 20, nil
	case PaymentObjectPensionInsuranceIP:
		return 21, nil
	case PaymentObjectPensionInsurance:
		return 22, nil
	case PaymentObjectMedicalInsuranceIP:
		return 23, nil
	case PaymentObjectMedicalInsurance:
		return 24, nil
	case PaymentObjectSocialInsurance:
		return 25, nil
	case PaymentObjectCasinoPayment:
		return 26, nil
	case PaymentObjectMarkingNoMarkingExcise:
		return 30, nil
	case PaymentObjectMarkingExcise:
		return 31, nil
	case PaymentObjectMarkingNoMarking:
		return 32, nil
	case PaymentObjectMarking:
		return 33, nil
	default:
		return 0, &UnmappedCodeError{Domain: "payment object", Value: string(o)}
	}
}

// ── Check kind ───────────────────────────────────────────────────────────────

// CheckKind is the check subtype as the sale platform classifies it.
// Every kind collapses into one of six gateway payment-method strings.
type CheckKind string

const (
	KindSell           CheckKind = "sell"
	KindSellReturn     CheckKind = "sell_return"
	KindSellReturnCash CheckKind = "sell_return_cash"

	KindAdvancePayment    CheckKind = "advance_payment"
	KindAdvanceReturn     CheckKind = "advance_return"
	KindAdvanceReturnCash CheckKind = "advance_return_cash"

	KindPrepayment           CheckKind = "prepayment"
	KindPrepaymentReturn     CheckKind = "prepayment_return"
	KindPrepaymentReturnCash CheckKind = "prepayment_return_cash"

	KindFullPrepayment           CheckKind = "full_prepayment"
	KindFullPrepaymentReturn     CheckKind = "full_prepayment_return"
	KindFullPrepaymentReturnCash CheckKind = "full_prepayment_return_cash"

	KindCredit                  CheckKind = "credit"
	KindCreditReturn            CheckKind = "credit_return"
	KindCreditPayment           CheckKind = "credit_payment"
	KindCreditPaymentReturn     CheckKind = "credit_payment_return"
	KindCreditPaymentReturnCash CheckKind = "credit_payment_return_cash"
)

// PaymentMethod returns the gateway payment-method string for the kind.
func (k CheckKind) PaymentMethod() (string, error) {
	switch k {
	case KindSell, KindSellReturn, KindSellReturnCash:
		return "full_payment", nil
	case KindAdvancePayment, KindAdvanceReturn, KindAdvanceReturnCash:
		return "advance", nil
	case KindPrepayment, KindPrepaymentReturn, KindPrepaymentReturnCash:
		return "prepayment", nil
	case KindFullPrepayment, KindFullPrepaymentReturn, KindFullPrepaymentReturnCash:
		return "full_prepayment", nil
	case KindCredit, KindCreditReturn:
		return "credit", nil
	case KindCreditPayment, KindCreditPaymentReturn, KindCreditPaymentReturnCash:
		return "credit_payment", nil
	default:
		return "", &UnmappedCodeError{Domain: "check kind", Value: string(k)}
	}
}

// ── VAT ──────────────────────────────────────────────────────────────────────

// Gateway VAT type strings.
const (
	VATNone = "none"
	VAT0    = "vat0"
	VAT5    = "vat5"
	VAT7    = "vat7"
	VAT10   = "vat10"
	VAT20   = "vat20"
)

// mapVATForKind applies the secondary VAT remap for prepayment-family checks.
// The regulation table currently maps each rate to itself; the table shape is
// kept so a future change to calculated-percentage codes is a one-line edit.
func mapVATForKind(kind CheckKind, vat string) string {
	switch kind {
	case KindPrepayment, KindPrepaymentReturn, KindPrepaymentReturnCash,
		KindFullPrepayment, KindFullPrepaymentReturn, KindFullPrepaymentReturnCash:
		switch vat {
		case VAT10:
			return VAT10
		case VAT20:
			return VAT20
		}
	}
	return vat
}
