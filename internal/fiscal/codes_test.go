package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentTypeGatewayCode(t *testing.T) {
	cases := map[PaymentType]int{
		PaymentTypeCash:     0,
		PaymentTypeCashless: 1,
		PaymentTypeAdvance:  2,
		PaymentTypeCredit:   3,
	}
	for pt, want := range cases {
		got, err := pt.GatewayCode()
		require.NoError(t, err)
		assert.Equal(t, want, got, "payment type %s", pt)
	}

	_, err := PaymentType("barter").GatewayCode()
	var uerr *UnmappedCodeError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "barter", uerr.Value)
}

func TestPaymentObjectGatewayCode(t *testing.T) {
	cases := map[PaymentObject]int{
		PaymentObjectCommodity:     1,
		PaymentObjectService:       4,
		PaymentObjectPayment:       10,
		PaymentObjectAnother:       13,
		PaymentObjectSalesTax:      17,
		PaymentObjectCasinoPayment: 26,
		PaymentObjectMarkingExcise: 31,
		PaymentObjectMarking:       33,
	}
	for po, want := range cases {
		got, err := po.GatewayCode()
		require.NoError(t, err)
		assert.Equal(t, want, got, "payment object %s", po)
	}

	_, err := PaymentObject("crypto").GatewayCode()
	var uerr *UnmappedCodeError
	require.ErrorAs(t, err, &uerr)
}

func TestCheckKindPaymentMethod(t *testing.T) {
	cases := map[CheckKind]string{
		KindSell:                "full_payment",
		KindSellReturn:          "full_payment",
		KindSellReturnCash:      "full_payment",
		KindAdvancePayment:      "advance",
		KindAdvanceReturn:       "advance",
		KindPrepayment:          "prepayment",
		KindFullPrepayment:      "full_prepayment",
		KindCredit:              "credit",
		KindCreditPayment:       "credit_payment",
		KindCreditPaymentReturn: "credit_payment",
	}
	for kind, want := range cases {
		got, err := kind.PaymentMethod()
		require.NoError(t, err)
		assert.Equal(t, want, got, "kind %s", kind)
	}

	_, err := CheckKind("loan").PaymentMethod()
	var uerr *UnmappedCodeError
	require.ErrorAs(t, err, &uerr)
}

// Prepayment-family checks keep the VAT type the register resolved — the
// remap is an identity table, kept explicit so gateway-side changes for
// those kinds land in one place.
func TestMapVATForKindIsIdentity(t *testing.T) {
	vats := []string{VATNone, VAT0, VAT5, VAT7, VAT10, VAT20}

	for _, vat := range vats {
		assert.Equal(t, vat, mapVATForKind(KindPrepayment, vat))
		assert.Equal(t, vat, mapVATForKind(KindFullPrepayment, vat))
		assert.Equal(t, vat, mapVATForKind(KindAdvancePayment, vat))
		assert.Equal(t, vat, mapVATForKind(KindSell, vat))
	}
}
