package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestValidateCheckQueryMissingContact(t *testing.T) {
	query := &CheckQuery{Receipt: &ReceiptBlock{
		Items: []Position{{VAT: VATBlock{Type: strptr(VAT20)}}},
	}}

	errs := ValidateCheckQuery(query)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeMissingContact, errs[0].Code)
}

func TestValidateCheckQueryMissingTax(t *testing.T) {
	query := &CheckQuery{Receipt: &ReceiptBlock{
		Client: ClientBlock{Email: "a@b.c"},
		Items: []Position{
			{VAT: VATBlock{Type: strptr(VAT20)}},
			{VAT: VATBlock{}},
			{VAT: VATBlock{}}, // second defect not reported — scan stops
		},
	}}

	errs := ValidateCheckQuery(query)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeMissingTax, errs[0].Code)
}

func TestValidateCheckQueryBothDefects(t *testing.T) {
	query := &CheckQuery{Receipt: &ReceiptBlock{
		Items: []Position{{VAT: VATBlock{}}},
	}}

	errs := ValidateCheckQuery(query)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrCodeMissingContact, errs[0].Code)
	assert.Equal(t, ErrCodeMissingTax, errs[1].Code)
}

func TestValidateCheckQueryPhoneSatisfiesContact(t *testing.T) {
	query := &CheckQuery{Receipt: &ReceiptBlock{
		Client: ClientBlock{Phone: "+79161234567"},
		Items:  []Position{{VAT: VATBlock{Type: strptr(VATNone)}}},
	}}
	assert.Empty(t, ValidateCheckQuery(query))
}

func TestValidateCheckQuerySkipsCorrections(t *testing.T) {
	query := &CheckQuery{Correction: &CorrectionBlock{}}
	assert.Empty(t, ValidateCheckQuery(query))
}
