package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already country-prefixed", "79161234567", "+79161234567"},
		{"plus and separators stripped", "+7 (916) 123-45-67", "+79161234567"},
		{"trunk eight replaced with country code", "89161234567", "+79161234567"},
		{"trunk eight with separators", "8 (916) 123-45-67", "+79161234567"},
		{"ten digits get country code", "9161234567", "+79161234567"},
		{"too short becomes empty", "123-45-67", ""},
		{"letters ignored", "call 9161234567 now", "+79161234567"},
		{"empty stays empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.in))
		})
	}
}
