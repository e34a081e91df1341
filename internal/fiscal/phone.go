package fiscal

import "strings"

const countryPrefix = '7'

// minPhoneDigits is the floor below which an input is treated as unparsable.
const minPhoneDigits = 10

// NormalizePhone reduces raw input to the gateway's +7XXXXXXXXXX form.
// Non-digits are stripped, the country prefix is prepended when missing, and
// anything unparsable yields an empty string rather than a malformed value.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	s := digits.String()
	if len(s) < minPhoneDigits {
		return ""
	}
	// 11 digits starting with the trunk prefix 8: same subscriber number,
	// written the domestic way.
	if len(s) == 11 && s[0] == '8' {
		s = string(countryPrefix) + s[1:]
	}
	if s[0] != countryPrefix {
		s = string(countryPrefix) + s
	}
	return "+" + s
}
