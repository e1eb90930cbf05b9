package utils

import "strings"

// NormalizePhone converts a user-entered phone number into E.164 digits
// without the leading '+', the form expected by wa.me links.
//
// Separators (spaces, dashes, dots, parentheses) are dropped, "+" and "00"
// international prefixes are removed, and Algerian national numbers starting
// with a trunk '0' get the 213 country code:
//
//	NormalizePhone("0555 12 34 56")    // "213555123456", true
//	NormalizePhone("+213 555-123-456") // "213555123456", true
//	NormalizePhone("abc")              // "", false
//
// The second result is false when the input is not a plausible number.
func NormalizePhone(s string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		case r == '+' && b.Len() == 0:
		default:
			return "", false
		}
	}
	d := b.String()
	if strings.HasPrefix(d, "00") {
		d = d[2:]
	} else if strings.HasPrefix(d, "0") && (len(d) == 9 || len(d) == 10) {
		d = "213" + d[1:]
	}
	if len(d) < 8 || len(d) > 15 || d[0] == '0' {
		return "", false
	}
	return d, true
}
