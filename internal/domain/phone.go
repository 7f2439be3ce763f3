package domain

import (
	"fmt"
	"strings"
)

// NormalizePhone converts a Kenyan mobile number to the 12-digit 254XXXXXXXXX form.
// Accepted shapes after dropping non-digits: 0XXXXXXXXX, 254XXXXXXXXX, 7XXXXXXXX, 1XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10 && digits[0] == '0':
		return "254" + digits[1:], nil
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		return digits, nil
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		return "254" + digits, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
}
