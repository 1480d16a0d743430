package util

import "strings"

// NormalizeAddress reduces a provider-supplied counterparty address to the
// canonical digit form used as the conversation key.
//
// WhatsApp sends Brazilian mobile numbers without the ninth digit
// (55 + 2-digit area code + 8 digits); stored records carry it. The ninth
// digit is reinserted so both sides converge on the same key.
func NormalizeAddress(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "55") && len(digits) == 12 {
		// 55 + DDD + 8-digit subscriber: insert the mobile ninth digit.
		return digits[:4] + "9" + digits[4:]
	}

	return digits
}
