package identity

import "strings"

// Normalize canonicalizes a phone number to country-code-prefixed digits.
// Upstream data mixes "+51 987 654 321", "987654321" and bare jid digits,
// so everything non-numeric is dropped before prefixing.
func Normalize(raw, countryCode string) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return ""
	}
	countryCode = digitsOnly(countryCode)
	if countryCode == "" {
		return digits
	}
	if strings.HasPrefix(digits, countryCode) && len(digits) > len(countryCode) {
		return digits
	}
	return countryCode + digits
}

// Candidates returns the lookup forms to try, raw digits first, then the
// normalized form, without duplicates.
func Candidates(raw, countryCode string) []string {
	out := make([]string, 0, 2)
	appendUnique := func(value string) {
		if value == "" {
			return
		}
		for _, existing := range out {
			if existing == value {
				return
			}
		}
		out = append(out, value)
	}
	appendUnique(digitsOnly(raw))
	appendUnique(Normalize(raw, countryCode))
	return out
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
