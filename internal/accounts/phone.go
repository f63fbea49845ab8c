package accounts

import "strings"

const phoneDigits = 10

var phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", "\t", "")

// NormalizePhone reduces a phone number to the 10 digit form it is stored
// under. A leading 91 country code is dropped.
func NormalizePhone(phone string) string {
	normalized := phoneNoise.Replace(strings.TrimSpace(phone))
	if strings.HasPrefix(normalized, "91") && len(normalized) > phoneDigits {
		normalized = normalized[2:]
	}
	if len(normalized) >= phoneDigits {
		return normalized[len(normalized)-phoneDigits:]
	}
	return normalized
}

func validPhone(normalized string) bool {
	if len(normalized) != phoneDigits {
		return false
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
