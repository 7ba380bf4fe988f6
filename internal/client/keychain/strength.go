package keychain

import "unicode"

// Strength scores a candidate secret phrase from 0 (unusable) to 4 (strong).
// It is a local heuristic for interactive feedback only and carries no
// security guarantee.
func Strength(secret string) int {
	if len(secret) < 8 {
		return 0
	}

	var lower, upper, digit, other bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}

	classes := 0
	for _, ok := range []bool{lower, upper, digit, other} {
		if ok {
			classes++
		}
	}

	score := 1
	if len(secret) >= 12 {
		score++
	}
	if classes >= 3 {
		score++
	}
	if classes == 4 {
		score++
	}
	return score
}
