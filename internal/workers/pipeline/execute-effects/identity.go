package executeeffects

import (
	"strings"
	"unicode"

	"command-pipeline/internal/models"
)

// matchesCandidate reports whether an ERP record found by phone belongs to
// the caller. Both sides must carry the same number; a supplied name or
// email must not materially differ from what the record holds. An email
// alone never identifies a caller.
func matchesCandidate(supplied models.Identity, candidate models.CustomerIdentity) bool {
	if !samePhone(candidate.Phone, supplied.Phone) {
		return false
	}
	if supplied.Email != "" && candidate.Email != "" && !strings.EqualFold(supplied.Email, candidate.Email) {
		return false
	}
	return namesCompatible(supplied.Name, candidate.Name)
}

// namesCompatible accepts an empty name on either side, or when every token
// of the shorter name appears in the longer one ("Pat" vs "Pat Jones").
func namesCompatible(a, b string) bool {
	ta, tb := nameTokens(a), nameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return true
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	have := make(map[string]bool, len(tb))
	for _, t := range tb {
		have[t] = true
	}
	for _, t := range ta {
		if !have[t] {
			return false
		}
	}
	return true
}

func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}

// samePhone compares the last ten digits, so +1 and formatting differences
// do not matter.
func samePhone(a, b string) bool {
	da, db := lastDigits(a, 10), lastDigits(b, 10)
	return da != "" && da == db
}

func lastDigits(s string, n int) string {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < n {
		return ""
	}
	return string(digits[len(digits)-n:])
}
