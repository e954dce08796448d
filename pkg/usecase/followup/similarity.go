package followup

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// similarity returns the SequenceMatcher ratio of a and b compared
// case-insensitively, character by character
func similarity(a, b string) float64 {
	return difflib.NewMatcher(runes(strings.ToLower(a)), runes(strings.ToLower(b))).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
