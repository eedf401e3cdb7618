package types

import (
	"regexp"
	"strings"
)

var psPeCode = regexp.MustCompile(`(?i)^(P[SE])\s*(\d+)`)

// ComplementCode extracts the normalized code from a complement header or
// configuration label: "PS 1 Plus convenio" -> "PS1", "A210-Plus idiomas" -> "A210".
func ComplementCode(label string) string {
	s := strings.TrimSpace(label)
	if m := psPeCode.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1]) + m[2]
	}
	if i := strings.Index(s, "-"); i > 0 {
		s = s[:i]
	}
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// IsDigits reports whether s is a non-empty run of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
