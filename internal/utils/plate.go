package utils

import "strings"

// NormalizePlate canonicalizes a plate string for lookups: uppercase,
// keeping only letters and digits. Returns "" when nothing survives.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(plate) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
