// Package strings holds the small string helpers the scoring and flagging
// paths share: normalizing factor lists and picking a subject's usual value
// out of noisy history.
package strings

import (
	"strings"
)

// DedupeAndTrim normalizes a factor list: whitespace trimmed, empties and
// duplicates dropped, first-seen order preserved. Scorer signals may report
// the same factor independently; callers present each one once.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// MostFrequent returns the most common non-empty value, or "" when there is
// none. Ties break lexicographically so reruns over the same history always
// pick the same value.
func MostFrequent(values []string) string {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}

	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}
