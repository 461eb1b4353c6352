// Package strings holds the list helpers behind the catalog's dropdown
// options and allowed-file-type constraints.
package strings

import (
	"strings"
)

func dedupe(values []string, canon func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		c := canon(v)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			result = append(result, c)
		}
	}
	return result
}

// DedupeAndTrim drops duplicates and blank entries from a list, trimming
// whitespace from each element. Order is preserved, so dropdown options
// keep the order the administrator entered them in.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with lowercasing, for lists that
// compare case-insensitively such as allowed file extensions.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

// NormalizeExt lowercases a file extension and strips a leading dot, so
// ".PDF", "PDF", and "pdf" all compare equal.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}
