package segment

import (
	"regexp"
	"sort"
	"strings"
)

// CompileDelimiters builds a single pattern matching the earliest occurrence
// of any delimiter. Longer delimiters are listed first so that ties at the
// same position resolve to the longest match. Returns nil for an empty list,
// which disables delimiter-based splitting entirely.
func CompileDelimiters(delimiters []string) *regexp.Regexp {
	if len(delimiters) == 0 {
		return nil
	}
	sorted := make([]string, len(delimiters))
	copy(sorted, delimiters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})
	escaped := make([]string, len(sorted))
	for i, d := range sorted {
		escaped[i] = regexp.QuoteMeta(d)
	}
	return regexp.MustCompile(strings.Join(escaped, "|"))
}
