package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases name and strips all whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// BestMatch returns the index of the candidate that best matches target. Candidates are compared
// after normalization: an exact match wins, then a candidate containing target, otherwise the
// candidate with the highest Jaro-Winkler similarity above threshold is chosen. It returns -1 if
// nothing matches.
func BestMatch(target string, candidates []string, threshold float64) int {
	normTarget := NormalizeName(target)
	if normTarget == "" {
		return -1
	}
	for i, c := range candidates {
		if NormalizeName(c) == normTarget {
			return i
		}
	}
	for i, c := range candidates {
		if strings.Contains(NormalizeName(c), normTarget) {
			return i
		}
	}

	best := -1
	var similarity float64
	for i, c := range candidates {
		sim := matchr.JaroWinkler(NormalizeName(c), normTarget, false)
		if sim >= threshold && sim > similarity {
			similarity = sim
			best = i
		}
	}
	return best
}
