// Package fuzzy decides whether two tokens should count as the same word,
// tolerating typos, plural endings and truncated input.
package fuzzy

import "strings"

// TokenMatches reports whether a and b are equal, one contains the other,
// or they are within a length-dependent edit distance. The relation is
// symmetric.
func TokenMatches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if min(la, lb) >= 5 {
		if levenshtein(ra, rb) <= 2 {
			return true
		}
		return la >= 6 && lb >= 6 && string(ra[:la-3]) == string(rb[:lb-3])
	}
	if abs(la-lb) <= 1 {
		return levenshtein(ra, rb) <= 1
	}
	return false
}

// MatchesAny reports whether token matches at least one candidate.
func MatchesAny(token string, candidates []string) bool {
	for _, candidate := range candidates {
		if TokenMatches(token, candidate) {
			return true
		}
	}
	return false
}

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	return levenshtein([]rune(a), []rune(b))
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
