// Package tokenizer splits questions and corpus passages into the
// accent-free, lower-case word tokens the scorer compares.
package tokenizer

import (
	"strings"

	"github.com/FJDaz/I-Am/internal/textnorm"
)

// MinTokenLen is the shortest token kept; "le", "de", "à" never score.
const MinTokenLen = 3

// Tokenize strips diacritics, lower-cases, splits on every character that is
// not an ASCII letter, digit or underscore, and drops tokens shorter than
// MinTokenLen. Order and duplicates are preserved.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ToLower(textnorm.StripDiacritics(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < MinTokenLen {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Unique returns tokens without duplicates, first occurrence first.
func Unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
