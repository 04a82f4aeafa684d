// Package snippet picks the sentence of a passage that best answers the
// question and judges how well a passage covers the question.
package snippet

import (
	"math"
	"strings"
	"unicode"

	"github.com/FJDaz/I-Am/internal/fuzzy"
	"github.com/FJDaz/I-Am/internal/textnorm"
	"github.com/FJDaz/I-Am/internal/tokenizer"
)

// DefaultMaxChars bounds excerpts, in characters.
const DefaultMaxChars = 400

const ellipsis = "…"

// Extract is ExtractN with DefaultMaxChars.
func Extract(content string, questionTokens []string) string {
	return ExtractN(content, questionTokens, DefaultMaxChars)
}

// ExtractN collapses whitespace and returns the passage when it fits in
// maxChars. Otherwise it returns the first sentence with the most question
// tokens, cut to maxChars-3 characters plus an ellipsis when still too long.
func ExtractN(content string, questionTokens []string, maxChars int) string {
	if content == "" {
		return ""
	}
	if maxChars <= 3 {
		maxChars = DefaultMaxChars
	}
	normalized := textnorm.CollapseSpace(content)
	if runeLen(normalized) <= maxChars {
		return normalized
	}

	sentences := splitSentences(normalized)
	best := sentences[0]
	bestScore := math.Inf(-1)
	for _, sentence := range sentences {
		tokens := tokenizer.Tokenize(sentence)
		if len(tokens) == 0 {
			continue
		}
		score := 0.0
		for _, qt := range questionTokens {
			if fuzzy.MatchesAny(qt, tokens) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = sentence
		}
	}

	best = strings.TrimSpace(best)
	if runeLen(best) > maxChars {
		r := []rune(best)
		best = strings.TrimRightFunc(string(r[:maxChars-3]), unicode.IsSpace) + ellipsis
	}
	return best
}

// splitSentences splits after '.', '?', '!' or ';' when whitespace follows.
// The input has already been whitespace-collapsed.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	var prev rune
	for i, r := range text {
		if unicode.IsSpace(r) && isTerminator(prev) {
			sentences = append(sentences, text[start:i])
			start = i + 1
		}
		prev = r
	}
	return append(sentences, text[start:])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '?' || r == '!' || r == ';'
}

func runeLen(s string) int {
	return len([]rune(s))
}
