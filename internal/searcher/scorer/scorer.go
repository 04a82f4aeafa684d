// Package scorer computes the per-segment relevance signals combined by the
// ranker: lexical overlap with pricing and paperwork boosts, the raw
// currency density of a passage, and the registration-form penalty.
package scorer

import (
	"math"
	"regexp"
	"strings"

	"github.com/FJDaz/I-Am/internal/fuzzy"
	"github.com/FJDaz/I-Am/internal/lexicon"
	"github.com/FJDaz/I-Am/internal/textnorm"
	"github.com/FJDaz/I-Am/internal/tokenizer"
)

// Weight at or above which a matched lexicon entry marks the question as
// price-seeking on its own.
const currencyEntryWeight = 0.9

var adminTokens = set(
	"inscription", "inscriptions", "inscrire", "scolarisation", "scolaire",
	"documents", "document", "justificatif", "justificatifs",
	"piece", "pieces", "papiers", "dossier", "derogation",
)

// pricingTokens is the vocabulary for the lexical currency bonus.
var pricingTokens = set(
	"tarif", "tarifs", "prix", "euro", "euros", "coute", "coûte", "cout", "coût",
	"combien", "montant", "facture", "facturation", "payer", "garderie",
	"tarification", "forfait", "qfi", "quotient",
)

// currencyTokens is the narrower vocabulary that makes a question
// price-seeking.
var currencyTokens = set(
	"tarif", "tarifs", "prix", "euro", "euros", "coute", "cout", "coûte", "coût",
	"combien", "montant", "facture", "facturation", "payer", "garderie",
)

var (
	tariffWord  = regexp.MustCompile(`\btarifs?\b`)
	couponWords = []string{"coupon", "inscription", "formulaire"}
)

// Lexical scores segment content against the question tokens. It is 0 when
// either side is empty or no question token fuzzy-matches the content.
func Lexical(questionTokens []string, content string) float64 {
	return LexicalTokens(questionTokens, content, tokenizer.Tokenize(content))
}

// LexicalTokens is Lexical with the content already tokenized.
func LexicalTokens(questionTokens []string, content string, tokens []string) float64 {
	if content == "" || len(tokens) == 0 || len(questionTokens) == 0 {
		return 0
	}
	matches := 0
	for _, qt := range questionTokens {
		if fuzzy.MatchesAny(qt, tokens) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	ratio := float64(matches) / float64(len(questionTokens))
	density := float64(matches) / float64(len(tokenizer.Unique(tokens)))

	var adminBonus float64
	if containsAny(tokens, adminTokens) {
		adminBonus = 1
		if containsAny(questionTokens, adminTokens) {
			adminBonus = 2.5
		}
	}

	var currencyBonus float64
	segmentHasCurrency := strings.Contains(content, "€") || containsAny(tokens, pricingTokens)
	if containsAny(questionTokens, pricingTokens) && segmentHasCurrency {
		tariffHits := 0
		for _, token := range tokens {
			if _, ok := pricingTokens[token]; ok {
				tariffHits++
			}
		}
		intensity := math.Min(6, float64(countEuros(content))*1.2+float64(countDigits(content))/14+float64(tariffHits)*0.75)
		currencyBonus = 2.5 + intensity
	}

	return float64(matches) + ratio + density + adminBonus + currencyBonus
}

// CurrencySignal measures how much a passage reads like a price list.
func CurrencySignal(content string) float64 {
	if content == "" {
		return 0
	}
	euros := countEuros(content)
	digits := countDigits(content)
	tariffs := len(tariffWord.FindAllStringIndex(strings.ToLower(content), -1))
	if euros == 0 && digits == 0 && tariffs == 0 {
		return 0
	}
	return float64(euros)*1.8 + float64(tariffs)*2.5 + float64(digits)/18
}

// CouponPenalty is 3 for registration coupons and forms, which quote prices
// without being the tariff page.
func CouponPenalty(label, source string) float64 {
	title := label
	if title == "" {
		title = source
	}
	normalized := textnorm.Normalize(title)
	if normalized == "" {
		return 0
	}
	for _, word := range couponWords {
		if strings.Contains(normalized, word) {
			return 3.0
		}
	}
	return 0
}

// QuestionHintsCurrency reports whether the question asks about prices,
// either through its own words or through a strongly weighted lexicon match.
func QuestionHintsCurrency(tokens []string, matches []lexicon.Entry) bool {
	if containsAny(tokens, currencyTokens) {
		return true
	}
	for _, entry := range matches {
		if entry.Weight >= currencyEntryWeight {
			return true
		}
	}
	return false
}

func countEuros(s string) int {
	return strings.Count(s, "€")
}

func countDigits(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			n++
		}
	}
	return n
}

func containsAny(tokens []string, vocabulary map[string]struct{}) bool {
	for _, token := range tokens {
		if _, ok := vocabulary[token]; ok {
			return true
		}
	}
	return false
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
