package snippet

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FJDaz/I-Am/internal/tokenizer"
)

// Tone grades how well a passage covers the question.
type Tone string

const (
	ToneOK      Tone = "ok"
	ToneInfo    Tone = "info"
	ToneWarn    Tone = "warn"
	ToneNeutral Tone = "neutral"
)

// Alignment is the local verdict shown next to the preview.
type Alignment struct {
	Tone    Tone   `json:"status"`
	Message string `json:"message,omitempty"`
}

// Assess measures the share of question keywords (tokens longer than three
// characters) found in the snippet or its full passage.
func Assess(questionTokens []string, snippet, content string) Alignment {
	var keywords []string
	for _, token := range questionTokens {
		if len(token) > 3 {
			keywords = append(keywords, token)
		}
	}
	if len(keywords) == 0 {
		return Alignment{Tone: ToneNeutral}
	}

	available := make(map[string]struct{})
	for _, token := range tokenizer.Tokenize(snippet) {
		available[token] = struct{}{}
	}
	for _, token := range tokenizer.Tokenize(content) {
		available[token] = struct{}{}
	}
	if len(available) == 0 {
		return Alignment{Tone: ToneNeutral}
	}

	var matched []string
	for _, keyword := range keywords {
		if _, ok := available[keyword]; ok {
			matched = append(matched, keyword)
		}
	}
	coverage := float64(len(matched)) / float64(len(keywords))
	switch {
	case coverage >= 0.55:
		details := ""
		if len(matched) > 0 {
			details = fmt.Sprintf(" (%s)", strings.Join(matched[:min(3, len(matched))], ", "))
		}
		return Alignment{Tone: ToneOK, Message: "Analyse RAG : correspondance forte avec votre requête" + details + "."}
	case coverage >= 0.35:
		return Alignment{Tone: ToneInfo, Message: "L'extrait couvre partiellement votre demande. Souhaitez-vous que je vérifie un autre point ?"}
	default:
		return Alignment{Tone: ToneWarn, Message: "Je ne vois pas vos mots clés dans cet extrait. Dois-je fouiller d'autres sources locales ?"}
	}
}

type granularity struct {
	patterns []*regexp.Regexp
	prompt   string
}

var granularities = []granularity{
	{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bcat[eé]g`),
			regexp.MustCompile(`\bquotient\b`),
			regexp.MustCompile(`\btranche\b`),
		},
		prompt: "Si oui, à quelle catégorie appartenez-vous ?",
	},
	{
		patterns: []*regexp.Regexp{regexp.MustCompile(`\b(p[eé]riod|vacance|semaine|jour|mois)\b`)},
		prompt:   "Si oui, quelle période ou quelle semaine souhaitez-vous explorer ?",
	},
	{
		patterns: []*regexp.Regexp{regexp.MustCompile(`\b(restaurant|cantine|repas|restauration)\b`)},
		prompt:   "Si oui, souhaitez-vous que je détaille la formule (repas, demi-pension, fréquentation) ?",
	},
	{
		patterns: []*regexp.Regexp{regexp.MustCompile(`\b(structure|site|accueil|centre|école|ecole)\b`)},
		prompt:   "Si oui, quelle structure ou quel site visez-vous ?",
	},
}

const defaultGranularity = "Souhaitez-vous que je précise un point particulier ?"

// GranularityPrompt suggests the follow-up that would narrow the answer:
// tariff category, period, meal formula or site.
func GranularityPrompt(snippet string, questionTokens []string) string {
	haystack := strings.ToLower(snippet + " " + strings.Join(questionTokens, " "))
	for _, g := range granularities {
		for _, p := range g.patterns {
			if p.MatchString(haystack) {
				return g.prompt
			}
		}
	}
	return defaultGranularity
}
