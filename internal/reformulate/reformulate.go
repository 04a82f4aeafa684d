// Package reformulate rewrites questions for display: it fixes the usual
// typos, restores proper nouns, restates the request as a noun phrase
// ("les horaires d'ouverture du centre de loisirs") and turns the backend's
// follow-up offers into questions a parent would ask.
package reformulate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FJDaz/I-Am/internal/textnorm"
)

// Fallback is returned when nothing meaningful is left of a question.
const Fallback = "cette information"

// Rule replaces every match of Pattern with Replacement.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

func rule(pattern, replacement string) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Replacement: replacement}
}

// Apply folds rules over s in order.
func Apply(s string, rules []Rule) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.Pattern.ReplaceAllLiteralString(s, r.Replacement)
	}
	return s
}

// Corrections fixes frequent misspellings of local vocabulary.
var Corrections = []Rule{
	rule(`(?i)\bcentere\b`, "centre"),
	rule(`(?i)\bcentrre\b`, "centre"),
	rule(`(?i)\bcentre\s+de\s+lmoisir\b`, "centre de loisirs"),
	rule(`(?i)\blmoisirs?\b`, "loisirs"),
	rule(`(?i)\bmla\b`, "la"),
	rule(`(?i)\bferme de grace\b`, "Ferme de Grâce"),
	rule(`(?i)\bgrace\b`, "grâce"),
	rule(`(?i)\bhorraires\b`, "horaires"),
	rule(`(?i)\bhoraires?\s+d'ouverture\b`, "horaires d'ouverture"),
	rule(`(?i)\bcantine\b`, "cantine"),
	rule(`(?i)\bcentres?\s+de\s+loisirs?\b`, "centre de loisirs"),
}

// ProperCase restores the capitals of place names.
var ProperCase = []Rule{
	rule(`(?i)\bferme de grâce\b`, "Ferme de Grâce"),
	rule(`(?i)\bla ferme de grâce\b`, "la Ferme de Grâce"),
	rule(`(?i)\bde la ferme de grâce\b`, "de la Ferme de Grâce"),
	rule(`(?i)\bdu ferme de grâce\b`, "du centre de loisirs de la Ferme de Grâce"),
	rule(`(?i)\bd'amiens\b`, "d'Amiens"),
}

var (
	openingHours = regexp.MustCompile(`à quelle heure\s+ouvre(?:nt)?\s+(.*)`)

	subjectFixes = []Rule{
		rule(`(?i)\bcentre de loisir\b`, "centre de loisirs"),
		rule(`(?i)\bloisir\b`, "loisirs"),
	}
	articleFixes = []Rule{
		rule(`(?i)\bdu la\b`, "de la"),
		rule(`(?i)\bdu les\b`, "des"),
		rule(`(?i)\bde le\b`, "du"),
	}
	politePrefixes = []Rule{
		rule(`(?i)^merci\s+de\s+`, ""),
		rule(`(?i)^svp\s+`, ""),
		rule(`(?i)^s'il te plaît\s+`, ""),
		rule(`(?i)^peux[-\s]?tu\s+`, ""),
		rule(`(?i)^pouvez[-\s]?vous\s+`, ""),
		rule(`(?i)^je\s+cherche\s+`, ""),
		rule(`(?i)^nous\s+cherchons\s+`, ""),
		rule(`(?i)^est-ce\s+que\s+`, ""),
		rule(`(?i)^(?:quel(le|s)?\s+)?est\s+`, ""),
		rule(`(?i)^quels?\s+?sont\s+`, ""),
		rule(`(?i)^quelles?\s+?sont\s+`, ""),
		rule(`(?i)^combien\s+(co[uû]te|vaut)\s+`, ""),
		rule(`(?i)^(comment|où|quand|pourquoi|combien)\s+`, ""),
	}
	finalFixes = []Rule{
		rule(`(?i)\bferme de grace\b`, "Ferme de Grâce"),
		rule(`(?i)\bcentre de loisir\b`, "centre de loisirs"),
	}

	trailingQuestionMarks = regexp.MustCompile(`\?+$`)
	leadingDeOrDu         = regexp.MustCompile(`^d[eu]`)
)

// Intent restates question as the thing being looked for, lower-case
// first letter, for sentences like "Je suppose que vous recherchez …".
func Intent(question string) string {
	cleaned := trailingQuestionMarks.ReplaceAllString(strings.TrimSpace(question), "")
	cleaned = textnorm.CollapseSpace(Apply(cleaned, Corrections))
	if cleaned == "" {
		return Fallback
	}

	normalized := strings.ToLower(cleaned)
	var out string
	if m := openingHours.FindStringSubmatch(normalized); m != nil {
		out = "les horaires d'ouverture " + openingSubject(m[1])
	} else {
		base := textnorm.CollapseSpace(Apply(normalized, politePrefixes))
		out = base
		if out == "" {
			out = normalized
		}
	}

	out = Apply(out, Corrections)
	out = Apply(out, ProperCase)
	out = textnorm.CollapseSpace(Apply(out, finalFixes))
	if out == "" {
		return Fallback
	}
	return lowerFirst(out)
}

// openingSubject turns "le centre de loisir" into "du centre de loisirs".
func openingSubject(subject string) string {
	subject = Apply(strings.TrimSpace(subject), Corrections)
	subject = textnorm.CollapseSpace(Apply(subject, subjectFixes))
	switch {
	case strings.HasPrefix(subject, "le "):
		subject = "du " + strings.TrimLeft(subject[len("le "):], " ")
	case strings.HasPrefix(subject, "la "):
		subject = "de la " + strings.TrimLeft(subject[len("la "):], " ")
	case strings.HasPrefix(subject, "les "):
		subject = "des " + strings.TrimLeft(subject[len("les "):], " ")
	case !leadingDeOrDu.MatchString(subject):
		subject = "du " + subject
	}
	return textnorm.CollapseSpace(Apply(subject, articleFixes))
}

var followUpPrefixes = []Rule{
	rule(`(?i)^souhaitez-vous\s+que\s+je\s+vous\s+indique\s+`, ""),
	rule(`(?i)^souhaitez-vous\s+que\s+je\s+vous\s+`, ""),
	rule(`(?i)^souhaitez-vous\s+`, ""),
	rule(`(?i)^pourriez-vous\s+me\s+`, ""),
	rule(`(?i)^pourriez-vous\s+`, ""),
	rule(`(?i)^pouvez-vous\s+me\s+`, ""),
	rule(`(?i)^pouvez-vous\s+`, ""),
	rule(`(?i)^voulez-vous\s+`, ""),
	rule(`(?i)^dois-je\s+`, ""),
	rule(`(?i)^je\s+souhaite\s+`, ""),
	rule(`(?i)^je\s+voudrais\s+`, ""),
	rule(`(?i)^je\s+veux\s+`, ""),
	rule(`(?i)^je\s+dois\s+`, ""),
	rule(`(?i)^me\s+`, ""),
}

var leadingJe = regexp.MustCompile(`(?i)^je\s+`)

// FollowUp rewrites an assistant offer ("Souhaitez-vous que je vous
// indique les tarifs ?") as a question the parent can click ("Les tarifs
// ?"). HTML is stripped; the result always ends with punctuation.
func FollowUp(question string) string {
	s := textnorm.StripHTML(question)
	if s == "" {
		return ""
	}
	for i := 0; i < 3; i++ {
		s = leadingJe.ReplaceAllLiteralString(s, "")
	}
	s = Apply(s, followUpPrefixes)
	s = upperFirst(s)
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "?") && !strings.HasSuffix(s, "!") {
		s += "?"
	}
	return s
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
