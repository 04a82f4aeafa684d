// Package textnorm canonicalizes French free text for substring matching:
// accents stripped, digits read as look-alike letters, punctuation dropped.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var leet = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'2': 'z',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'6': 'g',
	'7': 't',
	'8': 'b',
	'9': 'g',
}

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// Normalize lower-cases text, strips diacritics, maps digits through the
// leet table, replaces everything outside [a-z] and whitespace with a
// space, squeezes runs of three or more identical characters down to two
// and collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	stripped := StripDiacritics(strings.ToLower(text))

	var b strings.Builder
	b.Grow(len(stripped))
	var prev rune
	run := 0
	for _, r := range stripped {
		if mapped, ok := leet[r]; ok {
			r = mapped
		}
		if !(r >= 'a' && r <= 'z') && !unicode.IsSpace(r) {
			r = ' '
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run > 2 {
			continue
		}
		b.WriteRune(r)
	}
	return CollapseSpace(b.String())
}

// StripDiacritics decomposes text (NFD) and drops the combining marks.
func StripDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// CollapseSpace trims text and replaces every whitespace run with one space.
func CollapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// StripHTML replaces tags with spaces and collapses the result.
func StripHTML(text string) string {
	if text == "" {
		return ""
	}
	return CollapseSpace(htmlTag.ReplaceAllString(text, " "))
}
