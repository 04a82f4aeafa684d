// Package corpus holds the read-only set of pre-indexed passages scraped
// from the city website, with lazily computed match forms and a URL index
// for passages exported without a link.
package corpus

import (
	"regexp"
	"strconv"
	"strings"
)

// Segment is one passage. It is never modified after load.
type Segment struct {
	Label   string   `json:"label"`
	Source  string   `json:"source"`
	URL     string   `json:"url,omitempty"`
	Content string   `json:"content"`
	Score   *float64 `json:"score,omitempty"`
	Section *int     `json:"section,omitempty"`
	Anchor  string   `json:"anchor,omitempty"`
	Excerpt string   `json:"excerpt,omitempty"`
}

// Title is the label, or the source when the label is empty.
func (s Segment) Title() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Source
}

// SemanticScore is the precomputed backend score, 0 when absent.
func (s Segment) SemanticScore() float64 {
	if s.Score == nil {
		return 0
	}
	return *s.Score
}

var (
	sourceQuery     = regexp.MustCompile(`[#?].*$`)
	sourceExtension = regexp.MustCompile(`\.[^.]+$`)
	sourceVariant   = regexp.MustCompile(`__.+$`)
	sourceNonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
)

// SourceKey reduces a source path or label to the key shared by every
// segment exported from the same page: "Pages/Cantine.html#tarifs" and
// "pages/cantine__2.html" both become "pages-cantine".
func SourceKey(value string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	key = strings.ReplaceAll(key, `\`, "/")
	key = sourceQuery.ReplaceAllString(key, "")
	key = sourceExtension.ReplaceAllString(key, "")
	key = sourceVariant.ReplaceAllString(key, "")
	return sourceNonAlnum.ReplaceAllString(key, "-")
}

// fragment is the anchor appended to a segment URL.
func (s Segment) fragment() string {
	if s.Anchor != "" {
		return s.Anchor
	}
	if s.Section != nil {
		return "voir-plus-section-" + strconv.Itoa(*s.Section)
	}
	return "voir-plus"
}
