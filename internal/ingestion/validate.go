// Package ingestion loads exported corpus segments into the corpus_segments
// table that the server reads when corpus.source is "postgres".
package ingestion

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/FJDaz/I-Am/internal/corpus"
)

const (
	maxLabelLength   = 512
	maxContentLength = 65536
	maxAnchorLength  = 255
)

// ValidationError holds per-field failures for one segment.
type ValidationError struct {
	Position int
	Fields   map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return fmt.Sprintf("segment %d: %s", e.Position, strings.Join(parts, "; "))
}

// ValidateSegment checks the fields the ranker depends on. position is the
// zero-based index in the export, reported back in the error.
func ValidateSegment(position int, seg corpus.Segment) error {
	errs := make(map[string]string)

	content := strings.TrimSpace(seg.Content)
	if content == "" {
		errs["content"] = "content is required"
	} else if utf8.RuneCountInString(content) > maxContentLength {
		errs["content"] = fmt.Sprintf("content must be at most %d characters", maxContentLength)
	}
	if strings.TrimSpace(seg.Label) == "" && strings.TrimSpace(seg.Source) == "" {
		errs["label"] = "label or source is required"
	} else if utf8.RuneCountInString(seg.Label) > maxLabelLength {
		errs["label"] = fmt.Sprintf("label must be at most %d characters", maxLabelLength)
	}
	if seg.Score != nil && (math.IsNaN(*seg.Score) || math.IsInf(*seg.Score, 0)) {
		errs["score"] = "score must be a finite number"
	}
	if seg.Section != nil && *seg.Section < 0 {
		errs["section"] = "section must not be negative"
	}
	if len(seg.Anchor) > maxAnchorLength {
		errs["anchor"] = fmt.Sprintf("anchor must be at most %d bytes", maxAnchorLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Position: position, Fields: errs}
	}
	return nil
}

// Partition splits segments into the valid ones, in export order, and the
// validation failures of the rest.
func Partition(segments []corpus.Segment) ([]corpus.Segment, []*ValidationError) {
	valid := make([]corpus.Segment, 0, len(segments))
	var rejected []*ValidationError
	for i, seg := range segments {
		if err := ValidateSegment(i, seg); err != nil {
			rejected = append(rejected, err.(*ValidationError))
			continue
		}
		valid = append(valid, seg)
	}
	return valid, rejected
}
