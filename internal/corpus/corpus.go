package corpus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/FJDaz/I-Am/internal/textnorm"
	"github.com/FJDaz/I-Am/internal/tokenizer"
	apperrors "github.com/FJDaz/I-Am/pkg/errors"
)

// Source yields the segments of a corpus.
type Source interface {
	Segments(ctx context.Context) ([]Segment, error)
}

// Corpus is an immutable, ordered segment list. Per-segment match forms are
// computed on first use and shared by all readers.
type Corpus struct {
	segments []Segment
	derived  []derived
	urls     map[string]string
}

type derived struct {
	once       sync.Once
	normalized string
	tokens     []string
}

// New indexes segments. The slice is copied.
func New(segments []Segment) *Corpus {
	c := &Corpus{
		segments: append([]Segment(nil), segments...),
		derived:  make([]derived, len(segments)),
		urls:     make(map[string]string),
	}
	for _, seg := range c.segments {
		if seg.URL == "" {
			continue
		}
		for _, key := range []string{SourceKey(seg.Source), SourceKey(seg.Label)} {
			if key != "" {
				c.urls[key] = seg.URL
			}
		}
	}
	return c
}

// Load reads segments from src and indexes them.
func Load(ctx context.Context, src Source) (*Corpus, error) {
	segments, err := src.Segments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCorpusLoad, err)
	}
	return New(segments), nil
}

func (c *Corpus) Len() int {
	return len(c.segments)
}

// Segment returns a copy of segment i.
func (c *Corpus) Segment(i int) Segment {
	return c.segments[i]
}

// NormalizedContent is the normalized concatenation of content, label,
// source and excerpt of segment i.
func (c *Corpus) NormalizedContent(i int) string {
	c.derive(i)
	return c.derived[i].normalized
}

// Tokens is the tokenized content of segment i. Callers must not modify it.
func (c *Corpus) Tokens(i int) []string {
	c.derive(i)
	return c.derived[i].tokens
}

func (c *Corpus) derive(i int) {
	d := &c.derived[i]
	d.once.Do(func() {
		seg := c.segments[i]
		d.normalized = textnorm.Normalize(strings.Join([]string{seg.Content, seg.Label, seg.Source, seg.Excerpt}, " "))
		d.tokens = tokenizer.Tokenize(seg.Content)
	})
}

// ResolveURL returns the segment URL, or the URL of another segment
// exported from the same page.
func (c *Corpus) ResolveURL(seg Segment) string {
	if seg.URL != "" {
		return seg.URL
	}
	for _, key := range []string{SourceKey(seg.Source), SourceKey(seg.Label)} {
		if key == "" {
			continue
		}
		if url, ok := c.urls[key]; ok {
			return url
		}
	}
	return ""
}

// AnchoredURL is ResolveURL plus the segment anchor, or a voir-plus section
// anchor. It is empty when no URL resolves.
func (c *Corpus) AnchoredURL(seg Segment) string {
	base := c.ResolveURL(seg)
	if base == "" {
		return ""
	}
	if strings.Contains(base, "#") {
		return base + seg.fragment()
	}
	return base + "#" + seg.fragment()
}
