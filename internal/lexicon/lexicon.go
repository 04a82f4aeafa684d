// Package lexicon maps the words parents actually type ("nourrice",
// "cantine") to the administrative vocabulary the city publishes
// ("assistante maternelle", "restauration scolaire"), with a weight per
// mapping.
package lexicon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/FJDaz/I-Am/internal/textnorm"
	apperrors "github.com/FJDaz/I-Am/pkg/errors"
)

// Entry is one user-term to admin-terms mapping.
type Entry struct {
	UserTerm   string   `json:"terme_usager"`
	AdminTerms []string `json:"terme_admin"`
	Weight     float64  `json:"poids"`

	NormalizedUser  string   `json:"-"`
	NormalizedAdmin []string `json:"-"`
}

// Source yields raw lexicon entries.
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// Index holds the prepared entries. It loads at most once; a failed load
// leaves it empty and may be retried.
type Index struct {
	mu      sync.RWMutex
	entries []Entry
	loaded  bool
	logger  *slog.Logger
}

func NewIndex() *Index {
	return &Index{logger: slog.Default().With("component", "lexicon")}
}

// Load fills the index from src unless it is already loaded. A failure is
// logged and reported wrapped in ErrLexiconUnavailable; ranking keeps
// working without the lexicon.
func (x *Index) Load(ctx context.Context, src Source) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.loaded {
		return nil
	}
	raw, err := src.Entries(ctx)
	if err != nil {
		x.logger.Warn("lexicon unavailable, ranking without it", "error", err)
		return fmt.Errorf("%w: %w", apperrors.ErrLexiconUnavailable, err)
	}
	x.entries = Prepare(raw)
	x.loaded = true
	x.logger.Info("lexicon loaded", "entries", len(x.entries), "skipped", len(raw)-len(x.entries))
	return nil
}

// Loaded reports whether a load has succeeded.
func (x *Index) Loaded() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.loaded
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Match returns the entries whose normalized user term occurs in the
// normalized question.
func (x *Index) Match(question string) []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.entries) == 0 {
		return nil
	}
	normalized := textnorm.Normalize(question)
	if normalized == "" {
		return nil
	}
	var matches []Entry
	for _, entry := range x.entries {
		if entry.NormalizedUser != "" && strings.Contains(normalized, entry.NormalizedUser) {
			matches = append(matches, entry)
		}
	}
	return matches
}

// Prepare drops entries without a user term and precomputes normalized
// forms. Admin terms that normalize to a single letter or nothing are
// dropped from NormalizedAdmin only.
func Prepare(raw []Entry) []Entry {
	entries := make([]Entry, 0, len(raw))
	for _, entry := range raw {
		if entry.UserTerm == "" {
			continue
		}
		entry.NormalizedUser = textnorm.Normalize(entry.UserTerm)
		entry.NormalizedAdmin = make([]string, 0, len(entry.AdminTerms))
		for _, term := range entry.AdminTerms {
			if n := textnorm.Normalize(term); len(n) > 1 {
				entry.NormalizedAdmin = append(entry.NormalizedAdmin, n)
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
