package lexicon

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// FileSource reads the JSON document {"lexique_enfance": [...]}. A missing
// or non-array key yields no entries. Entries are read leniently, see
// Decode.
type FileSource struct {
	Path string
}

type document struct {
	Entries json.RawMessage `json:"lexique_enfance"`
}

// rawEntry accepts the loosely typed entries found in hand-edited files.
type rawEntry struct {
	UserTerm   any             `json:"terme_usager"`
	AdminTerms json.RawMessage `json:"terme_admin"`
	Weight     any             `json:"poids"`
}

func (s FileSource) Entries(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading lexicon %s: %w", s.Path, err)
	}
	return Decode(data)
}

// Decode parses a lexicon document. Entries that are not objects or whose
// user term is not a string are skipped. A terme_admin that is not an array
// counts as no admin terms and non-string items in it are dropped. poids
// accepts a number, a numeric string or a boolean; anything else is 0.
func Decode(data []byte) ([]Entry, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing lexicon: %w", err)
	}
	var items []json.RawMessage
	if len(doc.Entries) == 0 || json.Unmarshal(doc.Entries, &items) != nil {
		return nil, nil
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var raw rawEntry
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		userTerm, ok := raw.UserTerm.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			UserTerm:   userTerm,
			AdminTerms: adminTerms(raw.AdminTerms),
			Weight:     weight(raw.Weight),
		})
	}
	return entries, nil
}

func adminTerms(data json.RawMessage) []string {
	var items []any
	if len(data) == 0 || json.Unmarshal(data, &items) != nil {
		return nil
	}
	terms := make([]string, 0, len(items))
	for _, item := range items {
		if term, ok := item.(string); ok {
			terms = append(terms, term)
		}
	}
	return terms
}

func weight(v any) float64 {
	var w float64
	switch v := v.(type) {
	case float64:
		w = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		w = parsed
	case bool:
		if v {
			w = 1
		}
	}
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}

// StaticSource serves entries held in memory.
type StaticSource []Entry

func (s StaticSource) Entries(ctx context.Context) ([]Entry, error) {
	return s, nil
}
