// Package conversation keeps the bounded turn history of one session and
// fuses it with a follow-up question into the text that gets ranked.
package conversation

import (
	"slices"
	"strings"
	"sync"

	"github.com/FJDaz/I-Am/internal/textnorm"
)

// Role is the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two conversation roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one HTML-stripped, length-capped message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Limits bound the history.
type Limits struct {
	// MaxTurns is the number of turns kept; older turns are evicted first.
	MaxTurns int
	// MaxChars caps one turn; longer content is cut and suffixed with "...".
	MaxChars int
	// Window is how many recent turns feed the fused search question.
	Window int
}

// DefaultLimits are 12 turns of 500 characters and a 4-turn fusion window.
func DefaultLimits() Limits {
	return Limits{MaxTurns: 12, MaxChars: 500, Window: 4}
}

// History is safe for concurrent use.
type History struct {
	mu     sync.Mutex
	turns  []Turn
	limits Limits
}

// NewHistory returns an empty history. Non-positive limits take defaults.
func NewHistory(limits Limits) *History {
	def := DefaultLimits()
	if limits.MaxTurns <= 0 {
		limits.MaxTurns = def.MaxTurns
	}
	if limits.MaxChars <= 0 {
		limits.MaxChars = def.MaxChars
	}
	if limits.Window <= 0 {
		limits.Window = def.Window
	}
	return &History{limits: limits}
}

// Push appends a turn. Content is HTML-stripped and whitespace-collapsed
// first; empty results and unknown roles are not stored. It reports whether
// a turn was added.
func (h *History) Push(role Role, content string) bool {
	if !role.Valid() {
		return false
	}
	cleaned := textnorm.StripHTML(content)
	if cleaned == "" {
		return false
	}
	if r := []rune(cleaned); len(r) > h.limits.MaxChars {
		cleaned = string(r[:h.limits.MaxChars]) + "..."
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, Turn{Role: role, Content: cleaned})
	if over := len(h.turns) - h.limits.MaxTurns; over > 0 {
		h.turns = append(h.turns[:0:0], h.turns[over:]...)
	}
	return true
}

// Turns returns a copy of the history, oldest first.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn(nil), h.turns...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Reset drops every turn.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// BuildSearchQuestion fuses question with recent context so that a short
// follow-up ("et le mercredi ?") is ranked with what it refers to. Among the
// last Window non-empty turns it takes the latest assistant turn and the
// latest user turn (unless it repeats the question), then the question
// itself, drops duplicates and joins them with newlines. It returns "" when
// the cleaned question is empty.
func (h *History) BuildSearchQuestion(question string) string {
	cleaned := textnorm.StripHTML(question)
	if cleaned == "" {
		return ""
	}

	h.mu.Lock()
	var recent []Turn
	for i := len(h.turns) - 1; i >= 0 && len(recent) < h.limits.Window; i-- {
		if h.turns[i].Content != "" {
			recent = append(recent, h.turns[i])
		}
	}
	h.mu.Unlock()

	// recent is newest first.
	var fragments []string
	for _, turn := range recent {
		if turn.Role == RoleAssistant {
			fragments = append(fragments, turn.Content)
			break
		}
	}
	for _, turn := range recent {
		if turn.Role == RoleUser {
			if turn.Content != cleaned {
				fragments = append(fragments, turn.Content)
			}
			break
		}
	}
	fragments = append(fragments, cleaned)

	unique := fragments[:0]
	for _, f := range fragments {
		if !slices.Contains(unique, f) {
			unique = append(unique, f)
		}
	}
	return strings.Join(unique, "\n")
}
