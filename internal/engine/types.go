package engine

import (
	"github.com/FJDaz/I-Am/internal/assistant"
	"github.com/FJDaz/I-Am/internal/intent"
	"github.com/FJDaz/I-Am/internal/searcher/ranker"
	"github.com/FJDaz/I-Am/internal/snippet"
)

// Status of an ask.
const (
	StatusAnswered = "answered"
	StatusFailed   = "failed"
)

// Breakdown shows how a result's score was built.
type Breakdown struct {
	Lexical        float64 `json:"lexical"`
	LexiconBonus   float64 `json:"lexicon_bonus"`
	Semantic       float64 `json:"semantic"`
	CurrencyBoost  float64 `json:"currency_boost"`
	CouponPenalty  float64 `json:"coupon_penalty"`
	LexiconPenalty float64 `json:"lexicon_penalty"`
	LexiconHits    int     `json:"lexicon_hits"`
}

// ResultView is one ranked passage as returned to clients.
type ResultView struct {
	Rank        int       `json:"rank"`
	Label       string    `json:"label"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	AnchoredURL string    `json:"anchored_url,omitempty"`
	Score       float64   `json:"score"`
	Confidence  string    `json:"confidence"`
	Excerpt     string    `json:"excerpt"`
	Breakdown   Breakdown `json:"breakdown"`
}

func newResultViews(segments []ranker.RankedSegment) []ResultView {
	views := make([]ResultView, 0, len(segments))
	for i, s := range segments {
		views = append(views, ResultView{
			Rank:        i + 1,
			Label:       s.Segment.Title(),
			Source:      s.Segment.Source,
			URL:         s.URL,
			AnchoredURL: s.AnchoredURL,
			Score:       s.Score,
			Confidence:  s.Confidence(),
			Excerpt:     s.Excerpt,
			Breakdown: Breakdown{
				Lexical:        s.LexicalScore,
				LexiconBonus:   s.LexiconBonus,
				Semantic:       s.SemanticScore,
				CurrencyBoost:  s.CurrencyBoost,
				CouponPenalty:  s.CouponPenalty,
				LexiconPenalty: s.LexiconPenalty,
				LexiconHits:    s.LexiconHits,
			},
		})
	}
	return views
}

// Preview is the answer built from local data alone, shown while the
// backend works and kept when it fails.
type Preview struct {
	Message      string             `json:"message,omitempty"`
	Reformulated string             `json:"reformulated,omitempty"`
	Alignment    *snippet.Alignment `json:"alignment,omitempty"`
	FollowUp     string             `json:"follow_up,omitempty"`
	SourceURL    string             `json:"source_url,omitempty"`
}

// RankResponse is the local ranking of a question.
type RankResponse struct {
	SessionID          string         `json:"session_id"`
	Question           string         `json:"question"`
	SearchQuestion     string         `json:"search_question"`
	NormalizedQuestion string         `json:"normalized_question"`
	Tokens             []string       `json:"tokens"`
	LexiconTerms       []string       `json:"lexicon_terms,omitempty"`
	Intent             intent.Intent  `json:"intent"`
	CurrencyIntent     bool           `json:"currency_intent"`
	Results            []ResultView   `json:"results"`
	NoLocalMatch       bool           `json:"no_local_match"`
	LocalPreview       Preview        `json:"local_preview"`
	LatencyMs          int64          `json:"latency_ms"`
	result             *ranker.Result `json:"-"`
}

// AskResponse is a ranking plus the backend's answer.
type AskResponse struct {
	RankResponse
	QuestionIntent intent.Intent       `json:"question_intent"`
	Status         string              `json:"status"`
	Answer         *assistant.Response `json:"answer,omitempty"`
	FollowUp       string              `json:"follow_up,omitempty"`
	Error          string              `json:"error,omitempty"`
	ErrorKind      string              `json:"error_kind,omitempty"`
	CacheHit       bool                `json:"cache_hit"`
	Attempts       int                 `json:"attempts"`
}
