// Package ranker combines the lexical, lexicon, semantic and currency
// signals of every corpus segment into one composite score and keeps the
// best few passages for a question.
package ranker

import (
	"math"
	"regexp"
	"strings"

	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/internal/intent"
	"github.com/FJDaz/I-Am/internal/lexicon"
	"github.com/FJDaz/I-Am/internal/searcher/merger"
	"github.com/FJDaz/I-Am/internal/searcher/scorer"
	"github.com/FJDaz/I-Am/internal/snippet"
	"github.com/FJDaz/I-Am/internal/textnorm"
	"github.com/FJDaz/I-Am/internal/tokenizer"
)

const (
	DefaultTopK = 3

	semanticWeight = 1.0
	lexicalWeight  = 1.0
	// lexiconPenaltyFactor scales the currency signal of price-list segments
	// when the question matched the lexicon but is not about prices.
	lexiconPenaltyFactor = 0.6
)

// RankedSegment is a segment with its score breakdown for one question.
type RankedSegment struct {
	Segment        corpus.Segment `json:"segment"`
	Index          int            `json:"index"`
	URL            string         `json:"url,omitempty"`
	AnchoredURL    string         `json:"anchored_url,omitempty"`
	Score          float64        `json:"score"`
	Excerpt        string         `json:"excerpt"`
	LexicalScore   float64        `json:"lexical_score"`
	LexiconBonus   float64        `json:"lexicon_bonus"`
	SemanticScore  float64        `json:"semantic_score"`
	CurrencyBoost  float64        `json:"currency_boost"`
	CouponPenalty  float64        `json:"coupon_penalty"`
	LexiconPenalty float64        `json:"lexicon_penalty"`
	LexiconHits    int            `json:"lexicon_hits"`
	LexiconWeight  float64        `json:"lexicon_weight"`
}

// Confidence buckets the composite score for display.
func (s RankedSegment) Confidence() string {
	switch {
	case s.Score >= 6:
		return "forte"
	case s.Score >= 3:
		return "moyenne"
	default:
		return "faible"
	}
}

// Result is the ranking of one fused question plus the question features
// the payload needs.
type Result struct {
	Question           string          `json:"question"`
	NormalizedQuestion string          `json:"normalized_question"`
	Tokens             []string        `json:"tokens"`
	LexiconMatches     []lexicon.Entry `json:"lexicon_matches"`
	Intent             intent.Intent   `json:"intent"`
	CurrencyIntent     bool            `json:"currency_intent"`
	Segments           []RankedSegment `json:"segments"`
}

// Empty reports whether no segment survived.
func (r Result) Empty() bool {
	return len(r.Segments) == 0
}

// Options tune a Ranker. Zero values take defaults.
type Options struct {
	TopK            int
	SnippetMaxChars int
}

// Ranker scores a fixed corpus. It never modifies segments and is safe for
// concurrent use.
type Ranker struct {
	corpus  *corpus.Corpus
	lexicon *lexicon.Index
	opts    Options
}

// New returns a Ranker over c. lex may be nil or empty.
func New(c *corpus.Corpus, lex *lexicon.Index, opts Options) *Ranker {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.SnippetMaxChars <= 0 {
		opts.SnippetMaxChars = snippet.DefaultMaxChars
	}
	return &Ranker{corpus: c, lexicon: lex, opts: opts}
}

// Rank scores every segment against question and returns at most TopK
// segments, best first, ties in corpus order. A segment is discarded when
// its lexical, lexicon, semantic and currency signals are all non-positive,
// or when its composite score is non-positive. The result is empty when the
// question has neither tokens nor lexicon matches.
func (r *Ranker) Rank(question string) Result {
	res := Result{
		Question:           question,
		NormalizedQuestion: NormalizeQuestion(question),
		Tokens:             tokenizer.Tokenize(question),
	}
	if r.lexicon != nil {
		res.LexiconMatches = r.lexicon.Match(question)
	}
	if len(res.Tokens) == 0 && len(res.LexiconMatches) == 0 {
		res.Intent = intent.Intent{Label: intent.Unknown}
		return res
	}

	intentInput := res.NormalizedQuestion
	if intentInput == "" {
		intentInput = question
	}
	res.Intent = intent.Detect(intentInput)
	res.CurrencyIntent = scorer.QuestionHintsCurrency(res.Tokens, res.LexiconMatches)

	n := r.corpus.Len()
	scored := make(map[int]RankedSegment)
	candidates := make([]merger.Candidate, 0, n)
	for i := 0; i < n; i++ {
		ranked, ok := r.score(i, res)
		if !ok {
			continue
		}
		scored[i] = ranked
		candidates = append(candidates, merger.Candidate{Index: i, Score: ranked.Score})
	}

	for _, c := range merger.TopK(candidates, r.opts.TopK) {
		ranked := scored[c.Index]
		ranked.Excerpt = snippet.ExtractN(ranked.Segment.Content, res.Tokens, r.opts.SnippetMaxChars)
		ranked.URL = r.corpus.ResolveURL(ranked.Segment)
		ranked.AnchoredURL = r.corpus.AnchoredURL(ranked.Segment)
		res.Segments = append(res.Segments, ranked)
	}
	return res
}

func (r *Ranker) score(i int, q Result) (RankedSegment, bool) {
	seg := r.corpus.Segment(i)
	lexical := scorer.LexicalTokens(q.Tokens, seg.Content, r.corpus.Tokens(i))
	bonus := lexicon.ComputeBonus(r.corpus.NormalizedContent(i), q.LexiconMatches)
	semantic := seg.SemanticScore()
	if math.IsNaN(semantic) || math.IsInf(semantic, 0) {
		semantic = 0
	}

	var currencyBoost, couponPenalty, lexiconPenalty float64
	switch {
	case q.CurrencyIntent:
		currencyBoost = scorer.CurrencySignal(seg.Content)
		couponPenalty = scorer.CouponPenalty(seg.Label, seg.Source)
	case len(q.LexiconMatches) > 0:
		lexiconPenalty = math.Max(0, scorer.CurrencySignal(seg.Content)*lexiconPenaltyFactor)
	}

	if lexical <= 0 && bonus.Value <= 0 && semantic <= 0 && currencyBoost <= 0 {
		return RankedSegment{}, false
	}
	total := semantic*semanticWeight +
		lexical*lexicalWeight +
		bonus.Value +
		currencyBoost -
		couponPenalty -
		lexiconPenalty +
		q.Intent.Weight
	if total <= 0 {
		return RankedSegment{}, false
	}
	return RankedSegment{
		Segment:        seg,
		Index:          i,
		Score:          total,
		LexicalScore:   lexical,
		LexiconBonus:   bonus.Value,
		SemanticScore:  semantic,
		CurrencyBoost:  currencyBoost,
		CouponPenalty:  couponPenalty,
		LexiconPenalty: lexiconPenalty,
		LexiconHits:    bonus.Hits,
		LexiconWeight:  bonus.TotalWeight,
	}, true
}

var trailingQuestionMarks = regexp.MustCompile(`\?+$`)

// NormalizeQuestion collapses whitespace, drops trailing question marks and
// lower-cases.
func NormalizeQuestion(q string) string {
	q = textnorm.CollapseSpace(q)
	q = trailingQuestionMarks.ReplaceAllString(q, "")
	return strings.ToLower(strings.TrimSpace(q))
}
