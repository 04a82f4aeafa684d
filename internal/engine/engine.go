// Package engine answers questions about the municipal site. It owns the
// corpus and the lexicon, ranks every question locally against them, and
// forwards the best passages to the remote assistant.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/FJDaz/I-Am/internal/analytics"
	"github.com/FJDaz/I-Am/internal/assistant"
	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/internal/intent"
	"github.com/FJDaz/I-Am/internal/lexicon"
	"github.com/FJDaz/I-Am/internal/reformulate"
	"github.com/FJDaz/I-Am/internal/searcher/cache"
	"github.com/FJDaz/I-Am/internal/searcher/ranker"
	"github.com/FJDaz/I-Am/internal/session"
	apperrors "github.com/FJDaz/I-Am/pkg/errors"
	"github.com/FJDaz/I-Am/pkg/logger"
	"github.com/FJDaz/I-Am/pkg/metrics"
	"github.com/FJDaz/I-Am/pkg/resilience"
	"github.com/FJDaz/I-Am/pkg/tracing"
)

const (
	// MaxQuestionChars bounds a question in runes.
	MaxQuestionChars = 2000

	// lexiconRetryInterval spaces reload attempts of a missing lexicon.
	lexiconRetryInterval = time.Minute
)

// Deps are the collaborators of an Engine. Corpus and Sessions are
// required; Assistant is required for Ask. Everything else may be nil.
type Deps struct {
	Corpus    corpus.Source
	Lexicon   lexicon.Source
	Sessions  *session.Store
	Assistant *assistant.Client
	Cache     *cache.AnswerCache
	Collector *analytics.Collector
	Metrics   *metrics.Metrics
}

// Options tune ranking and the request sent to the backend.
type Options struct {
	TopK            int
	SnippetMaxChars int
	Instructions    string
	// Tracing logs the span tree of every ask at debug level.
	Tracing bool
}

type Engine struct {
	deps Deps
	opts Options

	loadMu        sync.Mutex
	ready         atomic.Bool
	ranker        atomic.Pointer[ranker.Ranker]
	corpus        *corpus.Corpus
	lexicon       *lexicon.Index
	lexiconRetry  time.Time
	lexiconFailed atomic.Bool

	logger *slog.Logger
}

func New(deps Deps, opts Options) *Engine {
	if opts.Instructions == "" {
		opts.Instructions = assistant.DefaultInstructions
	}
	return &Engine{
		deps:    deps,
		opts:    opts,
		lexicon: lexicon.NewIndex(),
		logger:  slog.Default().With("component", "engine"),
	}
}

// Load reads the corpus and the lexicon concurrently. A corpus failure is
// returned wrapped in ErrCorpusLoad and retried by the next call. A lexicon
// failure is logged and ranking goes on without lexicon signals; the lexicon
// is reloaded at most once a minute until it succeeds. Load is a no-op once
// both are loaded.
func (e *Engine) Load(ctx context.Context) error {
	if e.ready.Load() {
		return nil
	}
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	needCorpus := e.corpus == nil
	needLexicon := e.deps.Lexicon != nil && !e.lexicon.Loaded() && !time.Now().Before(e.lexiconRetry)
	if !needCorpus && !needLexicon {
		return nil
	}

	var loaded *corpus.Corpus
	// A corpus failure must not cancel the lexicon load.
	var g errgroup.Group
	if needCorpus {
		g.Go(func() error {
			c, err := corpus.Load(ctx, e.deps.Corpus)
			if err != nil {
				return err
			}
			loaded = c
			return nil
		})
	}
	if needLexicon {
		g.Go(func() error {
			if err := e.lexicon.Load(ctx, e.deps.Lexicon); err != nil {
				e.lexiconRetry = time.Now().Add(lexiconRetryInterval)
				e.lexiconFailed.Store(true)
				return nil
			}
			e.lexiconFailed.Store(false)
			if e.deps.Metrics != nil {
				e.deps.Metrics.LexiconEntries.Set(float64(e.lexicon.Len()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("corpus load failed", "error", err)
		return err
	}

	if loaded != nil {
		e.corpus = loaded
		e.ranker.Store(ranker.New(loaded, e.lexicon, ranker.Options{
			TopK:            e.opts.TopK,
			SnippetMaxChars: e.opts.SnippetMaxChars,
		}))
		if e.deps.Metrics != nil {
			e.deps.Metrics.CorpusSegments.Set(float64(loaded.Len()))
		}
		e.logger.Info("corpus loaded", "segments", loaded.Len())
	}
	e.ready.Store(e.corpus != nil && (e.lexicon.Loaded() || e.deps.Lexicon == nil))
	return nil
}

// CorpusLoaded reports whether ranking is possible.
func (e *Engine) CorpusLoaded() bool {
	return e.ranker.Load() != nil
}

// CorpusLen is the number of loaded segments.
func (e *Engine) CorpusLen() int {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if e.corpus == nil {
		return 0
	}
	return e.corpus.Len()
}

// LexiconLen is the number of loaded lexicon entries.
func (e *Engine) LexiconLen() int {
	return e.lexicon.Len()
}

// LexiconFailed reports whether the last lexicon load failed.
func (e *Engine) LexiconFailed() bool {
	return e.lexiconFailed.Load()
}

// Sessions exposes the session store.
func (e *Engine) Sessions() *session.Store {
	return e.deps.Sessions
}

// Cache is the answer cache, or nil.
func (e *Engine) Cache() *cache.AnswerCache {
	return e.deps.Cache
}

// Rank ranks question, fused with the session's recent history, without
// calling the backend. The history is left unchanged. An empty or unknown
// sessionID gets a fresh session.
func (e *Engine) Rank(ctx context.Context, sessionID, question string) (*RankResponse, error) {
	start := time.Now()
	question, err := validateQuestion(question)
	if err != nil {
		return nil, err
	}
	r, err := e.rankerFor(ctx)
	if err != nil {
		return nil, err
	}

	sess := e.deps.Sessions.GetOrCreate(sessionID)
	ctx = logger.WithSessionID(ctx, sess.ID)
	resp := e.rank(ctx, r, sess.History(), question)
	resp.SessionID = sess.ID
	resp.LatencyMs = time.Since(start).Milliseconds()

	if e.deps.Metrics != nil && resp.NoLocalMatch {
		e.deps.Metrics.QuestionsTotal.WithLabelValues("no_local_match").Inc()
	}
	e.track(ctx, resp, analytics.AskEvent{
		Type:   analytics.EventRank,
		Status: analytics.StatusRanked,
	})
	logger.FromContext(ctx).Debug("question ranked",
		"intent", resp.Intent.Label,
		"results", len(resp.Results),
		"latency_ms", resp.LatencyMs,
	)
	return resp, nil
}

// Ask ranks question like Rank, records it in the session history, and asks
// the backend for an answer. Only one ask may run per session at a time;
// an overlapping ask fails with ErrSessionBusy. A backend failure is not an
// error: the response carries status "failed", a message for the user and
// the local preview.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (*AskResponse, error) {
	start := time.Now()
	question, err := validateQuestion(question)
	if err != nil {
		return nil, err
	}
	if e.deps.Assistant == nil {
		return nil, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "assistant backend not configured")
	}
	r, err := e.rankerFor(ctx)
	if err != nil {
		return nil, err
	}

	sess := e.deps.Sessions.GetOrCreate(sessionID)
	if err := sess.Begin(); err != nil {
		return nil, err
	}
	defer sess.End()

	ctx = logger.WithSessionID(ctx, sess.ID)
	log := logger.FromContext(ctx)
	ctx, root := tracing.StartSpan(ctx, "ask", logger.RequestID(ctx))
	root.SetAttr("session_id", sess.ID)

	history := sess.History()
	ranked := e.rank(ctx, r, history, question)
	ranked.SessionID = sess.ID
	sess.SetLastIntent(ranked.Intent)

	history.Push(conversation.RoleUser, question)
	questionIntent := intent.Detect(question)
	req := e.buildRequest(question, ranked, history, questionIntent)

	resp := &AskResponse{
		RankResponse:   *ranked,
		QuestionIntent: questionIntent,
	}
	reply, cacheHit, err := e.callAssistant(ctx, ranked, req)
	resp.CacheHit = cacheHit
	if err != nil {
		resp.Status = StatusFailed
		resp.Error = assistant.UserMessage(err, e.deps.Assistant.Timeout())
		var remoteErr *assistant.RemoteError
		if errors.As(err, &remoteErr) {
			resp.ErrorKind = string(remoteErr.Kind)
			resp.Attempts = remoteErr.Attempts
		} else {
			resp.ErrorKind = string(assistant.KindNetwork)
		}
		log.Warn("assistant unavailable, keeping local preview", "error", err)
	} else {
		answer := reply.Response
		history.Push(conversation.RoleAssistant, answer.HistoryText())
		answer.StripOpening()
		resp.Status = StatusAnswered
		resp.Answer = &answer
		resp.Attempts = reply.Attempts
		if answer.FollowUpQuestion != "" {
			resp.FollowUp = reformulate.FollowUp(answer.FollowUpQuestion)
		}
	}

	resp.LatencyMs = time.Since(start).Milliseconds()
	root.SetAttr("status", resp.Status)
	root.SetAttr("results", len(resp.Results))
	root.End()
	if e.opts.Tracing {
		root.Log(log)
	}

	if e.deps.Metrics != nil {
		e.deps.Metrics.QuestionsTotal.WithLabelValues(resp.Status).Inc()
		if resp.NoLocalMatch {
			e.deps.Metrics.QuestionsTotal.WithLabelValues("no_local_match").Inc()
		}
	}
	e.track(ctx, &resp.RankResponse, analytics.AskEvent{
		Type:      analytics.EventAsk,
		Status:    resp.Status,
		ErrorKind: resp.ErrorKind,
		Attempts:  resp.Attempts,
		CacheHit:  resp.CacheHit,
		LatencyMs: resp.LatencyMs,
	})
	log.Info("question answered",
		"status", resp.Status,
		"intent", resp.Intent.Label,
		"results", len(resp.Results),
		"attempts", resp.Attempts,
		"cache_hit", resp.CacheHit,
		"latency_ms", resp.LatencyMs,
	)
	return resp, nil
}

// NewSession starts an empty conversation and returns its id.
func (e *Engine) NewSession() string {
	return e.deps.Sessions.Create().ID
}

// History returns the turns of a session.
func (e *Engine) History(sessionID string) ([]conversation.Turn, error) {
	sess, err := e.deps.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.History().Turns(), nil
}

// ResetSession forgets a session.
func (e *Engine) ResetSession(sessionID string) error {
	if !e.deps.Sessions.Delete(sessionID) {
		return apperrors.ErrSessionNotFound
	}
	return nil
}

func (e *Engine) rankerFor(ctx context.Context) (*ranker.Ranker, error) {
	if err := e.Load(ctx); err != nil && !e.CorpusLoaded() {
		return nil, apperrors.New(err, http.StatusServiceUnavailable, "corpus unavailable")
	}
	r := e.ranker.Load()
	if r == nil {
		return nil, apperrors.New(apperrors.ErrCorpusLoad, http.StatusServiceUnavailable, "corpus unavailable")
	}
	return r, nil
}

func (e *Engine) rank(ctx context.Context, r *ranker.Ranker, history *conversation.History, question string) *RankResponse {
	_, fuseSpan := tracing.StartChildSpan(ctx, "fuse")
	search := history.BuildSearchQuestion(question)
	if search == "" {
		search = question
	}
	fuseSpan.SetAttr("turns", history.Len())
	fuseSpan.End()

	_, rankSpan := tracing.StartChildSpan(ctx, "rank")
	rankStart := time.Now()
	res := r.Rank(search)
	elapsed := time.Since(rankStart)
	rankSpan.SetAttr("results", len(res.Segments))
	rankSpan.SetAttr("intent", string(res.Intent.Label))
	rankSpan.End()

	if e.deps.Metrics != nil {
		e.deps.Metrics.RankingLatency.Observe(elapsed.Seconds())
		e.deps.Metrics.RankingResultsCount.Observe(float64(len(res.Segments)))
	}

	terms := make([]string, 0, len(res.LexiconMatches))
	for _, m := range res.LexiconMatches {
		terms = append(terms, m.UserTerm)
	}
	return &RankResponse{
		Question:           question,
		SearchQuestion:     search,
		NormalizedQuestion: res.NormalizedQuestion,
		Tokens:             res.Tokens,
		LexiconTerms:       terms,
		Intent:             res.Intent,
		CurrencyIntent:     res.CurrencyIntent,
		Results:            newResultViews(res.Segments),
		NoLocalMatch:       res.Empty(),
		LocalPreview:       buildPreview(question, &res),
		result:             &res,
	}
}

func (e *Engine) buildRequest(question string, ranked *RankResponse, history *conversation.History, questionIntent intent.Intent) assistant.Request {
	segments := ranked.result.Segments
	rag := make([]assistant.RagSegment, 0, len(segments))
	for _, s := range segments {
		seg := assistant.RagSegment{
			Label:   s.Segment.Title(),
			Score:   s.Score,
			Excerpt: s.Excerpt,
			Content: s.Segment.Content,
		}
		if s.URL != "" {
			url := s.URL
			seg.URL = &url
		}
		rag = append(rag, seg)
	}

	turns := history.Turns()
	conv := make([]assistant.Turn, 0, len(turns))
	for _, t := range turns {
		conv = append(conv, assistant.Turn{Role: string(t.Role), Content: t.Content})
	}

	return assistant.Request{
		Question:           question,
		NormalizedQuestion: ranked.NormalizedQuestion,
		RagResults:         rag,
		Conversation:       conv,
		Instructions:       e.opts.Instructions,
		IntentLabel:        string(questionIntent.Label),
		IntentWeight:       questionIntent.Weight,
	}
}

// callAssistant goes through the answer cache when there is one. Answers
// are keyed on the normalized search question and the ranked labels.
func (e *Engine) callAssistant(ctx context.Context, ranked *RankResponse, req assistant.Request) (*assistant.Reply, bool, error) {
	ctx, span := tracing.StartChildSpan(ctx, "remote")
	defer span.End()
	start := time.Now()

	compute := func(ctx context.Context) (*assistant.Reply, error) {
		return e.deps.Assistant.Ask(ctx, req)
	}

	var (
		reply *assistant.Reply
		hit   bool
		err   error
	)
	if e.deps.Cache != nil {
		labels := make([]string, 0, len(req.RagResults))
		for _, r := range req.RagResults {
			labels = append(labels, r.Label)
		}
		key := cache.Key(ranked.NormalizedQuestion, labels)
		reply, hit, err = e.deps.Cache.GetOrCompute(ctx, key, e.deps.Assistant.Budget(), compute)
		if e.deps.Metrics != nil {
			if hit {
				e.deps.Metrics.CacheHitsTotal.Inc()
			} else {
				e.deps.Metrics.CacheMissesTotal.Inc()
			}
		}
	} else {
		reply, err = compute(ctx)
	}

	// A caller that leaves a shared call gets the bare context error.
	var remoteErr *assistant.RemoteError
	if err != nil && ctx.Err() != nil && !errors.As(err, &remoteErr) {
		err = &assistant.RemoteError{Kind: assistant.KindCanceled, Err: err}
	}

	if !hit && e.deps.Metrics != nil {
		e.deps.Metrics.RemoteLatency.Observe(time.Since(start).Seconds())
	}
	span.SetAttr("cache_hit", hit)
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	return reply, hit, err
}

func (e *Engine) track(ctx context.Context, resp *RankResponse, event analytics.AskEvent) {
	if e.deps.Collector == nil {
		return
	}
	event.SessionID = resp.SessionID
	event.RequestID = logger.RequestID(ctx)
	event.Question = resp.Question
	event.NormalizedQuestion = resp.NormalizedQuestion
	event.Intent = string(resp.Intent.Label)
	event.ResultCount = len(resp.Results)
	event.NoLocalMatch = resp.NoLocalMatch
	if len(resp.Results) > 0 {
		event.TopLabel = resp.Results[0].Label
		event.TopScore = resp.Results[0].Score
	}
	if event.LatencyMs == 0 {
		event.LatencyMs = resp.LatencyMs
	}
	e.deps.Collector.Track(event)
}

// AttemptObserver counts finished backend attempts by outcome.
func AttemptObserver(m *metrics.Metrics) func(resilience.Outcome) {
	return func(outcome resilience.Outcome) {
		m.RemoteAttemptsTotal.WithLabelValues(outcome.String()).Inc()
	}
}

// BreakerObserver mirrors breaker transitions into the state gauge.
func BreakerObserver(m *metrics.Metrics) func(name string, from, to resilience.State) {
	return func(name string, from, to resilience.State) {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		slog.Default().With("component", "engine").Warn("circuit breaker state change",
			"name", name, "from", from.String(), "to", to.String())
	}
}

func validateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "question is required")
	}
	if n := utf8.RuneCountInString(question); n > MaxQuestionChars {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"question is %d characters, limit is %d", n, MaxQuestionChars)
	}
	return question, nil
}
