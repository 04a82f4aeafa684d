package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FJDaz/I-Am/pkg/kafka"
)

const (
	// maxLatencySamples bounds the latency window used for percentiles.
	maxLatencySamples = 10000
	// DefaultTopQuestions is the length of the question leaderboards.
	DefaultTopQuestions = 10
)

type AggregatedStats struct {
	TotalQuestions     int64            `json:"total_questions"`
	Answered           int64            `json:"answered"`
	Failed             int64            `json:"failed"`
	RankOnly           int64            `json:"rank_only"`
	NoLocalMatchCount  int64            `json:"no_local_match_count"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	AvgAttempts        float64          `json:"avg_attempts"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       int64            `json:"p50_latency_ms"`
	P95LatencyMs       int64            `json:"p95_latency_ms"`
	P99LatencyMs       int64            `json:"p99_latency_ms"`
	TopQuestions       []QuestionCount  `json:"top_questions"`
	NoMatchQuestions   []QuestionCount  `json:"no_match_questions"`
	IntentDistribution map[string]int64 `json:"intent_distribution"`
	QuestionsPerMinute float64          `json:"questions_per_minute"`
}

type QuestionCount struct {
	Question string `json:"question"`
	Count    int64  `json:"count"`
}

// Aggregator folds ask events into running stats. It reads them from Kafka
// when built with a consumer, or receives them through Record.
type Aggregator struct {
	mu               sync.RWMutex
	totalQuestions   atomic.Int64
	answered         atomic.Int64
	failed           atomic.Int64
	rankOnly         atomic.Int64
	noLocalMatch     atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	totalAttempts    atomic.Int64
	remoteCalls      atomic.Int64
	latencies        []int64
	questionCounts   map[string]int64
	noMatchQuestions map[string]int64
	intents          map[string]int64
	startTime        time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:        make([]int64, 0, 1024),
		questionCounts:   make(map[string]int64),
		noMatchQuestions: make(map[string]int64),
		intents:          make(map[string]int64),
		startTime:        time.Now(),
		consumer:         consumer,
		logger:           slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the Kafka consumer; HandleEvent needs the
// aggregator before the consumer can be built.
func (a *Aggregator) SetConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

// Start consumes events until ctx is cancelled. Without a consumer it
// returns immediately.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent decodes ask events from Kafka into agg. Undecodable messages
// are logged and committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[AskEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the stats.
func (a *Aggregator) Record(event AskEvent) {
	a.totalQuestions.Add(1)
	switch event.Status {
	case StatusAnswered:
		a.answered.Add(1)
	case StatusFailed:
		a.failed.Add(1)
	case StatusRanked:
		a.rankOnly.Add(1)
	}
	if event.NoLocalMatch {
		a.noLocalMatch.Add(1)
	}
	if event.Type == EventAsk {
		if event.CacheHit {
			a.cacheHits.Add(1)
		} else {
			a.cacheMisses.Add(1)
			a.remoteCalls.Add(1)
			a.totalAttempts.Add(int64(event.Attempts))
		}
	}

	question := event.NormalizedQuestion
	if question == "" {
		question = event.Question
	}
	intent := event.Intent
	if intent == "" {
		intent = "inconnue"
	}

	a.mu.Lock()
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = append(a.latencies[:0], a.latencies[len(a.latencies)/2:]...)
	}
	a.latencies = append(a.latencies, event.LatencyMs)
	a.questionCounts[question]++
	if event.NoLocalMatch {
		a.noMatchQuestions[question]++
	}
	a.intents[intent]++
	a.mu.Unlock()
}

// Restore seeds the counters from a persisted snapshot so a restart does
// not reset the dashboard. Latencies are not restored.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.totalQuestions.Store(s.TotalQuestions)
	a.answered.Store(s.Answered)
	a.failed.Store(s.Failed)
	a.rankOnly.Store(s.RankOnly)
	a.noLocalMatch.Store(s.NoLocalMatchCount)
	a.cacheHits.Store(s.CacheHits)
	a.cacheMisses.Store(s.CacheMisses)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, q := range s.TopQuestions {
		a.questionCounts[q.Question] = q.Count
	}
	for _, q := range s.NoMatchQuestions {
		a.noMatchQuestions[q.Question] = q.Count
	}
	for intent, n := range s.IntentDistribution {
		a.intents[intent] = n
	}
}

// Stats is StatsTop with the default leaderboard length.
func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(DefaultTopQuestions)
}

// StatsTop snapshots the counters, keeping the top most frequent questions
// in each leaderboard.
func (a *Aggregator) StatsTop(top int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQuestions:    a.totalQuestions.Load(),
		Answered:          a.answered.Load(),
		Failed:            a.failed.Load(),
		RankOnly:          a.rankOnly.Load(),
		NoLocalMatchCount: a.noLocalMatch.Load(),
		CacheHits:         a.cacheHits.Load(),
		CacheMisses:       a.cacheMisses.Load(),
	}
	if calls := a.remoteCalls.Load(); calls > 0 {
		stats.AvgAttempts = float64(a.totalAttempts.Load()) / float64(calls)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQuestions = topN(a.questionCounts, top)
	stats.NoMatchQuestions = topN(a.noMatchQuestions, top)
	stats.IntentDistribution = make(map[string]int64, len(a.intents))
	for intent, n := range a.intents {
		stats.IntentDistribution[intent] = n
	}
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QuestionsPerMinute = float64(stats.TotalQuestions) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent questions, ties in lexical order.
func topN(counts map[string]int64, n int) []QuestionCount {
	result := make([]QuestionCount, 0, len(counts))
	for question, count := range counts {
		result = append(result, QuestionCount{Question: question, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Question < result[j].Question
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
