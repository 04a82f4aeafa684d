// Command iam-server serves the municipal question-answering API.
//
// It loads the corpus and the lexicon, ranks every question locally,
// forwards the best passages to the remote assistant and exposes the
// session, ask, rank, analytics and cache endpoints. Redis, Kafka and
// Postgres are optional: without them the answer cache is off, analytics
// are aggregated in process and nothing is snapshotted.
//
// Usage:
//
//	go run ./cmd/iam-server [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FJDaz/I-Am/internal/analytics"
	analyticsstore "github.com/FJDaz/I-Am/internal/analytics/aggregator"
	"github.com/FJDaz/I-Am/internal/assistant"
	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/internal/engine"
	gwmw "github.com/FJDaz/I-Am/internal/gateway/middleware"
	"github.com/FJDaz/I-Am/internal/gateway/ratelimit"
	"github.com/FJDaz/I-Am/internal/gateway/router"
	"github.com/FJDaz/I-Am/internal/lexicon"
	"github.com/FJDaz/I-Am/internal/searcher/cache"
	"github.com/FJDaz/I-Am/internal/searcher/handler"
	"github.com/FJDaz/I-Am/internal/session"
	"github.com/FJDaz/I-Am/pkg/config"
	"github.com/FJDaz/I-Am/pkg/health"
	"github.com/FJDaz/I-Am/pkg/kafka"
	"github.com/FJDaz/I-Am/pkg/logger"
	"github.com/FJDaz/I-Am/pkg/metrics"
	"github.com/FJDaz/I-Am/pkg/postgres"
	pkgredis "github.com/FJDaz/I-Am/pkg/redis"
	"github.com/FJDaz/I-Am/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting assistant service", "port", cfg.Server.Port, "corpus_source", cfg.Corpus.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		go metrics.NewServer(cfg.Metrics.Port, nil).Run(ctx)
	}

	checker := health.NewChecker()

	// Postgres backs the corpus table and the analytics snapshots.
	var pg *postgres.Client
	if cfg.Corpus.Source == config.SourcePostgres || cfg.Analytics.Snapshots {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			if cfg.Corpus.Source == config.SourcePostgres {
				slog.Error("postgres unavailable", "error", err)
				os.Exit(1)
			}
			slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			checker.Register("postgres", health.PingCheck(pg.Ping, cfg.Corpus.Source == config.SourcePostgres))
		}
	}

	var corpusSource corpus.Source = corpus.FileSource{Path: cfg.Corpus.CorpusPath}
	if cfg.Corpus.Source == config.SourcePostgres {
		corpusSource = corpus.PostgresSource{DB: pg.DB, Table: cfg.Corpus.Table}
	}

	var answerCache *cache.AnswerCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, answer caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			answerCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("answer cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	// Analytics: Kafka when enabled, otherwise straight into the aggregator.
	aggregator := analytics.NewAggregator(nil)
	var publisher analytics.Publisher = analytics.LocalPublisher{Aggregator: aggregator}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AskEvents)
		defer producer.Close()
		publisher = producer
		aggregator.SetConsumer(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AskEvents, analytics.HandleEvent(aggregator)))
		go func() {
			if err := aggregator.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("analytics over kafka", "topic", cfg.Kafka.Topics.AskEvents)
	}
	if pg != nil && cfg.Analytics.Snapshots {
		store := analyticsstore.NewStore(pg, cfg.Analytics.SnapshotRetain)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("analytics snapshot schema unavailable", "error", err)
		} else {
			if err := store.Restore(ctx, aggregator); err != nil {
				slog.Warn("analytics snapshot not restored", "error", err)
			}
			store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
	}
	collector := analytics.NewCollector(publisher, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	// The collector outlives the signal so asks still draining can record
	// their events; Close flushes them once the server has stopped.
	collector.Start(context.WithoutCancel(ctx))
	defer collector.Close()

	instructions := assistant.DefaultInstructions
	if cfg.Assistant.InstructionsPath != "" {
		instructions, err = assistant.LoadInstructions(cfg.Assistant.InstructionsPath)
		if err != nil {
			slog.Error("failed to load instructions", "error", err)
			os.Exit(1)
		}
	}

	breakerCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Assistant.BreakerThreshold,
		ResetTimeout:     cfg.Assistant.BreakerReset,
	}
	assistantCfg := assistant.Config{
		Endpoint:    cfg.Assistant.Endpoint,
		Timeout:     cfg.Assistant.Timeout,
		MaxRetries:  cfg.Assistant.MaxRetries,
		BackoffBase: cfg.Assistant.BackoffBase,
	}
	var activeSessions prometheus.Gauge
	if m != nil {
		breakerCfg.OnStateChange = engine.BreakerObserver(m)
		assistantCfg.OnAttempt = engine.AttemptObserver(m)
		activeSessions = m.ActiveSessions
	}
	breaker := resilience.NewCircuitBreaker("assistant", breakerCfg)
	checker.Register("assistant_breaker", engine.BreakerCheck(breaker))

	sessions := session.NewStore(cfg.Session, conversation.Limits{
		MaxTurns: cfg.Search.HistoryLimit,
		MaxChars: cfg.Search.TurnMaxChars,
		Window:   cfg.Search.HistoryWindow,
	}, activeSessions)
	go sessions.Run(ctx, time.Minute)

	eng := engine.New(engine.Deps{
		Corpus:    corpusSource,
		Lexicon:   lexicon.FileSource{Path: cfg.Corpus.LexiconPath},
		Sessions:  sessions,
		Assistant: assistant.New(assistantCfg, &http.Client{}, breaker),
		Cache:     answerCache,
		Collector: collector,
		Metrics:   m,
	}, engine.Options{
		TopK:            cfg.Search.TopK,
		SnippetMaxChars: cfg.Search.SnippetMaxChars,
		Instructions:    instructions,
		Tracing:         cfg.Tracing.Enabled,
	})
	if err := eng.Load(ctx); err != nil {
		slog.Warn("corpus not loaded yet, retrying on demand", "error", err)
	}
	checker.Register("corpus", engine.CorpusCheck(eng))
	checker.Register("lexicon", engine.LexiconCheck(eng))

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Run(ctx, 5*time.Minute)
	}

	chain := router.New(handler.New(eng, answerCache), analytics.NewHandler(aggregator), checker, router.Options{
		CORS:    gwmw.NewCORSConfig(cfg.CORS),
		Limiter: limiter,
		Metrics: m,
		Timeout: cfg.Server.WriteTimeout,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("assistant service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// ListenAndServe returns as soon as Shutdown starts; wait for the
	// in-flight asks to drain.
	<-shutdownDone

	slog.Info("assistant service stopped")
}
