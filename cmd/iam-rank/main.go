// Command iam-rank ranks one question against the local corpus and prints
// the fused search question, the detected intent and the ranked passages
// with their score breakdown as JSON. It never calls the remote assistant.
//
// Usage:
//
//	go run ./cmd/iam-rank [-config configs/development.yaml] [-history turns.json] "question"
//
// The history file is a JSON array of {"role": "user"|"assistant",
// "content": "..."} turns, oldest first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/internal/engine"
	"github.com/FJDaz/I-Am/internal/lexicon"
	"github.com/FJDaz/I-Am/internal/session"
	"github.com/FJDaz/I-Am/pkg/config"
	"github.com/FJDaz/I-Am/pkg/logger"
	"github.com/FJDaz/I-Am/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	historyPath := flag.String("history", "", "JSON file of previous turns")
	flag.Parse()

	question := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(question) == "" {
		fmt.Fprintln(os.Stderr, "usage: iam-rank [-config file] [-history file] \"question\"")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the JSON result.
	level := cfg.Logging.Level
	if level == "info" {
		level = "warn"
	}
	logger.SetupTo(os.Stderr, level, cfg.Logging.Format)

	ctx := context.Background()

	var corpusSource corpus.Source = corpus.FileSource{Path: cfg.Corpus.CorpusPath}
	if cfg.Corpus.Source == config.SourcePostgres {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		corpusSource = corpus.PostgresSource{DB: pg.DB, Table: cfg.Corpus.Table}
	}

	sessions := session.NewStore(cfg.Session, conversation.Limits{
		MaxTurns: cfg.Search.HistoryLimit,
		MaxChars: cfg.Search.TurnMaxChars,
		Window:   cfg.Search.HistoryWindow,
	}, nil)
	sess := sessions.Create()
	if *historyPath != "" {
		turns, err := readHistory(*historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read history: %v\n", err)
			os.Exit(1)
		}
		for _, t := range turns {
			sess.History().Push(t.Role, t.Content)
		}
	}

	eng := engine.New(engine.Deps{
		Corpus:   corpusSource,
		Lexicon:  lexicon.FileSource{Path: cfg.Corpus.LexiconPath},
		Sessions: sessions,
	}, engine.Options{
		TopK:            cfg.Search.TopK,
		SnippetMaxChars: cfg.Search.SnippetMaxChars,
	})

	resp, err := eng.Rank(ctx, sess.ID, question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ranking failed: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write result: %v\n", err)
		os.Exit(1)
	}
}

func readHistory(path string) ([]conversation.Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var turns []conversation.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("%s: turn %d: role %q is neither %q nor %q",
				path, i, t.Role, conversation.RoleUser, conversation.RoleAssistant)
		}
	}
	return turns, nil
}
