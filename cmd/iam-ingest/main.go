// Command iam-ingest loads an exported corpus JSON file into the Postgres
// table the server reads when corpus.source is "postgres".
//
// Invalid segments are reported and skipped. In replace mode the table is
// emptied first; in append mode segments already present (same source and
// content) are skipped.
//
// Usage:
//
//	go run ./cmd/iam-ingest [-config configs/development.yaml] [-input data/corpus_segments.json] [-mode replace|append] [-dry-run]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/internal/ingestion"
	"github.com/FJDaz/I-Am/pkg/config"
	"github.com/FJDaz/I-Am/pkg/logger"
	"github.com/FJDaz/I-Am/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	input := flag.String("input", "", "corpus JSON file (default corpus.corpusPath)")
	table := flag.String("table", "", "target table (default corpus.table)")
	mode := flag.String("mode", string(ingestion.ModeReplace), "replace or append")
	dryRun := flag.Bool("dry-run", false, "validate only, do not touch the database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetupTo(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if *input == "" {
		*input = cfg.Corpus.CorpusPath
	}
	if *table == "" {
		*table = cfg.Corpus.Table
	}
	loadMode := ingestion.Mode(*mode)
	if loadMode != ingestion.ModeReplace && loadMode != ingestion.ModeAppend {
		fmt.Fprintf(os.Stderr, "-mode must be %q or %q\n", ingestion.ModeReplace, ingestion.ModeAppend)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	segments, err := corpus.FileSource{Path: *input}.Segments(ctx)
	if err != nil {
		slog.Error("failed to read corpus", "path", *input, "error", err)
		os.Exit(1)
	}
	slog.Info("corpus read", "path", *input, "segments", len(segments))

	if *dryRun {
		valid, rejected := ingestion.Partition(segments)
		for _, verr := range rejected {
			fmt.Fprintln(os.Stderr, verr.Error())
		}
		printReport(&ingestion.Report{
			Table:    *table,
			Mode:     loadMode,
			Read:     len(segments),
			Rejected: len(rejected),
		})
		slog.Info("dry run finished", "valid", len(valid), "rejected", len(rejected))
		return
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres", "database", cfg.Postgres.Database)

	writer := ingestion.NewWriter(db, *table)
	if err := writer.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	report, err := writer.Load(ctx, segments, loadMode)
	if err != nil {
		slog.Error("corpus load failed", "table", *table, "error", err)
		os.Exit(1)
	}
	printReport(report)
}

func printReport(report *ingestion.Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}
