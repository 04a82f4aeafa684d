package ingestion

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/pkg/postgres"
)

// Mode selects how a load treats rows already in the table.
type Mode string

const (
	// ModeReplace empties the table first, so positions follow the export.
	ModeReplace Mode = "replace"
	// ModeAppend keeps existing rows and skips segments whose content is
	// already present.
	ModeAppend Mode = "append"
)

// Report summarizes one load.
type Report struct {
	Table    string `json:"table"`
	Mode     Mode   `json:"mode"`
	Read     int    `json:"read"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Rejected int    `json:"rejected"`
}

// Writer persists segments into one table.
type Writer struct {
	db     *postgres.Client
	table  string
	logger *slog.Logger
}

func NewWriter(db *postgres.Client, table string) *Writer {
	return &Writer{
		db:     db,
		table:  table,
		logger: slog.Default().With("component", "corpus-writer"),
	}
}

// EnsureSchema creates the table if it does not exist.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	table := pq.QuoteIdentifier(w.table)
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		position     BIGSERIAL PRIMARY KEY,
		label        TEXT NOT NULL DEFAULT '',
		source       TEXT NOT NULL DEFAULT '',
		url          TEXT,
		content      TEXT NOT NULL,
		score        DOUBLE PRECISION,
		section      INTEGER,
		anchor       TEXT,
		content_hash TEXT NOT NULL UNIQUE
	)`, table)
	if _, err := w.db.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating %s: %w", w.table, err)
	}
	return nil
}

// Load validates segments and writes the valid ones in a single
// transaction. Invalid segments are logged and counted, never written.
func (w *Writer) Load(ctx context.Context, segments []corpus.Segment, mode Mode) (*Report, error) {
	valid, rejected := Partition(segments)
	for _, verr := range rejected {
		w.logger.Warn("segment rejected", "position", verr.Position, "fields", verr.Fields)
	}
	report := &Report{Table: w.table, Mode: mode, Read: len(segments), Rejected: len(rejected)}

	table := pq.QuoteIdentifier(w.table)
	insert := fmt.Sprintf(`INSERT INTO %s (label, source, url, content, score, section, anchor, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (content_hash) DO NOTHING`, table)

	err := w.db.InTx(ctx, func(tx *sql.Tx) error {
		if mode == ModeReplace {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`TRUNCATE %s RESTART IDENTITY`, table)); err != nil {
				return fmt.Errorf("truncating %s: %w", w.table, err)
			}
		}
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, seg := range valid {
			res, err := stmt.ExecContext(ctx, segmentArgs(seg)...)
			if err != nil {
				return fmt.Errorf("inserting segment %q: %w", seg.Title(), err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("counting inserted rows: %w", err)
			}
			if n == 0 {
				report.Skipped++
				continue
			}
			report.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("corpus loaded into postgres",
		"table", w.table,
		"mode", mode,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"rejected", report.Rejected,
	)
	return report, nil
}

// segmentArgs maps a segment onto the insert columns. Optional fields become
// NULL so the reader restores them as absent.
func segmentArgs(seg corpus.Segment) []any {
	var score sql.NullFloat64
	if seg.Score != nil {
		score = sql.NullFloat64{Float64: *seg.Score, Valid: true}
	}
	var section sql.NullInt64
	if seg.Section != nil {
		section = sql.NullInt64{Int64: int64(*seg.Section), Valid: true}
	}
	return []any{
		seg.Label,
		seg.Source,
		nullableString(seg.URL),
		seg.Content,
		score,
		section,
		nullableString(seg.Anchor),
		ContentHash(seg),
	}
}

// ContentHash identifies a segment by its source and content.
func ContentHash(seg corpus.Segment) string {
	sum := sha256.Sum256([]byte(seg.Source + "\x00" + seg.Content))
	return fmt.Sprintf("%x", sum)
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
