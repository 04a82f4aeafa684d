package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lib/pq"
)

// FileSource reads a JSON array of segments.
type FileSource struct {
	Path string
}

func (s FileSource) Segments(ctx context.Context) ([]Segment, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", s.Path, err)
	}
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", s.Path, err)
	}
	return segments, nil
}

// PostgresSource reads segments from a table, in position order. Nullable
// columns (url, score, section, anchor) map to the optional segment fields.
// The table is created and filled by cmd/iam-ingest.
type PostgresSource struct {
	DB    *sql.DB
	Table string
}

func (s PostgresSource) Segments(ctx context.Context) ([]Segment, error) {
	query := fmt.Sprintf(
		`SELECT label, source, url, content, score, section, anchor FROM %s ORDER BY position`,
		pq.QuoteIdentifier(s.Table),
	)
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.Table, err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var (
			seg     Segment
			url     sql.NullString
			score   sql.NullFloat64
			section sql.NullInt64
			anchor  sql.NullString
		)
		if err := rows.Scan(&seg.Label, &seg.Source, &url, &seg.Content, &score, &section, &anchor); err != nil {
			return nil, fmt.Errorf("scanning segment row: %w", err)
		}
		seg.URL = url.String
		seg.Anchor = anchor.String
		if score.Valid {
			v := score.Float64
			seg.Score = &v
		}
		if section.Valid {
			v := int(section.Int64)
			seg.Section = &v
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", s.Table, err)
	}
	return segments, nil
}

// StaticSource serves segments held in memory.
type StaticSource []Segment

func (s StaticSource) Segments(ctx context.Context) ([]Segment, error) {
	return s, nil
}
