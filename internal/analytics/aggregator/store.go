// Package aggregator persists snapshots of the assistant analytics in
// PostgreSQL so the dashboard survives restarts.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FJDaz/I-Am/internal/analytics"
	"github.com/FJDaz/I-Am/pkg/postgres"
)

// Schema creates the snapshot table when it does not exist.
const Schema = `CREATE TABLE IF NOT EXISTS assistant_analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// DefaultRetain keeps a day of five-minute snapshots.
const DefaultRetain = 288

// Store reads and writes stats snapshots, keeping only the newest retain.
type Store struct {
	db     *postgres.Client
	retain int
	logger *slog.Logger
}

// NewStore keeps DefaultRetain snapshots when retain is not positive.
func NewStore(db *postgres.Client, retain int) *Store {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Store{
		db:     db,
		retain: retain,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating analytics snapshot table: %w", err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	var pruned int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assistant_analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
			data, time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("saving analytics snapshot: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM assistant_analytics_snapshots
			WHERE id NOT IN (SELECT id FROM assistant_analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1)`,
			s.retain,
		)
		if err != nil {
			return fmt.Errorf("pruning analytics snapshots: %w", err)
		}
		pruned, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("analytics snapshot saved",
		"total_questions", stats.TotalQuestions,
		"failed", stats.Failed,
		"pruned", pruned,
	)
	return nil
}

// LatestSnapshot returns nil, nil when no snapshot exists yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM assistant_analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// Restore seeds agg from the latest snapshot, if any.
func (s *Store) Restore(ctx context.Context, agg *analytics.Aggregator) error {
	stats, err := s.LatestSnapshot(ctx)
	if err != nil || stats == nil {
		return err
	}
	agg.Restore(*stats)
	s.logger.Info("analytics restored from snapshot", "total_questions", stats.TotalQuestions)
	return nil
}

// StartPeriodicSave snapshots agg every interval and once more when ctx is
// cancelled. A tick with no new question since the last save is skipped.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		saved := agg.Stats().TotalQuestions
		for {
			select {
			case <-ticker.C:
				stats := agg.Stats()
				if stats.TotalQuestions == saved {
					continue
				}
				if err := s.SaveSnapshot(ctx, stats); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
					continue
				}
				saved = stats.TotalQuestions
			case <-ctx.Done():
				stats := agg.Stats()
				if stats.TotalQuestions == saved {
					return
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, stats); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
