package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRunReportsWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("corpus", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusUp}
	})
	c.Register("redis", PingCheck(func(ctx context.Context) error {
		return errors.New("connection refused")
	}, false))

	report := c.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Components["redis"].Message != "connection refused" {
		t.Errorf("unexpected redis message %q", report.Components["redis"].Message)
	}

	c.Register("lexicon", PingCheck(func(ctx context.Context) error {
		return errors.New("missing")
	}, true))
	if got := c.Run(context.Background()).Status; got != StatusDown {
		t.Fatalf("expected down, got %s", got)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("cache", PingCheck(func(ctx context.Context) error { return errors.New("down") }, false))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded service should stay ready, got %d", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}

	c.Register("corpus", PingCheck(func(ctx context.Context) error { return errors.New("not loaded") }, true))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRunBoundsSlowChecks(t *testing.T) {
	c := NewChecker()
	c.timeout = 20 * time.Millisecond
	c.Register("assistant", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false))

	start := time.Now()
	report := c.Run(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run took %s", elapsed)
	}
	if got := report.Components["assistant"].Status; got != StatusDegraded {
		t.Errorf("slow check = %s, want degraded", got)
	}
}

func TestEmptyCheckerIsUp(t *testing.T) {
	if got := NewChecker().Run(context.Background()).Status; got != StatusUp {
		t.Errorf("status = %s, want up", got)
	}
}
