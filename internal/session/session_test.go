package session

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/internal/intent"
	"github.com/FJDaz/I-Am/pkg/config"
	apperrors "github.com/FJDaz/I-Am/pkg/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestStore(cfg config.SessionConfig) (*Store, *fakeClock, prometheus.Gauge) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_active_sessions"})
	store := NewStore(cfg, conversation.DefaultLimits(), gauge)
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store.now = clock.now
	return store, clock, gauge
}

func TestCreateAndGet(t *testing.T) {
	store, _, gauge := newTestStore(config.SessionConfig{IdleTTL: time.Minute})
	sess := store.Create()
	if sess.ID == "" {
		t.Fatal("expected an id")
	}
	got, err := store.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if sess.LastIntent().Label != intent.Unknown {
		t.Errorf("new session intent = %v", sess.LastIntent())
	}
	if v := testutil.ToFloat64(gauge); v != 1 {
		t.Errorf("active gauge = %v, want 1", v)
	}
	if _, err := store.Get("nope"); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	store, clock, gauge := newTestStore(config.SessionConfig{IdleTTL: time.Minute})
	a := store.Create()
	b := store.Create()

	clock.t = clock.t.Add(45 * time.Second)
	if _, err := store.Get(a.ID); err != nil {
		t.Fatalf("a should still be alive: %v", err)
	}
	clock.t = clock.t.Add(30 * time.Second)
	if n := store.EvictIdle(); n != 1 {
		t.Fatalf("expected b to be evicted, got %d", n)
	}
	if _, err := store.Get(b.ID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("b should be gone, got %v", err)
	}
	if v := testutil.ToFloat64(gauge); v != 1 {
		t.Errorf("active gauge = %v, want 1", v)
	}
}

func TestBusySessionsDoNotExpire(t *testing.T) {
	store, clock, _ := newTestStore(config.SessionConfig{IdleTTL: time.Minute})
	sess := store.Create()
	if err := sess.Begin(); err != nil {
		t.Fatal(err)
	}
	clock.t = clock.t.Add(time.Hour)
	if n := store.EvictIdle(); n != 0 {
		t.Errorf("busy session evicted")
	}
	sess.End()
	if n := store.EvictIdle(); n != 1 {
		t.Errorf("idle session should now expire, evicted %d", n)
	}
}

func TestBeginRejectsOverlap(t *testing.T) {
	store, _, _ := newTestStore(config.SessionConfig{})
	sess := store.Create()
	if err := sess.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := sess.Begin(); !errors.Is(err, apperrors.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	sess.End()
	if err := sess.Begin(); err != nil {
		t.Fatalf("Begin after End: %v", err)
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	store, clock, _ := newTestStore(config.SessionConfig{MaxSessions: 2})
	first := store.Create()
	clock.t = clock.t.Add(time.Second)
	second := store.Create()
	clock.t = clock.t.Add(time.Second)
	if _, err := store.Get(first.ID); err != nil {
		t.Fatal(err)
	}
	clock.t = clock.t.Add(time.Second)
	store.Create()

	if store.Len() != 2 {
		t.Fatalf("Len = %d, want 2", store.Len())
	}
	if _, err := store.Get(second.ID); err == nil {
		t.Error("least recently used session should have been evicted")
	}
	if _, err := store.Get(first.ID); err != nil {
		t.Error("recently used session should survive")
	}
}

func TestGetOrCreateAndReset(t *testing.T) {
	store, _, _ := newTestStore(config.SessionConfig{})
	sess := store.GetOrCreate("")
	if again := store.GetOrCreate(sess.ID); again != sess {
		t.Error("known id should return the same session")
	}
	if other := store.GetOrCreate("unknown"); other == sess || other.ID == "unknown" {
		t.Error("unknown id should create a fresh session with its own id")
	}

	sess.History().Push(conversation.RoleUser, "Quel est le tarif de la cantine ?")
	sess.SetLastIntent(intent.Intent{Label: intent.Action, Weight: 1})
	sess.Reset()
	if sess.History().Len() != 0 || sess.LastIntent().Label != intent.Unknown {
		t.Error("Reset should clear history and intent")
	}
	if !store.Delete(sess.ID) || store.Delete(sess.ID) {
		t.Error("Delete should report existence")
	}
}
