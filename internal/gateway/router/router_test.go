package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FJDaz/I-Am/internal/analytics"
	"github.com/FJDaz/I-Am/internal/assistant"
	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/internal/corpus"
	"github.com/FJDaz/I-Am/internal/engine"
	gwmw "github.com/FJDaz/I-Am/internal/gateway/middleware"
	"github.com/FJDaz/I-Am/internal/gateway/ratelimit"
	"github.com/FJDaz/I-Am/internal/lexicon"
	"github.com/FJDaz/I-Am/internal/searcher/handler"
	"github.com/FJDaz/I-Am/internal/session"
	"github.com/FJDaz/I-Am/pkg/config"
	"github.com/FJDaz/I-Am/pkg/health"
)

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer_html":"<p>Le repas coûte 3,50 €.</p>","answer_text":"Le repas coûte 3,50 €."}`))
	}))
	t.Cleanup(backend.Close)

	eng := engine.New(engine.Deps{
		Corpus: corpus.StaticSource{
			{Label: "Tarifs cantine", Source: "restauration.html", Content: "Tarif repas enfant: 3,50€. Tarif adulte: 6€."},
		},
		Lexicon:  lexicon.StaticSource{},
		Sessions: session.NewStore(config.SessionConfig{IdleTTL: time.Hour}, conversation.DefaultLimits(), nil),
		Assistant: assistant.New(assistant.Config{
			Endpoint:    backend.URL,
			Timeout:     2 * time.Second,
			BackoffBase: time.Millisecond,
		}, nil, nil),
	}, engine.Options{})
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	stats := analytics.NewHandler(analytics.NewAggregator(nil))
	srv := httptest.NewServer(New(handler.New(eng, nil), stats, health.NewChecker(), opts))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: %d", resp.StatusCode)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatal("missing session id")
	}

	resp, body = do(t, http.MethodPost, srv.URL+"/api/v1/ask",
		`{"session_id":"`+id+`","question":"Quel est le tarif de la cantine ?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: %d %v", resp.StatusCode, body)
	}
	if body["status"] != "answered" || body["session_id"] != id {
		t.Errorf("unexpected ask response %v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("request id should be echoed")
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/sessions/"+id+"/history", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d", resp.StatusCode)
	}
	if turns, _ := body["turns"].([]any); len(turns) != 2 {
		t.Errorf("expected 2 turns, got %v", body["turns"])
	}

	resp, _ = do(t, http.MethodDelete, srv.URL+"/api/v1/sessions/"+id, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("reset: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/sessions/"+id+"/history", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("history after reset: %d", resp.StatusCode)
	}
}

func TestRankEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/rank", `{"question":"tarif cantine"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rank: %d", resp.StatusCode)
	}
	results, _ := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %v", body["results"])
	}
	if _, ok := body["status"]; ok {
		t.Error("rank responses carry no remote status")
	}
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		name string
		body string
	}{
		{"not json", "question=tarif"},
		{"empty question", `{"question":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/ask", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d", resp.StatusCode)
			}
			if body["error"] == "" || body["error"] == nil {
				t.Error("expected an error message")
			}
		})
	}
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health/live", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/analytics", http.StatusOK},
		{http.MethodGet, "/api/v1/cache/stats", http.StatusOK},
		{http.MethodPost, "/api/v1/cache/invalidate", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/v1/ask", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		resp, _ := do(t, tt.method, srv.URL+tt.path, "")
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestChainAppliesCORSAndRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{
		CORS:    gwmw.CORSConfig{AllowOrigins: []string{"https://www.amiens.fr"}, AllowMethods: []string{"POST"}},
		Limiter: ratelimit.New(1, time.Minute),
	})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/ask", nil)
	req.Header.Set("Origin", "https://www.amiens.fr")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("preflight: %d %v", resp.StatusCode, resp.Header)
	}

	if resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/rank", `{"question":"tarif"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/rank", `{"question":"tarif"}`)
	if resp.StatusCode != http.StatusTooManyRequests || resp.Header.Get("Retry-After") == "" {
		t.Errorf("second request should be throttled: %d", resp.StatusCode)
	}
}
