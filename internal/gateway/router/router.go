// Package router wires up all assistant API routes and applies the
// middleware chain (RequestID → CORS → RateLimit → Metrics → Timeout).
package router

import (
	"net/http"
	"time"

	"github.com/FJDaz/I-Am/internal/analytics"
	gwmw "github.com/FJDaz/I-Am/internal/gateway/middleware"
	"github.com/FJDaz/I-Am/internal/gateway/ratelimit"
	"github.com/FJDaz/I-Am/internal/searcher/handler"
	"github.com/FJDaz/I-Am/pkg/health"
	"github.com/FJDaz/I-Am/pkg/metrics"
	pkgmw "github.com/FJDaz/I-Am/pkg/middleware"
)

// Options carry the optional parts of the chain. A nil Limiter disables
// rate limiting, nil Metrics disables request metrics and a zero Timeout
// disables the request deadline.
type Options struct {
	CORS    gwmw.CORSConfig
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	Timeout time.Duration
}

// New builds the full HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/sessions               → new conversation
//	GET    /api/v1/sessions/{id}/history  → conversation turns
//	DELETE /api/v1/sessions/{id}          → forget a conversation
//	POST   /api/v1/ask                    → rank + remote answer
//	POST   /api/v1/rank                   → local ranking only
//	GET    /api/v1/analytics              → aggregated ask stats
//	GET    /api/v1/cache/stats            → answer cache counters
//	POST   /api/v1/cache/invalidate       → drop cached answers
//	GET    /health/live, /health/ready    → probes
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → RateLimit → Metrics → Timeout → handler
func New(h *handler.Handler, stats *analytics.Handler, checker *health.Checker, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", h.History)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.ResetSession)

	mux.HandleFunc("POST /api/v1/ask", h.Ask)
	mux.HandleFunc("POST /api/v1/rank", h.Rank)

	if stats != nil {
		mux.HandleFunc("GET /api/v1/analytics", stats.Stats)
	}

	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	// Applied inside-out.
	var chain http.Handler = mux
	if opts.Timeout > 0 {
		chain = pkgmw.Timeout(opts.Timeout)(chain)
	}
	if opts.Metrics != nil {
		chain = pkgmw.Metrics(opts.Metrics)(chain)
	}
	if opts.Limiter != nil {
		chain = gwmw.RateLimit(opts.Limiter)(chain)
	}
	chain = gwmw.CORS(opts.CORS)(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
