package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/FJDaz/I-Am/pkg/health"
	"github.com/FJDaz/I-Am/pkg/resilience"
)

// CorpusCheck is down until the corpus is loaded. A failed load is retried
// by the check itself so that readiness recovers without a question.
func CorpusCheck(e *Engine) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		if !e.CorpusLoaded() {
			if err := e.Load(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d segments", e.CorpusLen())}
	}
}

// LexiconCheck is degraded while the lexicon is missing: answers still
// work, without the lexicon signals.
func LexiconCheck(e *Engine) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		if e.LexiconFailed() {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "lexicon unavailable"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d entries", e.LexiconLen())}
	}
}

// BreakerCheck is degraded while the backend breaker is not closed.
func BreakerCheck(cb *resilience.CircuitBreaker) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		st := cb.Status()
		switch st.State {
		case resilience.StateOpen:
			return health.ComponentHealth{
				Status:  health.StatusDegraded,
				Message: fmt.Sprintf("assistant breaker open, retry in %s", st.RetryIn.Round(time.Second)),
			}
		case resilience.StateHalfOpen:
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "assistant breaker half-open"}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	}
}
