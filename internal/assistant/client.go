// Package assistant calls the remote generative backend that turns the
// ranked passages into a written answer. Every call runs through a bounded
// retry loop and a circuit breaker.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/FJDaz/I-Am/pkg/errors"
	"github.com/FJDaz/I-Am/pkg/resilience"
)

const (
	DefaultTimeout     = 45 * time.Second
	DefaultMaxRetries  = 2
	DefaultBackoffBase = 2 * time.Second

	maxErrorBody = 512
)

// Kind classifies a failed call.
type Kind string

const (
	KindTimeout  Kind = "timeout"
	KindHTTP     Kind = "http"
	KindNetwork  Kind = "network"
	KindDecode   Kind = "decode"
	KindCanceled Kind = "canceled"
)

// RemoteError describes the last failure of a call. It unwraps to the
// matching pkg/errors sentinel and to the underlying cause.
type RemoteError struct {
	Kind     Kind
	Status   int
	Attempts int
	Err      error
}

func (e *RemoteError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("assistant backend returned %d after %d attempt(s)", e.Status, e.Attempts)
	default:
		return fmt.Sprintf("assistant %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
	}
}

func (e *RemoteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Kind {
	case KindTimeout:
		errs = append(errs, apperrors.ErrRemoteTimeout)
	case KindHTTP, KindDecode:
		errs = append(errs, apperrors.ErrRemoteHTTP)
	case KindNetwork:
		errs = append(errs, apperrors.ErrRemoteNetwork)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// retryable reports whether another attempt may succeed: gateway errors,
// network failures and per-attempt timeouts.
func (e *RemoteError) retryable() bool {
	switch e.Kind {
	case KindTimeout:
		return true
	case KindNetwork:
		return !errors.Is(e.Err, resilience.ErrCircuitOpen)
	case KindHTTP:
		return e.Status == http.StatusBadGateway
	default:
		return false
	}
}

// Config configures a Client. Zero durations take the defaults above; a
// negative MaxRetries takes DefaultMaxRetries.
type Config struct {
	Endpoint    string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	// OnAttempt observes every finished attempt, for metrics.
	OnAttempt func(outcome resilience.Outcome)
}

// Client posts questions to the assistant endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *slog.Logger
}

// New creates a Client. breaker may be nil.
func New(cfg Config, httpClient *http.Client, breaker *resilience.CircuitBreaker) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     slog.Default().With("component", "assistant-client"),
	}
}

// Timeout is the per-attempt deadline.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Budget is the longest a full Ask can take: every attempt timing out plus
// every backoff wait.
func (c *Client) Budget() time.Duration {
	budget := time.Duration(c.cfg.MaxRetries+1) * c.cfg.Timeout
	backoff := resilience.LinearBackoff(c.cfg.BackoffBase)
	for n := 0; n < c.cfg.MaxRetries; n++ {
		budget += backoff(n)
	}
	return budget
}

// Ask posts req and decodes the answer. It makes at most MaxRetries+1
// attempts, waiting BackoffBase*(n+1) after the n-th retryable failure. A
// cancelled ctx stops the loop at once. Failures are *RemoteError.
func (c *Client) Ask(ctx context.Context, req Request) (*Reply, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding assistant request: %w", err)
	}

	var resp *Response
	policy := resilience.Policy{
		Name:       "assistant",
		MaxRetries: c.cfg.MaxRetries,
		Backoff:    resilience.LinearBackoff(c.cfg.BackoffBase),
		OnAttempt: func(attempt int, outcome resilience.Outcome, err error) {
			if c.cfg.OnAttempt != nil {
				c.cfg.OnAttempt(outcome)
			}
		},
	}
	attempts, err := resilience.Do(ctx, policy, func(ctx context.Context, attempt int) (resilience.Outcome, error) {
		r, err := c.attempt(ctx, body)
		if err == nil {
			resp = r
			return resilience.OutcomeSuccess, nil
		}
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && remoteErr.retryable() {
			return resilience.OutcomeRetryable, remoteErr
		}
		return resilience.OutcomeTerminal, err
	})
	if err != nil {
		remoteErr := c.finalError(ctx, err, attempts)
		c.logger.Warn("assistant call failed",
			"kind", remoteErr.Kind,
			"status", remoteErr.Status,
			"attempts", attempts,
			"error", remoteErr.Err,
		)
		return nil, remoteErr
	}
	return &Reply{Response: *resp, Attempts: attempts}, nil
}

func (c *Client) finalError(ctx context.Context, err error, attempts int) *RemoteError {
	var remoteErr *RemoteError
	switch {
	case ctx.Err() != nil:
		remoteErr = &RemoteError{Kind: KindCanceled, Err: errors.Join(ctx.Err(), err)}
	case errors.As(err, &remoteErr):
		remoteErr = &RemoteError{Kind: remoteErr.Kind, Status: remoteErr.Status, Err: remoteErr.Err}
	default:
		remoteErr = &RemoteError{Kind: KindNetwork, Err: err}
	}
	remoteErr.Attempts = attempts
	return remoteErr
}

// attempt performs one POST under the per-attempt deadline and the breaker.
func (c *Client) attempt(ctx context.Context, body []byte) (*Response, error) {
	var resp *Response
	call := func() error {
		err := resilience.WithTimeout(ctx, c.cfg.Timeout, "assistant attempt", func(attemptCtx context.Context) error {
			r, err := c.post(attemptCtx, body)
			if err == nil {
				resp = r
			}
			return err
		})
		return classify(ctx, err)
	}
	var err error
	if c.breaker != nil {
		err = c.breaker.ExecuteFiltered(call, countsAgainstBreaker)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = &RemoteError{Kind: KindNetwork, Err: err}
		}
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building assistant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		return nil, &RemoteError{
			Kind:   KindHTTP,
			Status: httpResp.StatusCode,
			Err:    fmt.Errorf("backend returned %d: %s", httpResp.StatusCode, bytes.TrimSpace(snippet)),
		}
	}

	var out Response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, &RemoteError{Kind: KindDecode, Status: httpResp.StatusCode, Err: fmt.Errorf("decoding assistant response: %w", err)}
	}
	return &out, nil
}

// classify turns a raw attempt error into a *RemoteError. Parent
// cancellation wins over everything else.
func classify(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return &RemoteError{Kind: KindCanceled, Err: err}
	}
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Kind: KindTimeout, Err: err}
	}
	return &RemoteError{Kind: KindNetwork, Err: err}
}

// countsAgainstBreaker ignores client-side failures: cancellations and 4xx.
func countsAgainstBreaker(err error) bool {
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		return true
	}
	switch remoteErr.Kind {
	case KindCanceled:
		return false
	case KindHTTP:
		return remoteErr.Status >= 500
	default:
		return true
	}
}

// UserMessage renders a failure for the person asking.
func UserMessage(err error, timeout time.Duration) string {
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		return "Réponse indisponible"
	}
	switch remoteErr.Kind {
	case KindTimeout:
		return fmt.Sprintf("Timeout : le serveur met trop de temps à répondre (>%ds)", int(timeout.Seconds()))
	case KindHTTP:
		return fmt.Sprintf("Backend renvoie %d", remoteErr.Status)
	case KindCanceled:
		return "Analyse interrompue"
	default:
		return "Réponse indisponible"
	}
}
