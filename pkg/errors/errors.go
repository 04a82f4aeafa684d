package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCorpusLoad         = errors.New("corpus could not be loaded")
	ErrLexiconUnavailable = errors.New("lexicon unavailable")
	ErrRemoteTimeout      = errors.New("assistant backend timed out")
	ErrRemoteHTTP         = errors.New("assistant backend returned an error status")
	ErrRemoteNetwork      = errors.New("assistant backend unreachable")
	ErrInvalidInput       = errors.New("invalid input")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionBusy        = errors.New("a question is already in flight for this session")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrCorpusLoad):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRemoteTimeout), errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrRemoteHTTP), errors.Is(err, ErrRemoteNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers importing this package
// under its own name do not need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
