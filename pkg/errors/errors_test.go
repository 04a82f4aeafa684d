package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"corpus load", fmt.Errorf("loading: %w", ErrCorpusLoad), http.StatusServiceUnavailable},
		{"remote timeout", ErrRemoteTimeout, http.StatusGatewayTimeout},
		{"remote http", fmt.Errorf("attempt 3: %w", ErrRemoteHTTP), http.StatusBadGateway},
		{"remote network", ErrRemoteNetwork, http.StatusBadGateway},
		{"busy", ErrSessionBusy, http.StatusConflict},
		{"not found", ErrSessionNotFound, http.StatusNotFound},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"app error wins", New(ErrInvalidInput, http.StatusUnprocessableEntity, "question too long"), http.StatusUnprocessableEntity},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "question must not exceed %d characters", 2000)
	if !Is(err, ErrInvalidInput) {
		t.Fatal("expected AppError to unwrap to its sentinel")
	}
	if err.Error() != "invalid input: question must not exceed 2000 characters" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
