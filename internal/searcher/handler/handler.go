package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/FJDaz/I-Am/internal/conversation"
	"github.com/FJDaz/I-Am/internal/engine"
	"github.com/FJDaz/I-Am/internal/searcher/cache"
	apperrors "github.com/FJDaz/I-Am/pkg/errors"
	"github.com/FJDaz/I-Am/pkg/logger"
)

const maxBodyBytes = 64 << 10

// QuestionEngine is what the handlers need from *engine.Engine.
type QuestionEngine interface {
	Ask(ctx context.Context, sessionID, question string) (*engine.AskResponse, error)
	Rank(ctx context.Context, sessionID, question string) (*engine.RankResponse, error)
	NewSession() string
	History(sessionID string) ([]conversation.Turn, error)
	ResetSession(sessionID string) error
}

type questionRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type Handler struct {
	engine QuestionEngine
	cache  *cache.AnswerCache
	logger *slog.Logger
}

// New creates the API handlers. answerCache may be nil.
func New(eng QuestionEngine, answerCache *cache.AnswerCache) *Handler {
	return &Handler{
		engine: eng,
		cache:  answerCache,
		logger: slog.Default().With("component", "api-handler"),
	}
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	resp, err := h.engine.Ask(r.Context(), req.SessionID, req.Question)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	resp, err := h.engine.Rank(r.Context(), req.SessionID, req.Question)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusCreated, map[string]string{"session_id": h.engine.NewSession()})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns, err := h.engine.History(id)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "turns": turns})
}

func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ResetSession(r.PathValue("id")); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) decodeQuestion(w http.ResponseWriter, r *http.Request) (questionRequest, bool) {
	var req questionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "request body must be JSON with a 'question' field")
		return req, false
	}
	return req, true
}

// writeAppError maps err to its status. Server-side failures are logged and
// their details kept out of the response.
func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "status", status, "error", err)
		if appErr == nil {
			message = http.StatusText(status)
		}
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
