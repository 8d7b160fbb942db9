package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
	"github.com/pavelanni/interviewer/internal/token"
)

const maxBodyBytes = 1 << 20

// Interviewer generates questions and scores answers.
type Interviewer interface {
	GenerateQuestions(ctx context.Context, role string, n int) ([]model.Question, error)
	Evaluate(ctx context.Context, role string, q model.Question, answer string) (*model.Evaluation, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	tokens    *token.Codec
	llm       Interviewer
	config    model.ServerConfig
	questions *cache.Cache
	limiter   *ipLimiter
	now       func() time.Time
}

// New creates a new Handler.
func New(s *store.Store, tokens *token.Codec, iv Interviewer, cfg model.ServerConfig) *Handler {
	if cfg.NumQuestions <= 0 {
		cfg.NumQuestions = 5
	}
	return &Handler{
		store:     s,
		tokens:    tokens,
		llm:       iv,
		config:    cfg,
		questions: cache.New(cfg.QuestionCacheTTL, 10*time.Minute),
		limiter:   newIPLimiter(cfg.LoginRate, cfg.LoginBurst),
		now:       time.Now,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.With(h.rateLimit).Post("/login", h.handleLogin)
		r.With(h.rateLimit).Post("/register", h.handleRegister)
		r.Post("/signout", h.handleSignOut)
		r.With(h.requireAuth).Get("/profile", h.handleProfile)
	})

	r.Route("/job-role", func(r chi.Router) {
		r.Get("/roles", h.handleRoles)
		r.With(h.requireAuth).Post("/roles", h.handleAddCustomRole)
		r.Post("/questions", h.handleQuestions)
		r.Post("/next-question", h.handleNextQuestion)
		r.Post("/evaluate", h.handleEvaluate)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/sessions", h.handleListSessions)
		r.Post("/sessions", h.handleSaveSession)
		r.Get("/sessions/stats", h.handleSessionStats)

		r.Get("/custom-roles", h.handleListCustomRoles)
		r.Post("/custom-roles", h.handleAddCustomRole)
		r.Delete("/custom-roles", h.handleDeleteCustomRole)

		r.With(requireAdmin).Get("/admin/users", h.handleAdminUsers)
		r.With(requireAdmin).Get("/admin/export", h.handleAdminExport)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError writes {"error": msg} with msg translated from msgID.
func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, map[string]string{"error": appI18n.T(r.Context(), msgID)})
}

// decodeJSON reads a size-limited JSON body into v and reports a 400 on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("request body too large", "path", r.URL.Path)
		}
		writeError(w, r, http.StatusBadRequest, "ErrInvalidBody")
		return false
	}
	return true
}
