package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/patrickmn/go-cache"

	"github.com/pavelanni/interviewer/internal/catalog"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

type roleRequest struct {
	Role string `json:"role"`
}

// questionInput accepts either a bare question string or a full question
// object.
type questionInput struct {
	value model.Question
}

func (q *questionInput) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		q.value = model.Question{Question: text}
		return nil
	}
	return json.Unmarshal(data, &q.value)
}

type evaluateRequest struct {
	Role     string        `json:"role"`
	Question questionInput `json:"question"`
	Answer   string        `json:"answer"`
}

type nextQuestionRequest struct {
	Role            string `json:"role"`
	CurrentQuestion string `json:"currentQuestion"`
}

func (h *Handler) handleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"roles": catalog.BuiltinRoles()})
}

func (h *Handler) handleAddCustomRole(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	existing, err := h.store.ListCustomRoles(user.ID)
	if err != nil {
		slog.Error("failed to list custom roles", "user", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	role, err := catalog.ValidateCustomRole(req.Role, existing)
	if err != nil {
		writeError(w, r, roleErrorStatus(err), roleErrorID(err))
		return
	}

	if err := h.store.AddCustomRole(user.ID, role); err != nil {
		if errors.Is(err, store.ErrDuplicateRole) {
			writeError(w, r, http.StatusConflict, "ErrRoleDuplicate")
			return
		}
		slog.Error("failed to add custom role", "user", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Custom role added successfully", "role": role})
}

func roleErrorStatus(err error) int {
	if errors.Is(err, catalog.ErrRoleDuplicate) {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func roleErrorID(err error) string {
	switch {
	case errors.Is(err, catalog.ErrRoleDuplicate):
		return "ErrRoleDuplicate"
	case errors.Is(err, catalog.ErrRoleTooShort):
		return "ErrRoleTooShort"
	default:
		return "ErrRoleRequired"
	}
}

// generationContext bounds a single LLM call by the configured timeout.
func (h *Handler) generationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.config.LLMTimeout > 0 {
		return context.WithTimeout(parent, h.config.LLMTimeout)
	}
	return context.WithCancel(parent)
}

// questionsFor returns cached, generated or built-in questions for role,
// in that order of preference.
func (h *Handler) questionsFor(ctx context.Context, role string) []model.Question {
	key := strings.ToLower(role)
	if v, ok := h.questions.Get(key); ok {
		return v.([]model.Question)
	}

	ctx, cancel := h.generationContext(ctx)
	defer cancel()

	qs, err := h.llm.GenerateQuestions(ctx, role, h.config.NumQuestions)
	if err == nil {
		if h.config.QuestionCacheTTL > 0 {
			h.questions.Set(key, qs, cache.DefaultExpiration)
		}
		return qs
	}

	slog.Warn("question generation failed, using built-in bank", "role", role, "error", err)
	qs, err = catalog.QuestionsForRole(role)
	if err != nil {
		slog.Error("failed to load question bank", "error", err)
		return []model.Question{}
	}
	return qs
}

// cachedQuestion finds a previously generated question by its text so a
// bare-text evaluation request still gets hints and the model answer.
func (h *Handler) cachedQuestion(role, text string) (model.Question, bool) {
	v, ok := h.questions.Get(strings.ToLower(role))
	if !ok {
		return model.Question{}, false
	}
	for _, q := range v.([]model.Question) {
		if strings.EqualFold(strings.TrimSpace(q.Question), strings.TrimSpace(text)) {
			return q, true
		}
	}
	return model.Question{}, false
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		writeError(w, r, http.StatusBadRequest, "ErrRoleRequired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": h.questionsFor(r.Context(), role)})
}

// handleNextQuestion returns one extra question for role that differs from
// the current one.
func (h *Handler) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	var req nextQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		writeError(w, r, http.StatusBadRequest, "ErrRoleRequired")
		return
	}
	current := strings.TrimSpace(req.CurrentQuestion)

	ctx, cancel := h.generationContext(r.Context())
	defer cancel()

	candidates, err := h.llm.GenerateQuestions(ctx, role, 1)
	if err != nil {
		slog.Warn("next question generation failed, using built-in bank", "role", role, "error", err)
	}
	if q, ok := differentQuestion(candidates, current); ok {
		writeJSON(w, http.StatusOK, map[string]any{"question": q})
		return
	}
	if err == nil {
		slog.Info("generated question repeats the current one, using built-in bank", "role", role)
	}

	bank, err := catalog.QuestionsForRole(role)
	if err != nil {
		slog.Error("failed to load question bank", "error", err)
	}
	if q, ok := differentQuestion(bank, current); ok {
		writeJSON(w, http.StatusOK, map[string]any{"question": q})
		return
	}
	writeError(w, r, http.StatusBadGateway, "ErrInternal")
}

// differentQuestion returns the first question whose text is not current.
func differentQuestion(qs []model.Question, current string) (model.Question, bool) {
	for _, q := range qs {
		if !strings.EqualFold(strings.TrimSpace(q.Question), current) {
			return q, true
		}
	}
	return model.Question{}, false
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		writeError(w, r, http.StatusBadRequest, "ErrRoleRequired")
		return
	}
	if strings.TrimSpace(req.Question.value.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		writeError(w, r, http.StatusBadRequest, "ErrQuestionRequired")
		return
	}

	q := req.Question.value
	if len(q.Hints) == 0 {
		if cached, ok := h.cachedQuestion(role, q.Question); ok {
			q = cached
		}
	}

	ctx, cancel := h.generationContext(r.Context())
	defer cancel()

	eval, err := h.llm.Evaluate(ctx, role, q, req.Answer)
	if err != nil {
		slog.Error("LLM evaluation failed", "role", role, "error", err)
		writeError(w, r, http.StatusBadGateway, "ErrEvaluationFailed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluation": eval})
}
