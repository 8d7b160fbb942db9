package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/stats"
	"github.com/pavelanni/interviewer/internal/store"
)

type deleteRoleRequest struct {
	Role     string `json:"role"`
	ClearAll bool   `json:"clearAll"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessions, err := h.store.ListSessionHistory(user.ID)
	if err != nil {
		slog.Error("failed to list sessions", "user", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *Handler) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var sess model.SessionHistory
	if !decodeJSON(w, r, &sess) {
		return
	}
	sess.ID = strings.TrimSpace(sess.ID)
	sess.JobRole = strings.TrimSpace(sess.JobRole)
	if sess.ID == "" || sess.JobRole == "" {
		writeError(w, r, http.StatusBadRequest, "ErrSessionInvalid")
		return
	}

	if err := h.store.SaveSessionHistory(user.ID, sess); err != nil {
		if errors.Is(err, store.ErrDuplicateSession) {
			writeError(w, r, http.StatusConflict, "ErrSessionDuplicate")
			return
		}
		slog.Error("failed to save session", "user", user.ID, "session", sess.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	slog.Info("session saved", "user", user.ID, "session", sess.ID, "answered", sess.AnsweredQuestions, "total", sess.TotalQuestions)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Session saved successfully", "sessionId": sess.ID})
}

func (h *Handler) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessions, err := h.store.ListSessionHistory(user.ID)
	if err != nil {
		slog.Error("failed to list sessions", "user", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(sessions))
}

func (h *Handler) handleListCustomRoles(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	roles, err := h.store.ListCustomRoles(user.ID)
	if err != nil {
		slog.Error("failed to list custom roles", "user", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customRoles": roles})
}

func (h *Handler) handleDeleteCustomRole(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req deleteRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.ClearAll {
		if err := h.store.ClearCustomRoles(user.ID); err != nil {
			slog.Error("failed to clear custom roles", "user", user.ID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "All custom roles cleared successfully"})
		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		writeError(w, r, http.StatusBadRequest, "ErrRoleRequired")
		return
	}
	if err := h.store.RemoveCustomRole(user.ID, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "ErrRoleNotFound")
			return
		}
		slog.Error("failed to remove custom role", "user", user.ID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Custom role removed successfully", "role": role})
}
