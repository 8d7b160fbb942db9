package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

const (
	// AdminEmail is the account seeded on first start.
	AdminEmail    = "admin@interview.app"
	adminFullName = "Admin User"
)

// ErrAdminPassword is returned when the database has no users and no
// admin password was configured.
var ErrAdminPassword = errors.New("admin password is required to seed the first user")

// SeedAdmin creates the default admin account when the store has no users.
// It reports whether an account was created.
func SeedAdmin(s *store.Store, password string) (bool, error) {
	count, err := s.UserCount()
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if len(password) < minPasswordLen {
		return false, ErrAdminPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	err = s.CreateUser(model.Account{
		User:         model.User{ID: uuid.NewString(), Email: AdminEmail, FullName: adminFullName},
		PasswordHash: string(hash),
	})
	if err != nil {
		return false, fmt.Errorf("create admin user: %w", err)
	}
	slog.Info("seeded admin user", "email", AdminEmail)
	return true, nil
}

// requireAdmin allows only the seeded admin account. It must run after
// requireAuth.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := model.UserFromContext(r.Context())
		if user == nil {
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized")
			return
		}
		if !strings.EqualFold(user.Email, AdminEmail) {
			writeError(w, r, http.StatusForbidden, "ErrForbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ExportAllHistory()
	if err != nil {
		slog.Error("failed to export history", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	writeJSON(w, http.StatusOK, model.HistoryExport{
		ExportedAt: h.now().UTC(),
		NumUsers:   len(results),
		Results:    results,
	})
}
