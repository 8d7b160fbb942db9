package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
	"github.com/pavelanni/interviewer/internal/token"
)

const (
	authCookieName = "auth-token"
	minPasswordLen = 6
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type authResponse struct {
	AccessToken string     `json:"accessToken"`
	User        model.User `json:"user"`
}

// bearerToken returns the request's token from the Authorization header
// or, failing that, the auth cookie.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// requireAuth is middleware that rejects requests without a valid token
// and stores the token's user in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized")
			return
		}

		user, err := h.tokens.Authenticate(tok, h.now())
		if err != nil {
			slog.Debug("token rejected", "error", err)
			msgID := "ErrUnauthorized"
			if errors.Is(err, token.ErrExpired) {
				msgID = "ErrTokenExpired"
			}
			writeError(w, r, http.StatusUnauthorized, msgID)
			return
		}

		revoked, err := h.store.IsRevoked(tok)
		if err != nil {
			slog.Error("failed to check token revocation", "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
			return
		}
		if revoked {
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized")
			return
		}

		// The token may outlive the account; refresh the profile from the store.
		acct, err := h.store.GetUserByID(user.ID)
		if err != nil {
			slog.Error("failed to get user", "id", user.ID, "error", err)
			writeError(w, r, http.StatusInternalServerError, "ErrInternal")
			return
		}
		if acct == nil {
			writeError(w, r, http.StatusUnauthorized, "ErrUnauthorized")
			return
		}

		ctx := model.ContextWithUser(r.Context(), &acct.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "ErrMissingCredentials")
		return
	}

	acct, err := h.store.GetUserByEmail(email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	if acct == nil {
		writeError(w, r, http.StatusUnauthorized, "ErrInvalidCredentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, r, http.StatusUnauthorized, "ErrInvalidCredentials")
		return
	}

	h.issueToken(w, r, http.StatusOK, acct.User)
	slog.Info("user signed in", "id", acct.ID)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || req.Password == "" || fullName == "" {
		writeError(w, r, http.StatusBadRequest, "ErrMissingFields")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, r, http.StatusBadRequest, "ErrPasswordTooShort")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	acct := model.Account{
		User:         model.User{ID: uuid.NewString(), Email: email, FullName: fullName},
		PasswordHash: string(hash),
	}
	if err := h.store.CreateUser(acct); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, r, http.StatusConflict, "ErrEmailTaken")
			return
		}
		slog.Error("failed to create user", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}

	h.issueToken(w, r, http.StatusCreated, acct.User)
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request, status int, u model.User) {
	tok, err := h.tokens.Issue(u, h.now())
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(token.TTL / time.Second),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, authResponse{AccessToken: tok, User: u})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": model.UserFromContext(r.Context())})
}

// handleSignOut revokes the presented token, if any, and clears the cookie.
func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if tok := bearerToken(r); tok != "" {
		if _, err := h.tokens.Verify(tok, h.now()); err == nil {
			if err := h.store.RevokeToken(tok, h.now().Add(token.TTL)); err != nil {
				slog.Error("failed to revoke token", "error", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Signed out successfully"})
}
