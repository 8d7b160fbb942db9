// Package client is a typed HTTP client for the interviewer API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/stats"
)

const (
	DefaultQuestionTimeout = 120 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
)

var (
	ErrTimeout    = errors.New("request timed out")
	ErrNetwork    = errors.New("network error")
	ErrAuth       = errors.New("authentication failed")
	ErrValidation = errors.New("invalid request")
	ErrServer     = errors.New("server error")
)

// APIError carries the server's error message together with the category
// sentinel it unwraps to.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (HTTP %d)", e.kind, e.Status)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.kind }

// Unauthorized reports whether the server rejected the credentials.
func (e *APIError) Unauthorized() bool { return e.kind == ErrAuth }

// TimeoutError is returned when a request exceeds its deadline. Its message
// is suitable for showing to the user.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string { return e.Message }

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Client talks to one interviewer server. It is safe for concurrent use.
type Client struct {
	baseURL         string
	http            *http.Client
	questionTimeout time.Duration
	requestTimeout  time.Duration

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeouts sets the question fetch and general request timeouts.
// Non-positive values keep the defaults.
func WithTimeouts(question, request time.Duration) Option {
	return func(c *Client) {
		if question > 0 {
			c.questionTimeout = question
		}
		if request > 0 {
			c.requestTimeout = request
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{},
		questionTimeout: DefaultQuestionTimeout,
		requestTimeout:  DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetToken sets the bearer token sent with authenticated requests.
func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do sends one request bounded by timeout and decodes a JSON response into
// out. timeoutMsg is the user-facing text of a deadline error.
func (c *Client) do(ctx context.Context, timeout time.Duration, timeoutMsg, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Message: timeoutMsg}
		}
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Message: timeoutMsg}
		}
		return fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}

	if resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(status int, data []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &body)

	kind := ErrServer
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrAuth
	case http.StatusBadRequest, http.StatusConflict, http.StatusNotFound:
		kind = ErrValidation
	}
	return &APIError{Status: status, Message: body.Error, kind: kind}
}

const (
	msgTimeout         = "Request timed out. Please try again."
	msgQuestionTimeout = "Request timed out. The AI is taking longer than expected to generate questions. Please try again."
	msgEvalTimeout     = "Evaluation request timed out. Please try again."
)

type authResponse struct {
	AccessToken string     `json:"accessToken"`
	User        model.User `json:"user"`
}

// Login signs in and remembers the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, string, error) {
	var resp authResponse
	err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return model.User{}, "", err
	}
	c.SetToken(resp.AccessToken)
	return resp.User, resp.AccessToken, nil
}

// Register creates an account and remembers the returned token.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (model.User, string, error) {
	var resp authResponse
	err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodPost, "/auth/register",
		map[string]string{"email": email, "password": password, "fullName": fullName}, &resp)
	if err != nil {
		return model.User{}, "", err
	}
	c.SetToken(resp.AccessToken)
	return resp.User, resp.AccessToken, nil
}

// Profile returns the user the current token belongs to.
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	var resp struct {
		User model.User `json:"user"`
	}
	if err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodGet, "/auth/profile", nil, &resp); err != nil {
		return model.User{}, err
	}
	return resp.User, nil
}

// SignOut revokes the current token on the server and forgets it.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodPost, "/auth/signout", nil, nil)
	c.SetToken("")
	return err
}

// Roles returns the built-in job roles.
func (c *Client) Roles(ctx context.Context) ([]string, error) {
	var resp struct {
		Roles []string `json:"roles"`
	}
	if err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodGet, "/job-role/roles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Roles, nil
}

// Questions fetches the interview questions for role.
func (c *Client) Questions(ctx context.Context, role string) ([]model.Question, error) {
	var resp struct {
		Questions []model.Question `json:"questions"`
	}
	err := c.do(ctx, c.questionTimeout, msgQuestionTimeout, http.MethodPost, "/job-role/questions",
		map[string]string{"role": role}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// NextQuestion fetches one more question for role, different from current.
func (c *Client) NextQuestion(ctx context.Context, role, current string) (model.Question, error) {
	var resp struct {
		Question model.Question `json:"question"`
	}
	err := c.do(ctx, c.questionTimeout, msgQuestionTimeout, http.MethodPost, "/job-role/next-question",
		map[string]string{"role": role, "currentQuestion": current}, &resp)
	return resp.Question, err
}

// Evaluate scores answer to q.
func (c *Client) Evaluate(ctx context.Context, role string, q model.Question, answer string) (*model.Evaluation, error) {
	var resp struct {
		Evaluation *model.Evaluation `json:"evaluation"`
	}
	err := c.do(ctx, c.requestTimeout, msgEvalTimeout, http.MethodPost, "/job-role/evaluate",
		map[string]any{"role": role, "question": q, "answer": answer}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Evaluation == nil {
		return nil, fmt.Errorf("%w: empty evaluation", ErrServer)
	}
	return resp.Evaluation, nil
}

// SaveSession stores a finished session on the server.
func (c *Client) SaveSession(ctx context.Context, h model.SessionHistory) error {
	return c.do(ctx, c.requestTimeout, msgTimeout, http.MethodPost, "/sessions", h, nil)
}

// Sessions lists the user's saved sessions, oldest first.
func (c *Client) Sessions(ctx context.Context) ([]model.SessionHistory, error) {
	var resp struct {
		Sessions []model.SessionHistory `json:"sessions"`
	}
	if err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Stats returns the server-side dashboard summary.
func (c *Client) Stats(ctx context.Context) (stats.Summary, error) {
	var s stats.Summary
	err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodGet, "/sessions/stats", nil, &s)
	return s, err
}

// CustomRoles lists the user's custom roles.
func (c *Client) CustomRoles(ctx context.Context) ([]string, error) {
	var resp struct {
		CustomRoles []string `json:"customRoles"`
	}
	if err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodGet, "/custom-roles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.CustomRoles, nil
}

// AddCustomRole stores a custom role for the user.
func (c *Client) AddCustomRole(ctx context.Context, role string) error {
	return c.do(ctx, c.requestTimeout, msgTimeout, http.MethodPost, "/custom-roles", map[string]string{"role": role}, nil)
}

// RemoveCustomRole deletes one custom role.
func (c *Client) RemoveCustomRole(ctx context.Context, role string) error {
	return c.do(ctx, c.requestTimeout, msgTimeout, http.MethodDelete, "/custom-roles", map[string]string{"role": role}, nil)
}

// ClearCustomRoles deletes all of the user's custom roles.
func (c *Client) ClearCustomRoles(ctx context.Context) error {
	return c.do(ctx, c.requestTimeout, msgTimeout, http.MethodDelete, "/custom-roles", map[string]bool{"clearAll": true}, nil)
}

// ExportHistory downloads every user's history. Admin only.
func (c *Client) ExportHistory(ctx context.Context) (model.HistoryExport, error) {
	var out model.HistoryExport
	err := c.do(ctx, c.requestTimeout, msgTimeout, http.MethodGet, "/admin/export", nil, &out)
	return out, err
}
