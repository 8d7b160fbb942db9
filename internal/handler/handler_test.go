package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/interviewer/internal/catalog"
	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
	"github.com/pavelanni/interviewer/internal/token"
)

const (
	testSecret        = "test-secret-0123456789"
	testAdminPassword = "admin123"
)

type fakeInterviewer struct {
	mu        sync.Mutex
	genErr    error
	evalErr   error
	genCalls  int
	lastEvalQ model.Question
}

func (f *fakeInterviewer) GenerateQuestions(_ context.Context, role string, n int) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genCalls++
	if f.genErr != nil {
		return nil, f.genErr
	}
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:         "gen-" + string(rune('1'+i)),
			Question:   role + " question " + string(rune('A'+i)),
			Difficulty: model.DifficultyMedium,
			Category:   "General",
			Hints:      []string{"hint"},
		}
	}
	return qs, nil
}

func (f *fakeInterviewer) Evaluate(_ context.Context, _ string, q model.Question, answer string) (*model.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEvalQ = q
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return &model.Evaluation{Score: float64(len(answer) % 11), Feedback: "ok"}, nil
}

type testEnv struct {
	router http.Handler
	store  *store.Store
	tokens *token.Codec
	llm    *fakeInterviewer
	h      *Handler
}

func newTestEnv(t *testing.T, cfg model.ServerConfig) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := SeedAdmin(s, testAdminPassword); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}

	codec, err := token.New(testSecret)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	if cfg.NumQuestions == 0 {
		cfg.NumQuestions = 3
	}
	fake := &fakeInterviewer{}
	h := New(s, codec, fake, cfg)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	h.Routes(r)
	return &testEnv{router: r, store: s, tokens: codec, llm: fake, h: h}
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	return decodeBody[authResponse](t, rec).AccessToken
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})

	rec := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": AdminEmail, "password": testAdminPassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[authResponse](t, rec)
	if resp.User.Email != AdminEmail || resp.User.FullName != "Admin User" {
		t.Errorf("unexpected user: %+v", resp.User)
	}
	if _, err := e.tokens.Verify(resp.AccessToken, time.Now()); err != nil {
		t.Errorf("issued token does not verify: %v", err)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.Value != resp.AccessToken {
		t.Errorf("expected HttpOnly auth cookie, got %+v", cookie)
	}
	if cookie != nil && cookie.MaxAge != 7*24*60*60 {
		t.Errorf("cookie MaxAge = %d", cookie.MaxAge)
	}

	tests := []struct {
		name string
		body any
		want int
	}{
		{"wrong password", map[string]string{"email": AdminEmail, "password": "nope"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"email": "ghost@example.com", "password": "whatever"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"email": AdminEmail}, http.StatusBadRequest},
		{"bad json", "{not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/auth/login", "", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})

	body := map[string]string{"email": "new@example.com", "password": "secret1", "fullName": "New User"}
	rec := e.do(t, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[authResponse](t, rec)
	if resp.User.ID == "" || resp.AccessToken == "" {
		t.Errorf("unexpected register response: %+v", resp)
	}

	tests := []struct {
		name    string
		body    map[string]string
		want    int
		wantMsg string
	}{
		{"duplicate", map[string]string{"email": "NEW@example.com", "password": "secret1", "fullName": "Again"}, http.StatusConflict, "User already exists"},
		{"short password", map[string]string{"email": "x@example.com", "password": "12345", "fullName": "X"}, http.StatusBadRequest, "Password must be at least 6 characters"},
		{"missing name", map[string]string{"email": "x@example.com", "password": "123456"}, http.StatusBadRequest, "Email, password and full name are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/auth/register", "", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if got := decodeBody[map[string]string](t, rec)["error"]; got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestProfileAndSignOut(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	tok := e.login(t, AdminEmail, testAdminPassword)

	rec := e.do(t, http.MethodGet, "/auth/profile", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[map[string]model.User](t, rec)["user"]; got.Email != AdminEmail {
		t.Errorf("profile user = %+v", got)
	}

	// Cookie authentication.
	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: tok})
	cookieRec := httptest.NewRecorder()
	e.router.ServeHTTP(cookieRec, req)
	if cookieRec.Code != http.StatusOK {
		t.Errorf("cookie profile: %d", cookieRec.Code)
	}

	if rec := e.do(t, http.MethodGet, "/auth/profile", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/auth/profile", tok+"00", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("tampered token: %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/auth/signout", tok, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signout: %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("signout should clear the auth cookie")
	}
	if rec := e.do(t, http.MethodGet, "/auth/profile", tok, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked token should be rejected, got %d", rec.Code)
	}
}

func TestExpiredToken(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	tok := e.login(t, AdminEmail, testAdminPassword)

	e.h.now = func() time.Time { return time.Now().Add(token.TTL + time.Minute) }
	rec := e.do(t, http.MethodGet, "/auth/profile", tok, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec)["error"]; got != "Session expired, please sign in again" {
		t.Errorf("error = %q", got)
	}
}

func TestUnsignedTokenRejectedByDefault(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	acct, err := e.store.GetUserByEmail(AdminEmail)
	if err != nil || acct == nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	unsigned, err := token.EncodeUnsigned(acct.User)
	if err != nil {
		t.Fatalf("EncodeUnsigned: %v", err)
	}
	if rec := e.do(t, http.MethodGet, "/auth/profile", unsigned, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("unsigned token: %d", rec.Code)
	}
}

func TestRoles(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	rec := e.do(t, http.MethodGet, "/job-role/roles", "", nil)
	roles := decodeBody[map[string][]string](t, rec)["roles"]
	if len(roles) != 15 || roles[0] != "Frontend Developer" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestQuestions(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{QuestionCacheTTL: time.Minute})

	rec := e.do(t, http.MethodPost, "/job-role/questions", "", map[string]string{"role": "Backend Developer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("questions: %d %s", rec.Code, rec.Body.String())
	}
	qs := decodeBody[map[string][]model.Question](t, rec)["questions"]
	if len(qs) != 3 {
		t.Fatalf("expected 3 generated questions, got %d", len(qs))
	}

	// Cached per role regardless of case.
	e.do(t, http.MethodPost, "/job-role/questions", "", map[string]string{"role": "backend developer"})
	if e.llm.genCalls != 1 {
		t.Errorf("expected 1 generation call, got %d", e.llm.genCalls)
	}

	if rec := e.do(t, http.MethodPost, "/job-role/questions", "", map[string]string{"role": "  "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty role: %d", rec.Code)
	}
}

func TestQuestionsFallBackToBank(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	e.llm.genErr = context.DeadlineExceeded

	rec := e.do(t, http.MethodPost, "/job-role/questions", "", map[string]string{"role": "Frontend Developer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("questions: %d", rec.Code)
	}
	qs := decodeBody[map[string][]model.Question](t, rec)["questions"]
	if len(qs) != 7 || qs[0].ID != "1" {
		t.Errorf("expected built-in bank questions, got %d starting %q", len(qs), qs[0].ID)
	}
}

func TestNextQuestionFallsBackToBank(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	bank, err := catalog.QuestionsForRole("QA Engineer")
	if err != nil || len(bank) < 2 {
		t.Fatalf("QuestionsForRole: %v %d", err, len(bank))
	}

	tests := []struct {
		name    string
		genErr  error
		current string
		want    string
	}{
		{"generated repeats current", nil, "QA Engineer question A", bank[0].Question},
		{"generation fails", errors.New("llm down"), "", bank[0].Question},
		{"generation fails and bank head is current", errors.New("llm down"), bank[0].Question, bank[1].Question},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.llm.genErr = tt.genErr
			rec := e.do(t, http.MethodPost, "/job-role/next-question", "",
				map[string]string{"role": "QA Engineer", "currentQuestion": tt.current})
			if rec.Code != http.StatusOK {
				t.Fatalf("next-question: %d %s", rec.Code, rec.Body.String())
			}
			if q := decodeBody[map[string]model.Question](t, rec)["question"]; q.Question != tt.want {
				t.Errorf("question = %q, want %q", q.Question, tt.want)
			}
		})
	}
}

func TestNextQuestion(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	rec := e.do(t, http.MethodPost, "/job-role/next-question", "", map[string]string{"role": "QA Engineer", "currentQuestion": "anything"})
	if rec.Code != http.StatusOK {
		t.Fatalf("next-question: %d %s", rec.Code, rec.Body.String())
	}
	if q := decodeBody[map[string]model.Question](t, rec)["question"]; q.Question == "" {
		t.Error("expected a question")
	}
}

func TestEvaluate(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{QuestionCacheTTL: time.Minute})
	e.do(t, http.MethodPost, "/job-role/questions", "", map[string]string{"role": "Backend Developer"})

	// A bare question string is enriched from the cached question.
	rec := e.do(t, http.MethodPost, "/job-role/evaluate", "", map[string]any{
		"role":     "Backend Developer",
		"question": "Backend Developer question A",
		"answer":   "my answer",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate: %d %s", rec.Code, rec.Body.String())
	}
	if ev := decodeBody[map[string]model.Evaluation](t, rec)["evaluation"]; ev.Feedback != "ok" {
		t.Errorf("unexpected evaluation: %+v", ev)
	}
	if len(e.llm.lastEvalQ.Hints) != 1 {
		t.Errorf("question should carry cached hints, got %+v", e.llm.lastEvalQ)
	}

	// A full question object is used as is.
	rec = e.do(t, http.MethodPost, "/job-role/evaluate", "", map[string]any{
		"role":     "Backend Developer",
		"question": model.Question{ID: "x", Question: "Custom?", Hints: []string{"a", "b"}},
		"answer":   "yes",
	})
	if rec.Code != http.StatusOK || len(e.llm.lastEvalQ.Hints) != 2 {
		t.Errorf("object question: %d %+v", rec.Code, e.llm.lastEvalQ)
	}

	if rec := e.do(t, http.MethodPost, "/job-role/evaluate", "", map[string]any{"role": "Backend Developer", "question": "Q", "answer": " "}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty answer: %d", rec.Code)
	}

	e.llm.evalErr = errors.New("model unavailable")
	rec = e.do(t, http.MethodPost, "/job-role/evaluate", "", map[string]any{"role": "Backend Developer", "question": "Q", "answer": "A"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("failed evaluation: %d", rec.Code)
	}
}

func TestSessions(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	tok := e.login(t, AdminEmail, testAdminPassword)

	if rec := e.do(t, http.MethodGet, "/sessions", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("sessions without auth: %d", rec.Code)
	}

	sess := model.SessionHistory{
		ID: "s1", JobRole: "DevOps Engineer", TotalQuestions: 2, AnsweredQuestions: 1,
		CompletionRate: 50, Date: "2026-02-01T10:00:00Z", Duration: 60000,
		Answers: []model.AnswerRecord{{QuestionID: "11", Question: "IaC?", Answer: "Terraform",
			Evaluation: &model.Evaluation{Score: 8, Feedback: "good"}}},
	}
	rec := e.do(t, http.MethodPost, "/sessions", tok, sess)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save session: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[map[string]string](t, rec)["sessionId"]; got != "s1" {
		t.Errorf("sessionId = %q", got)
	}
	if rec := e.do(t, http.MethodPost, "/sessions", tok, sess); rec.Code != http.StatusConflict {
		t.Errorf("duplicate session: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/sessions", tok, model.SessionHistory{ID: "s2"}); rec.Code != http.StatusBadRequest {
		t.Errorf("session without role: %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/sessions", tok, nil)
	list := decodeBody[map[string][]model.SessionHistory](t, rec)["sessions"]
	if len(list) != 1 || list[0].Answers[0].Evaluation.Score != 8 {
		t.Fatalf("unexpected sessions: %+v", list)
	}

	rec = e.do(t, http.MethodGet, "/sessions/stats", tok, nil)
	summary := decodeBody[map[string]any](t, rec)
	if summary["totalSessions"] != float64(1) || summary["averageScore"] != float64(8) {
		t.Errorf("unexpected stats: %v", summary)
	}
}

func TestCustomRoles(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	tok := e.login(t, AdminEmail, testAdminPassword)

	tests := []struct {
		role string
		want int
	}{
		{"  AI/ML Engineer ", http.StatusCreated},
		{"ai/ml engineer", http.StatusConflict},
		{"frontend developer", http.StatusConflict},
		{"x", http.StatusBadRequest},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := e.do(t, http.MethodPost, "/custom-roles", tok, map[string]string{"role": tt.role}); rec.Code != tt.want {
			t.Errorf("add %q: %d, want %d", tt.role, rec.Code, tt.want)
		}
	}
	// Same operation through the job-role route.
	if rec := e.do(t, http.MethodPost, "/job-role/roles", tok, map[string]string{"role": "Blockchain Developer"}); rec.Code != http.StatusCreated {
		t.Errorf("add via job-role: %d", rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/custom-roles", tok, nil)
	roles := decodeBody[map[string][]string](t, rec)["customRoles"]
	if len(roles) != 2 || roles[0] != "AI/ML Engineer" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	if rec := e.do(t, http.MethodDelete, "/custom-roles", tok, map[string]string{"role": "AI/ML Engineer"}); rec.Code != http.StatusOK {
		t.Errorf("remove: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/custom-roles", tok, map[string]string{"role": "AI/ML Engineer"}); rec.Code != http.StatusNotFound {
		t.Errorf("remove missing: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/custom-roles", tok, map[string]bool{"clearAll": true}); rec.Code != http.StatusOK {
		t.Errorf("clear: %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/custom-roles", tok, nil)
	if roles := decodeBody[map[string][]string](t, rec)["customRoles"]; len(roles) != 0 {
		t.Errorf("expected no roles after clear, got %v", roles)
	}
}

func TestAdminRoutes(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{})
	adminTok := e.login(t, AdminEmail, testAdminPassword)

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "u@example.com", "password": "secret1", "fullName": "U"})
	userTok := decodeBody[authResponse](t, rec).AccessToken

	rec = e.do(t, http.MethodGet, "/admin/users", userTok, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin: %d", rec.Code)
	}
	if msg := decodeBody[map[string]string](t, rec)["error"]; msg != "Administrator access required" {
		t.Errorf("forbidden message = %q", msg)
	}
	rec = e.do(t, http.MethodGet, "/admin/users", adminTok, nil)
	if users := decodeBody[map[string][]model.User](t, rec)["users"]; len(users) != 2 {
		t.Errorf("expected 2 users, got %v", users)
	}

	e.do(t, http.MethodPost, "/sessions", userTok, model.SessionHistory{ID: "s1", JobRole: "QA Engineer", Date: "2026-02-01T10:00:00Z"})
	rec = e.do(t, http.MethodGet, "/admin/export", adminTok, nil)
	export := decodeBody[model.HistoryExport](t, rec)
	if export.NumUsers != 1 || export.Results[0].Email != "u@example.com" {
		t.Errorf("unexpected export: %+v", export)
	}
}

func TestSeedAdmin(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer s.Close()

	if _, err := SeedAdmin(s, ""); !errors.Is(err, ErrAdminPassword) {
		t.Errorf("expected ErrAdminPassword, got %v", err)
	}
	created, err := SeedAdmin(s, testAdminPassword)
	if err != nil || !created {
		t.Fatalf("SeedAdmin: %v, %v", created, err)
	}
	created, err = SeedAdmin(s, "")
	if err != nil || created {
		t.Errorf("second SeedAdmin should be a no-op: %v, %v", created, err)
	}
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t, model.ServerConfig{LoginRate: 0.001, LoginBurst: 2})
	body := map[string]string{"email": AdminEmail, "password": "wrong"}

	for i := 0; i < 2; i++ {
		if rec := e.do(t, http.MethodPost, "/auth/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: %d", i+1, rec.Code)
		}
	}
	rec := e.do(t, http.MethodPost, "/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	// Other endpoints are not limited.
	if rec := e.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health after limit: %d", rec.Code)
	}
}
