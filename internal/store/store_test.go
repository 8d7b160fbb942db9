package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, id, email string) model.Account {
	t.Helper()
	a := model.Account{
		User:         model.User{ID: id, Email: email, FullName: "User " + id},
		PasswordHash: "hash-" + id,
	}
	if err := s.CreateUser(a); err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return a
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	insertTestUser(t, s, "u1", "one@example.com")

	got, err := s.GetUserByEmail("one@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != "u1" || got.PasswordHash != "hash-u1" {
		t.Fatalf("unexpected account: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	// Email lookup ignores case.
	got, err = s.GetUserByEmail("ONE@example.com")
	if err != nil || got == nil {
		t.Fatalf("case-insensitive GetUserByEmail: %v, %v", got, err)
	}

	got, err = s.GetUserByID("u1")
	if err != nil || got == nil || got.Email != "one@example.com" {
		t.Fatalf("GetUserByID: %+v, %v", got, err)
	}

	// Not found.
	got, err = s.GetUserByID("missing")
	if err != nil {
		t.Fatalf("GetUserByID missing: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing user, got %+v", got)
	}

	// Duplicate email.
	err = s.CreateUser(model.Account{User: model.User{ID: "u2", Email: "One@Example.com", FullName: "Dup"}, PasswordHash: "x"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}

	insertTestUser(t, s, "u3", "three@example.com")
	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func testHistory(id, date string) model.SessionHistory {
	return model.SessionHistory{
		ID:                id,
		JobRole:           "Backend Developer",
		TotalQuestions:    2,
		AnsweredQuestions: 1,
		CompletionRate:    50,
		Date:              date,
		Duration:          90000,
		Answers: []model.AnswerRecord{
			{QuestionID: "6", Question: "SQL vs NoSQL?", Answer: "ACID vs BASE", Difficulty: model.DifficultyEasy, Category: "Database Design",
				Evaluation: &model.Evaluation{Score: 7, Feedback: "Good", Strengths: []string{"concise"}}},
			{QuestionID: "7", Question: "REST?", Answer: "", Difficulty: model.DifficultyMedium, Category: "API Design"},
		},
	}
}

func TestSessionHistory(t *testing.T) {
	s := newTestStore(t)
	insertTestUser(t, s, "u1", "one@example.com")
	insertTestUser(t, s, "u2", "two@example.com")

	empty, err := s.ListSessionHistory("u1")
	if err != nil {
		t.Fatalf("ListSessionHistory: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no sessions, got %d", len(empty))
	}

	if err := s.SaveSessionHistory("u1", testHistory("s2", "2026-01-02T10:00:00Z")); err != nil {
		t.Fatalf("SaveSessionHistory: %v", err)
	}
	if err := s.SaveSessionHistory("u1", testHistory("s1", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatalf("SaveSessionHistory: %v", err)
	}
	if err := s.SaveSessionHistory("u2", testHistory("s3", "2026-01-03T10:00:00Z")); err != nil {
		t.Fatalf("SaveSessionHistory: %v", err)
	}

	// Same id again.
	if err := s.SaveSessionHistory("u1", testHistory("s1", "2026-01-01T10:00:00Z")); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("expected ErrDuplicateSession, got %v", err)
	}

	sessions, err := s.ListSessionHistory("u1")
	if err != nil {
		t.Fatalf("ListSessionHistory: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	// Oldest first.
	if sessions[0].ID != "s1" || sessions[1].ID != "s2" {
		t.Errorf("unexpected order: %s, %s", sessions[0].ID, sessions[1].ID)
	}

	got := sessions[0]
	if got.CompletionRate != 50 || got.Duration != 90000 {
		t.Errorf("unexpected session fields: %+v", got)
	}
	if len(got.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(got.Answers))
	}
	if got.Answers[0].Evaluation == nil || got.Answers[0].Evaluation.Score != 7 {
		t.Errorf("expected first answer evaluation score 7, got %+v", got.Answers[0].Evaluation)
	}
	if got.Answers[0].Evaluation.Strengths[0] != "concise" {
		t.Errorf("strengths not round-tripped: %+v", got.Answers[0].Evaluation)
	}
	if got.Answers[1].Evaluation != nil {
		t.Error("expected nil evaluation for unanswered question")
	}
}

func TestCustomRoles(t *testing.T) {
	s := newTestStore(t)
	insertTestUser(t, s, "u1", "one@example.com")
	insertTestUser(t, s, "u2", "two@example.com")

	roles, err := s.ListCustomRoles("u1")
	if err != nil {
		t.Fatalf("ListCustomRoles: %v", err)
	}
	if roles == nil || len(roles) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", roles)
	}

	for _, r := range []string{"AI/ML Engineer", "Blockchain Developer"} {
		if err := s.AddCustomRole("u1", r); err != nil {
			t.Fatalf("AddCustomRole(%q): %v", r, err)
		}
	}
	if err := s.AddCustomRole("u1", "ai/ml engineer"); !errors.Is(err, ErrDuplicateRole) {
		t.Errorf("expected ErrDuplicateRole, got %v", err)
	}
	// Other users may have the same role.
	if err := s.AddCustomRole("u2", "AI/ML Engineer"); err != nil {
		t.Errorf("AddCustomRole for second user: %v", err)
	}

	roles, _ = s.ListCustomRoles("u1")
	if len(roles) != 2 || roles[0] != "AI/ML Engineer" || roles[1] != "Blockchain Developer" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	if err := s.RemoveCustomRole("u1", "blockchain developer"); err != nil {
		t.Fatalf("RemoveCustomRole: %v", err)
	}
	if err := s.RemoveCustomRole("u1", "Blockchain Developer"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.ClearCustomRoles("u1"); err != nil {
		t.Fatalf("ClearCustomRoles: %v", err)
	}
	roles, _ = s.ListCustomRoles("u1")
	if len(roles) != 0 {
		t.Errorf("expected no roles after clear, got %v", roles)
	}
	roles, _ = s.ListCustomRoles("u2")
	if len(roles) != 1 {
		t.Errorf("clear should not touch other users, got %v", roles)
	}
}

func TestRevokedTokens(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	revoked, err := s.IsRevoked("tok-a")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("fresh token should not be revoked")
	}

	if err := s.RevokeToken("tok-a", now.Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := s.RevokeToken("tok-a", now.Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken twice: %v", err)
	}
	if err := s.RevokeToken("tok-b", now.Add(-time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	if revoked, _ := s.IsRevoked("tok-a"); !revoked {
		t.Error("tok-a should be revoked")
	}

	if err := s.CleanupRevokedTokens(now); err != nil {
		t.Fatalf("CleanupRevokedTokens: %v", err)
	}
	if revoked, _ := s.IsRevoked("tok-a"); !revoked {
		t.Error("unexpired revocation should survive cleanup")
	}
	if revoked, _ := s.IsRevoked("tok-b"); revoked {
		t.Error("expired revocation should be cleaned up")
	}
}

func TestExportAllHistory(t *testing.T) {
	s := newTestStore(t)
	insertTestUser(t, s, "u1", "one@example.com")
	insertTestUser(t, s, "u2", "two@example.com")

	if err := s.SaveSessionHistory("u2", testHistory("s1", "2026-01-01T10:00:00Z")); err != nil {
		t.Fatalf("SaveSessionHistory: %v", err)
	}

	results, err := s.ExportAllHistory()
	if err != nil {
		t.Fatalf("ExportAllHistory: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 user with sessions, got %d", len(results))
	}
	if results[0].Email != "two@example.com" || len(results[0].Sessions) != 1 {
		t.Errorf("unexpected export: %+v", results[0])
	}
}
