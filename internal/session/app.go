package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/interviewer/internal/model"
)

const (
	DefaultEvalConcurrency = 4
	DefaultEvalTimeout     = 2 * time.Minute

	// dateLayout matches the ISO-8601 timestamps browsers produce.
	dateLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Backend is the server the client talks to.
type Backend interface {
	Login(ctx context.Context, email, password string) (model.User, string, error)
	Register(ctx context.Context, email, password, fullName string) (model.User, string, error)
	Profile(ctx context.Context) (model.User, error)
	SignOut(ctx context.Context) error
	SetToken(tok string)

	Questions(ctx context.Context, role string) ([]model.Question, error)
	NextQuestion(ctx context.Context, role, current string) (model.Question, error)
	Evaluate(ctx context.Context, role string, q model.Question, answer string) (*model.Evaluation, error)

	SaveSession(ctx context.Context, h model.SessionHistory) error
	Sessions(ctx context.Context) ([]model.SessionHistory, error)

	CustomRoles(ctx context.Context) ([]string, error)
	AddCustomRole(ctx context.Context, role string) error
	RemoveCustomRole(ctx context.Context, role string) error
	ClearCustomRoles(ctx context.Context) error
}

// Result reports the outcome of an auth operation. Error is a user-facing
// message when Success is false.
type Result struct {
	Success bool
	Error   string
}

func failure(err error) Result {
	return Result{Error: err.Error()}
}

// Config tunes session completion.
type Config struct {
	EvalConcurrency int
	EvalTimeout     time.Duration
}

// App owns the State and applies transitions on behalf of a user
// interface. It is safe for concurrent use.
type App struct {
	backend   Backend
	snapshots SnapshotStore
	cfg       Config
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	state State
}

// NewApp creates an App with an empty state. Call Restore to load the
// persisted snapshot.
func NewApp(b Backend, snaps SnapshotStore, cfg Config) *App {
	if cfg.EvalConcurrency <= 0 {
		cfg.EvalConcurrency = DefaultEvalConcurrency
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = DefaultEvalTimeout
	}
	return &App{
		backend:   b,
		snapshots: snaps,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// State returns a copy of the current state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Restore loads the persisted snapshot into the state.
func (a *App) Restore() error {
	snap, err := a.snapshots.Load()
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.state = snap.Apply(a.state)
	a.mu.Unlock()
	a.backend.SetToken(snap.Token)
	return nil
}

// persist saves the snapshot of s. Failures are logged only.
func (a *App) persist(s State) {
	if err := a.snapshots.Save(SnapshotOf(s)); err != nil {
		slog.Error("failed to save snapshot", "error", err)
	}
}

// update applies fn to the state under the lock and persists the result
// when fn succeeds.
func (a *App) update(fn func(State) (State, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := fn(a.state)
	if err != nil {
		return err
	}
	a.state = s
	a.persist(s)
	return nil
}

// SetJobRole selects the role for the next session.
func (a *App) SetJobRole(role string) {
	a.mu.Lock()
	a.state = SetJobRole(a.state, role)
	a.mu.Unlock()
}

// Next moves to the following question.
func (a *App) Next() {
	a.mu.Lock()
	a.state = Next(a.state)
	a.mu.Unlock()
}

// Previous moves to the preceding question.
func (a *App) Previous() {
	a.mu.Lock()
	a.state = Previous(a.state)
	a.mu.Unlock()
}

// SaveAnswer overwrites the answer at index i.
func (a *App) SaveAnswer(i int, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := SaveAnswer(a.state, i, text)
	if err != nil {
		return err
	}
	a.state = s
	return nil
}

// ResetSession abandons the current session.
func (a *App) ResetSession() {
	a.mu.Lock()
	a.state = Reset(a.state)
	a.mu.Unlock()
}

// StartSession fetches questions for the selected role and starts a
// session. The state is unchanged on error, including when the backend
// returns no questions.
func (a *App) StartSession(ctx context.Context) error {
	a.mu.Lock()
	role, phase := a.state.JobRole, a.state.Phase
	a.mu.Unlock()
	if role == "" {
		return ErrNoJobRole
	}
	if phase == PhaseActive || phase == PhaseEvaluating {
		return ErrSessionActive
	}

	questions, err := a.backend.Questions(ctx, role)
	if err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := Start(a.state, questions, a.now())
	if err != nil {
		return err
	}
	a.state = s
	slog.Info("session started", "role", role, "questions", len(questions))
	return nil
}

// ReplaceCurrentQuestion asks the backend for a different question and puts
// it in place of the current one.
func (a *App) ReplaceCurrentQuestion(ctx context.Context) error {
	a.mu.Lock()
	s := a.state
	a.mu.Unlock()
	cur, ok := s.Current()
	if s.Phase != PhaseActive || !ok {
		return ErrNotActive
	}

	q, err := a.backend.NextQuestion(ctx, s.JobRole, cur.Question)
	if err != nil {
		return fmt.Errorf("fetch next question: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := ReplaceQuestion(a.state, s.CurrentIndex, q)
	if err != nil {
		return err
	}
	a.state = next
	return nil
}

// CompleteSession evaluates every answered question, records the session
// in history and returns to idle. A failed evaluation is replaced by the
// failed sentinel and never fails the whole session.
func (a *App) CompleteSession(ctx context.Context) (model.SessionHistory, error) {
	a.mu.Lock()
	s, err := BeginEvaluation(a.state)
	if err != nil {
		a.mu.Unlock()
		return model.SessionHistory{}, err
	}
	a.state = s
	a.mu.Unlock()

	evals := a.evaluateAll(ctx, s.JobRole, s.Questions, s.Answers)

	end := a.now()
	answered, rate := model.CompletionRate(s.Answers, len(s.Questions))
	record := model.SessionHistory{
		ID:                a.newID(),
		JobRole:           s.JobRole,
		TotalQuestions:    len(s.Questions),
		AnsweredQuestions: answered,
		CompletionRate:    rate,
		Date:              end.UTC().Format(dateLayout),
		Duration:          end.Sub(s.StartedAt).Milliseconds(),
		Answers:           make([]model.AnswerRecord, len(s.Questions)),
	}
	for i, q := range s.Questions {
		record.Answers[i] = model.AnswerRecord{
			QuestionID: q.ID,
			Question:   q.Question,
			Answer:     s.Answers[i],
			Difficulty: q.Difficulty,
			Category:   q.Category,
			Evaluation: evals[i],
		}
	}

	a.mu.Lock()
	s, err = Finish(a.state, record)
	if err != nil {
		a.mu.Unlock()
		return model.SessionHistory{}, err
	}
	a.persist(s)
	a.state = Reset(s)
	signedIn := s.Token != ""
	a.mu.Unlock()

	if signedIn {
		if err := a.backend.SaveSession(ctx, record); err != nil {
			slog.Warn("failed to save session to server", "session", record.ID, "error", err)
		}
	}
	slog.Info("session completed", "session", record.ID, "answered", answered, "total", record.TotalQuestions)
	return record, nil
}

// evaluateAll scores the non-empty answers concurrently, bounded by the
// configured concurrency and overall timeout. Unanswered questions get a
// nil evaluation.
func (a *App) evaluateAll(ctx context.Context, role string, questions []model.Question, answers []string) []*model.Evaluation {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.EvalTimeout)
	defer cancel()

	evals := make([]*model.Evaluation, len(questions))
	var g errgroup.Group
	g.SetLimit(a.cfg.EvalConcurrency)
	for i, q := range questions {
		if !model.IsAnswered(answers[i]) {
			continue
		}
		g.Go(func() error {
			e, err := a.backend.Evaluate(ctx, role, q, answers[i])
			if err != nil || e == nil {
				slog.Warn("evaluation failed", "question", q.ID, "error", err)
				e = model.FailedEvaluation()
			}
			evals[i] = e
			return nil
		})
	}
	_ = g.Wait()
	return evals
}

// SignIn authenticates and loads the user's server-side data.
func (a *App) SignIn(ctx context.Context, email, password string) Result {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Result{Error: "Email and password are required"}
	}
	u, tok, err := a.backend.Login(ctx, email, password)
	if err != nil {
		slog.Warn("sign in failed", "error", err)
		return failure(err)
	}
	a.completeSignIn(ctx, u, tok)
	return Result{Success: true}
}

// SignUp registers a new account and signs it in.
func (a *App) SignUp(ctx context.Context, email, password, fullName string) Result {
	email, fullName = strings.TrimSpace(email), strings.TrimSpace(fullName)
	if email == "" || password == "" || fullName == "" {
		return Result{Error: "Email, password and full name are required"}
	}
	u, tok, err := a.backend.Register(ctx, email, password, fullName)
	if err != nil {
		slog.Warn("sign up failed", "error", err)
		return failure(err)
	}
	a.completeSignIn(ctx, u, tok)
	return Result{Success: true}
}

func (a *App) completeSignIn(ctx context.Context, u model.User, tok string) {
	a.backend.SetToken(tok)
	a.mu.Lock()
	a.state = SignedIn(a.state, u, tok)
	a.persist(a.state)
	a.mu.Unlock()
	a.syncFromServer(ctx)
}

// SignOut forgets the user locally. Server-side revocation is best effort.
func (a *App) SignOut(ctx context.Context) Result {
	if err := a.backend.SignOut(ctx); err != nil {
		slog.Warn("server sign out failed", "error", err)
	}
	a.backend.SetToken("")
	a.mu.Lock()
	a.state = SignedOut(a.state)
	a.persist(a.state)
	a.mu.Unlock()
	return Result{Success: true}
}

// LoadUser revalidates the persisted token with the server. A rejected
// token signs the user out; other failures keep the cached user.
func (a *App) LoadUser(ctx context.Context) Result {
	a.mu.Lock()
	tok := a.state.Token
	a.mu.Unlock()
	if tok == "" {
		return Result{Error: "Not signed in"}
	}

	a.backend.SetToken(tok)
	u, err := a.backend.Profile(ctx)
	if err != nil {
		if isAuthError(err) {
			a.backend.SetToken("")
			a.mu.Lock()
			a.state = SignedOut(a.state)
			a.persist(a.state)
			a.mu.Unlock()
		}
		return failure(err)
	}

	a.mu.Lock()
	a.state = SignedIn(a.state, u, tok)
	a.persist(a.state)
	a.mu.Unlock()
	a.syncFromServer(ctx)
	return Result{Success: true}
}

// isAuthError reports whether the backend rejected the credentials, as
// opposed to being unreachable.
func isAuthError(err error) bool {
	var ae interface{ Unauthorized() bool }
	return errors.As(err, &ae) && ae.Unauthorized()
}

// syncFromServer merges the server's history and custom roles into the
// state. Failures are logged and leave the local data as is.
func (a *App) syncFromServer(ctx context.Context) {
	remote, err := a.backend.Sessions(ctx)
	if err != nil {
		slog.Warn("failed to load sessions from server", "error", err)
	}
	roles, rolesErr := a.backend.CustomRoles(ctx)
	if rolesErr != nil {
		slog.Warn("failed to load custom roles from server", "error", rolesErr)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	if err == nil {
		s.History = mergeHistory(s.History, remote)
	}
	if rolesErr == nil {
		s.CustomRoles = mergeRoles(s.CustomRoles, roles)
	}
	a.state = s
	a.persist(s)
}

func mergeHistory(local, remote []model.SessionHistory) []model.SessionHistory {
	seen := make(map[string]bool, len(remote))
	out := make([]model.SessionHistory, 0, len(local)+len(remote))
	for _, h := range remote {
		seen[h.ID] = true
		out = append(out, h)
	}
	for _, h := range local {
		if !seen[h.ID] {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func mergeRoles(local, remote []string) []string {
	out := append([]string(nil), remote...)
	for _, r := range local {
		dup := false
		for _, o := range out {
			if strings.EqualFold(o, r) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

func (a *App) hasToken() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Token != ""
}

// AddCustomRole validates role, stores it locally and selects it when no
// session is running. The server copy is updated best effort.
func (a *App) AddCustomRole(ctx context.Context, role string) error {
	var added string
	err := a.update(func(s State) (State, error) {
		s, err := AddCustomRole(s, role)
		if err == nil {
			added = s.CustomRoles[len(s.CustomRoles)-1]
		}
		return s, err
	})
	if err != nil {
		return err
	}
	if a.hasToken() {
		if err := a.backend.AddCustomRole(ctx, added); err != nil {
			slog.Warn("failed to add custom role on server", "role", added, "error", err)
		}
	}
	return nil
}

// RemoveCustomRole deletes one custom role.
func (a *App) RemoveCustomRole(ctx context.Context, role string) {
	_ = a.update(func(s State) (State, error) { return RemoveCustomRole(s, role), nil })
	if a.hasToken() {
		if err := a.backend.RemoveCustomRole(ctx, strings.TrimSpace(role)); err != nil {
			slog.Warn("failed to remove custom role on server", "role", role, "error", err)
		}
	}
}

// ClearCustomRoles deletes every custom role.
func (a *App) ClearCustomRoles(ctx context.Context) {
	_ = a.update(func(s State) (State, error) { return ClearCustomRoles(s), nil })
	if a.hasToken() {
		if err := a.backend.ClearCustomRoles(ctx); err != nil {
			slog.Warn("failed to clear custom roles on server", "error", err)
		}
	}
}
