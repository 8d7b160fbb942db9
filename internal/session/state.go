// Package session holds the client-side interview state machine.
//
// State is a plain value. The functions in this file are transitions: each
// takes a State and returns a new one without mutating its argument. App
// wires the transitions to a Backend and a SnapshotStore.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/interviewer/internal/catalog"
	"github.com/pavelanni/interviewer/internal/model"
)

// Phase is the lifecycle stage of the current session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseEvaluating
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

var (
	ErrNoJobRole     = errors.New("select a job role first")
	ErrNoQuestions   = errors.New("no questions available for this role")
	ErrSessionActive = errors.New("a session is already in progress")
	ErrNotActive     = errors.New("no session in progress")
	ErrNotEvaluating = errors.New("session is not being evaluated")
	ErrOutOfRange    = errors.New("question index out of range")
)

// State is everything the client knows about the user and the current
// session.
type State struct {
	User        *model.User
	Token       string
	History     []model.SessionHistory
	CustomRoles []string

	JobRole      string
	Questions    []model.Question
	Answers      []string
	CurrentIndex int
	StartedAt    time.Time
	Phase        Phase
}

// Current returns the question at CurrentIndex, if any.
func (s State) Current() (model.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return model.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// inSession reports whether a session is running or being evaluated. The
// selected role is frozen while it is.
func (s State) inSession() bool {
	return s.Phase == PhaseActive || s.Phase == PhaseEvaluating
}

// SetJobRole selects the role for the next session. It is a no-op while a
// session is in progress.
func SetJobRole(s State, role string) State {
	if s.inSession() {
		return s
	}
	s.JobRole = strings.TrimSpace(role)
	return s
}

// Start begins a session over questions. Every answer starts empty. An empty
// question list is rejected.
func Start(s State, questions []model.Question, now time.Time) (State, error) {
	if s.JobRole == "" {
		return s, ErrNoJobRole
	}
	if s.inSession() {
		return s, ErrSessionActive
	}
	if len(questions) == 0 {
		return s, ErrNoQuestions
	}
	s.Questions = append([]model.Question(nil), questions...)
	s.Answers = make([]string, len(questions))
	s.CurrentIndex = 0
	s.StartedAt = now
	s.Phase = PhaseActive
	return s, nil
}

// Next moves to the following question. It is a no-op on the last one.
func Next(s State) State {
	if s.Phase == PhaseActive && s.CurrentIndex < len(s.Questions)-1 {
		s.CurrentIndex++
	}
	return s
}

// Previous moves to the preceding question. It is a no-op on the first one.
func Previous(s State) State {
	if s.Phase == PhaseActive && s.CurrentIndex > 0 {
		s.CurrentIndex--
	}
	return s
}

// SaveAnswer overwrites the answer at index i.
func SaveAnswer(s State, i int, text string) (State, error) {
	if s.Phase != PhaseActive {
		return s, ErrNotActive
	}
	if i < 0 || i >= len(s.Answers) {
		return s, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	answers := append([]string(nil), s.Answers...)
	answers[i] = text
	s.Answers = answers
	return s, nil
}

// ReplaceQuestion swaps the question at index i for q and clears its
// answer.
func ReplaceQuestion(s State, i int, q model.Question) (State, error) {
	if s.Phase != PhaseActive {
		return s, ErrNotActive
	}
	if i < 0 || i >= len(s.Questions) {
		return s, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	questions := append([]model.Question(nil), s.Questions...)
	questions[i] = q
	answers := append([]string(nil), s.Answers...)
	answers[i] = ""
	s.Questions, s.Answers = questions, answers
	return s, nil
}

// BeginEvaluation freezes the answers of an active session.
func BeginEvaluation(s State) (State, error) {
	if s.Phase != PhaseActive {
		return s, ErrNotActive
	}
	s.Phase = PhaseEvaluating
	return s, nil
}

// Finish records a completed session.
func Finish(s State, record model.SessionHistory) (State, error) {
	if s.Phase != PhaseEvaluating {
		return s, ErrNotEvaluating
	}
	history := make([]model.SessionHistory, 0, len(s.History)+1)
	history = append(history, s.History...)
	s.History = append(history, record)
	s.Phase = PhaseComplete
	return s, nil
}

// Reset clears the session from any phase. The user, history and custom
// roles are kept.
func Reset(s State) State {
	s.JobRole = ""
	s.Questions = nil
	s.Answers = nil
	s.CurrentIndex = 0
	s.StartedAt = time.Time{}
	s.Phase = PhaseIdle
	return s
}

// AddCustomRole validates and appends a custom role, then selects it unless
// a session is in progress.
func AddCustomRole(s State, role string) (State, error) {
	role, err := catalog.ValidateCustomRole(role, s.CustomRoles)
	if err != nil {
		return s, err
	}
	roles := make([]string, 0, len(s.CustomRoles)+1)
	roles = append(roles, s.CustomRoles...)
	s.CustomRoles = append(roles, role)
	if !s.inSession() {
		s.JobRole = role
	}
	return s, nil
}

// RemoveCustomRole drops role, comparing case-insensitively. A selected
// role that is removed is deselected.
func RemoveCustomRole(s State, role string) State {
	role = strings.TrimSpace(role)
	var roles []string
	for _, r := range s.CustomRoles {
		if !strings.EqualFold(r, role) {
			roles = append(roles, r)
		}
	}
	s.CustomRoles = roles
	if strings.EqualFold(s.JobRole, role) && s.Phase == PhaseIdle {
		s.JobRole = ""
	}
	return s
}

// ClearCustomRoles drops every custom role.
func ClearCustomRoles(s State) State {
	for _, r := range s.CustomRoles {
		if strings.EqualFold(r, s.JobRole) && s.Phase == PhaseIdle {
			s.JobRole = ""
		}
	}
	s.CustomRoles = nil
	return s
}

// SignedIn records the authenticated user and token.
func SignedIn(s State, u model.User, token string) State {
	s.User = &u
	s.Token = token
	return s
}

// SignedOut forgets the user together with everything tied to them.
func SignedOut(s State) State {
	s = Reset(s)
	s.User = nil
	s.Token = ""
	s.History = nil
	s.CustomRoles = nil
	return s
}
