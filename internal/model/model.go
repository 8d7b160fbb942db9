package model

import (
	"context"
	"strings"
	"time"
)

// User represents an authenticated user as seen by clients.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar,omitempty"`
}

// Account is a stored user together with its credentials.
type Account struct {
	User
	PasswordHash string
	CreatedAt    time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty maps free-form input (any case) to a Difficulty.
// Unknown values map to DifficultyMedium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Question represents an interview question.
type Question struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	Context       string     `json:"context"`
	Difficulty    Difficulty `json:"difficulty"`
	Category      string     `json:"category"`
	Hints         []string   `json:"hints"`
	CorrectAnswer string     `json:"correctAnswer,omitempty"`
}

// FailedFeedback is the feedback text of the failed-evaluation sentinel.
const FailedFeedback = "Evaluation failed"

// Evaluation is the scoring service's assessment of a single answer.
type Evaluation struct {
	Score        float64  `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Failed       bool     `json:"failed,omitempty"`
}

// FailedEvaluation returns the sentinel used when scoring an answer fails.
func FailedEvaluation() *Evaluation {
	return &Evaluation{Feedback: FailedFeedback, Failed: true}
}

// AnswerRecord is one question/answer pair of a finished session.
type AnswerRecord struct {
	QuestionID string      `json:"questionId"`
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	Difficulty Difficulty  `json:"difficulty"`
	Category   string      `json:"category"`
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// SessionHistory is the finalized record of a practice session.
type SessionHistory struct {
	ID                string         `json:"id"`
	JobRole           string         `json:"jobRole"`
	TotalQuestions    int            `json:"totalQuestions"`
	AnsweredQuestions int            `json:"answeredQuestions"`
	CompletionRate    float64        `json:"completionRate"`
	Date              string         `json:"date"`
	Duration          int64          `json:"duration"` // milliseconds
	Answers           []AnswerRecord `json:"answers,omitempty"`
}

// IsAnswered reports whether an answer counts toward completion.
func IsAnswered(answer string) bool {
	return strings.TrimSpace(answer) != ""
}

// CompletionRate returns the percentage of answered entries, unrounded.
func CompletionRate(answers []string, total int) (answered int, rate float64) {
	for _, a := range answers {
		if IsAnswered(a) {
			answered++
		}
	}
	if total == 0 {
		return answered, 0
	}
	return answered, float64(answered) * 100 / float64(total)
}

// ServerConfig holds runtime server parameters set via CLI flags.
type ServerConfig struct {
	NumQuestions     int           // questions generated per session
	QuestionCacheTTL time.Duration // zero disables caching
	LLMTimeout       time.Duration
	SecureCookies    bool // Set Secure flag on cookies (disable for local dev)
	LoginRate        float64
	LoginBurst       int
}
