package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
)

const (
	evalInstruction     = "Evaluate the candidate answer. Respond with the JSON object only."
	questionInstruction = "Generate the questions. Respond with the JSON object only."
)

// ErrEmptyResponse is returned when a backend produces no usable text.
var ErrEmptyResponse = errors.New("LLM returned an empty response")

// Completer sends a system and a user prompt to a model and returns its text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Pinger is implemented by backends that support a cheap health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Interviewer generates questions and evaluates answers with an LLM.
type Interviewer struct {
	llm     Completer
	prompts *prompts.Set
	variant prompts.Variant
}

// NewInterviewer creates an Interviewer grading with the given prompt variant.
func NewInterviewer(c Completer, variant string) (*Interviewer, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	set, err := prompts.Load()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	return &Interviewer{llm: c, prompts: set, variant: prompts.Variant(variant)}, nil
}

// Ping checks the backend if it supports health checks.
func (iv *Interviewer) Ping(ctx context.Context) error {
	if p, ok := iv.llm.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

type generatedQuestion struct {
	Question      string   `json:"question"`
	Context       string   `json:"context"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
	Hints         []string `json:"hints"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// GenerateQuestions asks the model for n questions tailored to role.
func (iv *Interviewer) GenerateQuestions(ctx context.Context, role string, n int) ([]model.Question, error) {
	system, err := iv.prompts.QuestionPrompt(role, n)
	if err != nil {
		return nil, fmt.Errorf("build question prompt: %w", err)
	}
	raw, err := iv.llm.Complete(ctx, system, questionInstruction)
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	slog.Debug("LLM question response", "role", role, "raw", raw)

	var resp struct {
		Questions []generatedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}

	var out []model.Question
	for _, g := range resp.Questions {
		text := strings.TrimSpace(g.Question)
		if text == "" {
			continue
		}
		category := strings.TrimSpace(g.Category)
		if category == "" {
			category = "General"
		}
		out = append(out, model.Question{
			ID:            uuid.NewString(),
			Question:      text,
			Context:       strings.TrimSpace(g.Context),
			Difficulty:    model.ParseDifficulty(g.Difficulty),
			Category:      category,
			Hints:         nonEmpty(g.Hints),
			CorrectAnswer: strings.TrimSpace(g.CorrectAnswer),
		})
		if n > 0 && len(out) == n {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("LLM returned no questions (raw: %s)", raw)
	}
	return out, nil
}

// Evaluate scores a candidate's answer to q.
func (iv *Interviewer) Evaluate(ctx context.Context, role string, q model.Question, answer string) (*model.Evaluation, error) {
	system, err := iv.prompts.EvalPrompt(iv.variant, prompts.EvalData{
		Role:          role,
		Question:      q.Question,
		Context:       q.Context,
		Hints:         q.Hints,
		CorrectAnswer: q.CorrectAnswer,
		Answer:        answer,
	})
	if err != nil {
		return nil, fmt.Errorf("build eval prompt: %w", err)
	}
	raw, err := iv.llm.Complete(ctx, system, evalInstruction)
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	slog.Debug("LLM eval response", "raw", raw)

	var e model.Evaluation
	if err := json.Unmarshal([]byte(extractJSON(raw)), &e); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	e.Score = clampScore(e.Score)
	e.Feedback = strings.TrimSpace(e.Feedback)
	e.Strengths = nonEmpty(e.Strengths)
	e.Improvements = nonEmpty(e.Improvements)
	e.Failed = false
	return &e, nil
}

// extractJSON returns the outermost JSON object in s, tolerating code
// fences and prose around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}

func nonEmpty(list []string) []string {
	var out []string
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
