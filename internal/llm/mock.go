package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	mockCountRegex  = regexp.MustCompile(`Generate exactly (\d+) interview questions for the job role: ([^\n]+)`)
	mockAnswerRegex = regexp.MustCompile(`(?s).*<candidate-answer>(.*)</candidate-answer>`)
)

// Mock is an offline backend returning deterministic JSON. Question
// prompts yield numbered questions for the requested role; evaluation
// prompts are scored by answer length.
type Mock struct{}

// Complete implements Completer.
func (Mock) Complete(_ context.Context, system, _ string) (string, error) {
	if m := mockCountRegex.FindStringSubmatch(system); m != nil {
		n, _ := strconv.Atoi(m[1])
		return mockQuestions(strings.TrimSpace(m[2]), n)
	}
	if m := mockAnswerRegex.FindStringSubmatch(system); m != nil {
		return mockEvaluation(strings.TrimSpace(m[1]))
	}
	return "", fmt.Errorf("mock backend: unrecognized prompt")
}

func mockQuestions(role string, n int) (string, error) {
	difficulties := []string{"Easy", "Medium", "Hard"}
	qs := make([]generatedQuestion, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, generatedQuestion{
			Question:      fmt.Sprintf("Question %d for %s: describe a recent problem you solved.", i+1, role),
			Context:       "Practice question generated offline.",
			Difficulty:    difficulties[i%len(difficulties)],
			Category:      "General",
			Hints:         []string{"Situation", "Actions", "Outcome"},
			CorrectAnswer: "A structured answer covering the situation, actions and outcome.",
		})
	}
	out, err := json.Marshal(map[string]any{"questions": qs})
	return string(out), err
}

func mockEvaluation(answer string) (string, error) {
	score := 2.0
	switch n := utf8.RuneCountInString(answer); {
	case answer == "[No answer provided]":
		score = 0
	case n >= 200:
		score = 8
	case n >= 50:
		score = 6
	case n >= 10:
		score = 4
	}
	out, err := json.Marshal(map[string]any{
		"score":        score,
		"feedback":     "Offline evaluation based on answer length.",
		"strengths":    []string{"Answered the question"},
		"improvements": []string{"Add concrete examples"},
	})
	return string(out), err
}
