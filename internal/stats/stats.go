// Package stats computes dashboard analytics over a user's session history.
package stats

import (
	"sort"
	"strconv"

	"github.com/pavelanni/interviewer/internal/model"
)

// RoleCount is the number of sessions practised for one job role.
type RoleCount struct {
	Role     string `json:"role"`
	Sessions int    `json:"sessions"`
}

// TrendPoint is one session on the progress chart.
type TrendPoint struct {
	Label          string  `json:"session"`
	CompletionRate float64 `json:"completionRate"`
	TotalQuestions int     `json:"totalQuestions"`
	Date           string  `json:"date"`
}

// Summary aggregates a session history.
type Summary struct {
	TotalSessions     int          `json:"totalSessions"`
	TotalQuestions    int          `json:"totalQuestions"`
	AverageCompletion float64      `json:"averageCompletion"`
	AverageScore      float64      `json:"averageScore"`
	EvaluatedAnswers  int          `json:"evaluatedAnswers"`
	Roles             []RoleCount  `json:"roles"`
	Trend             []TrendPoint `json:"trend"`
}

// Summarize computes the dashboard summary of history, which is expected
// oldest first. The average score covers successful evaluations only.
func Summarize(history []model.SessionHistory) Summary {
	s := Summary{Roles: []RoleCount{}, Trend: []TrendPoint{}}
	if len(history) == 0 {
		return s
	}

	var completion, score float64
	perRole := make(map[string]int)
	for i, h := range history {
		s.TotalSessions++
		s.TotalQuestions += h.TotalQuestions
		completion += h.CompletionRate
		perRole[h.JobRole]++

		for _, a := range h.Answers {
			if a.Evaluation == nil || a.Evaluation.Failed {
				continue
			}
			score += a.Evaluation.Score
			s.EvaluatedAnswers++
		}

		s.Trend = append(s.Trend, TrendPoint{
			Label:          "Session " + strconv.Itoa(i+1),
			CompletionRate: h.CompletionRate,
			TotalQuestions: h.TotalQuestions,
			Date:           h.Date,
		})
	}

	s.AverageCompletion = completion / float64(s.TotalSessions)
	if s.EvaluatedAnswers > 0 {
		s.AverageScore = score / float64(s.EvaluatedAnswers)
	}

	for role, n := range perRole {
		s.Roles = append(s.Roles, RoleCount{Role: role, Sessions: n})
	}
	sort.Slice(s.Roles, func(i, j int) bool {
		if s.Roles[i].Sessions != s.Roles[j].Sessions {
			return s.Roles[i].Sessions > s.Roles[j].Sessions
		}
		return s.Roles[i].Role < s.Roles[j].Role
	})
	return s
}
