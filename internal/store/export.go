package store

import (
	"fmt"

	"github.com/pavelanni/interviewer/internal/model"
)

// ExportAllHistory builds export-ready results for every user, skipping
// users with no sessions.
func (s *Store) ExportAllHistory() ([]model.UserResult, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var results []model.UserResult
	for _, u := range users {
		sessions, err := s.ListSessionHistory(u.ID)
		if err != nil {
			return nil, fmt.Errorf("sessions for user %s: %w", u.ID, err)
		}
		if len(sessions) == 0 {
			continue
		}
		results = append(results, model.UserResult{
			UserID:   u.ID,
			Email:    u.Email,
			FullName: u.FullName,
			Sessions: sessions,
		})
	}
	return results, nil
}
