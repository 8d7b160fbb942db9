package model

import "time"

// HistoryExport is the top-level JSON structure for session history export.
type HistoryExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	NumUsers   int          `json:"num_users"`
	Results    []UserResult `json:"results"`
}

// UserResult holds one user's session history for export.
type UserResult struct {
	UserID   string           `json:"user_id"`
	Email    string           `json:"email"`
	FullName string           `json:"full_name"`
	Sessions []SessionHistory `json:"sessions"`
}
