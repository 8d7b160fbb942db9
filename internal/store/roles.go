package store

import (
	"time"
)

// AddCustomRole stores role for a user. Roles are unique per user, ignoring case.
func (s *Store) AddCustomRole(userID, role string) error {
	_, err := s.db.Exec(
		`INSERT INTO custom_roles (user_id, role, created_at) VALUES (?, ?, ?)`,
		userID, role, time.Now(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateRole
	}
	return err
}

// ListCustomRoles returns a user's custom roles in the order they were added.
func (s *Store) ListCustomRoles(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT role FROM custom_roles WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// RemoveCustomRole deletes one custom role. It returns ErrNotFound if the
// user has no such role.
func (s *Store) RemoveCustomRole(userID, role string) error {
	res, err := s.db.Exec(`DELETE FROM custom_roles WHERE user_id = ? AND role = ?`, userID, role)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCustomRoles removes every custom role of a user.
func (s *Store) ClearCustomRoles(userID string) error {
	_, err := s.db.Exec(`DELETE FROM custom_roles WHERE user_id = ?`, userID)
	return err
}
