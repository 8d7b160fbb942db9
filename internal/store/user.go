package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
)

// CreateUser inserts a new account. It returns ErrDuplicateEmail when the
// email (compared case-insensitively) is already registered.
func (s *Store) CreateUser(a model.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, email, full_name, avatar, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.FullName, a.Avatar, a.PasswordHash, a.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		slog.Error("failed to create user", "email", a.Email, "error", err)
		return err
	}
	slog.Info("created user", "id", a.ID, "email", a.Email)
	return nil
}

// GetUserByEmail returns the account for email, or nil if none exists.
func (s *Store) GetUserByEmail(email string) (*model.Account, error) {
	return s.scanAccount(s.db.QueryRow(
		`SELECT id, email, full_name, avatar, password_hash, created_at
		 FROM users WHERE email = ?`, email,
	))
}

// GetUserByID returns the account with id, or nil if none exists.
func (s *Store) GetUserByID(id string) (*model.Account, error) {
	return s.scanAccount(s.db.QueryRow(
		`SELECT id, email, full_name, avatar, password_hash, created_at
		 FROM users WHERE id = ?`, id,
	))
}

func (s *Store) scanAccount(row *sql.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Email, &a.FullName, &a.Avatar, &a.PasswordHash, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListUsers returns all users in creation order.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT id, email, full_name, avatar FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Avatar); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
