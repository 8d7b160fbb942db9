package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrDuplicateRole    = errors.New("custom role already exists")
	ErrDuplicateSession = errors.New("session already saved")
	ErrNotFound         = errors.New("not found")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		full_name TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		job_role TEXT NOT NULL,
		total_questions INTEGER NOT NULL,
		answered_questions INTEGER NOT NULL,
		completion_rate REAL NOT NULL,
		date TEXT NOT NULL,
		duration INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS session_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		evaluation TEXT,
		FOREIGN KEY (session_id) REFERENCES session_history(id)
	);

	CREATE TABLE IF NOT EXISTS custom_roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL COLLATE NOCASE,
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, role),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS revoked_tokens (
		id TEXT PRIMARY KEY,
		revoked_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_history_user ON session_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_session_answers_session ON session_answers(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
