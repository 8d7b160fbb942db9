package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RevokeToken records a signed-out token until it would have expired anyway.
// Only a hash of the token is stored.
func (s *Store) RevokeToken(token string, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO revoked_tokens (id, revoked_at, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		tokenID(token), time.Now(), expiresAt,
	)
	return err
}

// IsRevoked reports whether token was signed out.
func (s *Store) IsRevoked(token string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM revoked_tokens WHERE id = ?`, tokenID(token)).Scan(&count)
	return count > 0, err
}

// CleanupRevokedTokens removes revocations for tokens that have expired.
func (s *Store) CleanupRevokedTokens(now time.Time) error {
	_, err := s.db.Exec(`DELETE FROM revoked_tokens WHERE expires_at < ?`, now)
	return err
}

func tokenID(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
