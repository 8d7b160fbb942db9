// Package token issues and verifies the HMAC-signed bearer tokens handed
// out by the auth endpoints.
//
// A token is base64(JSON payload) + "." + hex(HMAC-SHA256(base64 payload)).
// The payload carries the user's id, email, name and the issue time in Unix
// milliseconds. Tokens expire TTL after issue; there is no revocation.
package token

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/interviewer/internal/model"
)

// TTL is how long an issued token stays valid.
const TTL = 7 * 24 * time.Hour

// MinSecretLen is the shortest signing key New accepts.
const MinSecretLen = 16

const separator = "."

var (
	ErrMalformed = errors.New("token malformed")
	ErrSignature = errors.New("token signature invalid")
	ErrExpired   = errors.New("token expired")
	ErrUnsigned  = errors.New("unsigned tokens not accepted")
	ErrSecret    = errors.New("token secret too short")
)

type payload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Avatar    string `json:"avatar,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Codec signs and verifies tokens with a single shared secret.
type Codec struct {
	secret         []byte
	method         *jwt.SigningMethodHMAC
	acceptUnsigned bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithUnsigned makes Authenticate fall back to the legacy unsigned format.
func WithUnsigned(accept bool) Option {
	return func(c *Codec) { c.acceptUnsigned = accept }
}

// New returns a Codec keyed by secret.
func New(secret string, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrSecret, MinSecretLen)
	}
	c := &Codec{secret: []byte(secret), method: jwt.SigningMethodHS256}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Issue returns a signed token for u stamped with now.
func (c *Codec) Issue(u model.User, now time.Time) (string, error) {
	raw, err := json.Marshal(payload{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Avatar:    u.Avatar,
		Timestamp: now.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	sig, err := c.method.Sign(encoded, c.secret)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return encoded + separator + hex.EncodeToString(sig), nil
}

// Verify checks the signature and age of a signed token and returns its user.
func (c *Codec) Verify(tok string, now time.Time) (*model.User, error) {
	encoded, sigHex, ok := strings.Cut(tok, separator)
	if !ok || encoded == "" || sigHex == "" || strings.Contains(sigHex, separator) {
		return nil, ErrMalformed
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, ErrSignature
	}
	if err := c.method.Verify(encoded, sig, c.secret); err != nil {
		return nil, ErrSignature
	}

	p, err := decodePayload(encoded)
	if err != nil {
		return nil, err
	}
	if now.Sub(time.UnixMilli(p.Timestamp)) > TTL {
		return nil, ErrExpired
	}
	return &model.User{ID: p.ID, Email: p.Email, FullName: p.FullName, Avatar: p.Avatar}, nil
}

// Authenticate verifies tok, falling back to the unsigned format when the
// codec was built WithUnsigned(true) and tok carries no signature.
func (c *Codec) Authenticate(tok string, now time.Time) (*model.User, error) {
	if !strings.Contains(tok, separator) {
		if !c.acceptUnsigned {
			return nil, ErrUnsigned
		}
		return DecodeUnsigned(tok)
	}
	return c.Verify(tok, now)
}

// EncodeUnsigned encodes u in the legacy unsigned format: base64 JSON of
// the user record with no signature and no expiry.
func EncodeUnsigned(u model.User) (string, error) {
	raw, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("marshal user: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeUnsigned decodes a legacy unsigned token. Anyone can forge one.
func DecodeUnsigned(tok string) (*model.User, error) {
	raw, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return nil, ErrMalformed
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, ErrMalformed
	}
	if u.ID == "" {
		return nil, ErrMalformed
	}
	return &u, nil
}

func decodePayload(encoded string) (*payload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformed
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrMalformed
	}
	if p.ID == "" {
		return nil, ErrMalformed
	}
	return &p, nil
}
