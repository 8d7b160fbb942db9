package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/interviewer/internal/model"
)

const testSecret = "test-secret-0123456789"

var testUser = model.User{ID: "admin-001", Email: "admin@interview.app", FullName: "Admin User"}

func newTestCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := New(testSecret, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsShortSecret(t *testing.T) {
	for _, s := range []string{"", "short"} {
		if _, err := New(s); !errors.Is(err, ErrSecret) {
			t.Errorf("New(%q) error = %v, want ErrSecret", s, err)
		}
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now()

	tok, err := c.Issue(testUser, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(tok, ".") != 1 {
		t.Fatalf("expected exactly one separator in %q", tok)
	}

	u, err := c.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if *u != testUser {
		t.Errorf("Verify returned %+v, want %+v", *u, testUser)
	}
}

func TestVerifyRejects(t *testing.T) {
	c := newTestCodec(t)
	now := time.Now()
	good, err := c.Issue(testUser, now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	encoded, sig, _ := strings.Cut(good, ".")

	forged, _ := New("another-secret-0123456789")
	forgedTok, _ := forged.Issue(testUser, now)

	tampered := base64.StdEncoding.EncodeToString([]byte(`{"id":"admin-002","email":"x@y","fullName":"X","timestamp":` +
		"1" + `}`))

	tests := []struct {
		name  string
		token string
		now   time.Time
		want  error
	}{
		{"missing separator", encoded, now, ErrMalformed},
		{"empty payload", "." + sig, now, ErrMalformed},
		{"empty signature", encoded + ".", now, ErrMalformed},
		{"extra separator", good + ".abc", now, ErrMalformed},
		{"non-hex signature", encoded + ".zz", now, ErrSignature},
		{"tampered payload", tampered + "." + sig, now, ErrSignature},
		{"other secret", forgedTok, now, ErrSignature},
		{"expired", good, now.Add(TTL + time.Second), ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := c.Verify(tt.token, tt.now)
			if !errors.Is(err, tt.want) {
				t.Errorf("Verify error = %v, want %v", err, tt.want)
			}
			if u != nil {
				t.Errorf("expected nil user, got %+v", u)
			}
		})
	}
}

func TestVerifyAtExpiryBoundary(t *testing.T) {
	c := newTestCodec(t)
	now := time.UnixMilli(1_700_000_000_000)
	tok, _ := c.Issue(testUser, now)

	if _, err := c.Verify(tok, now.Add(TTL)); err != nil {
		t.Errorf("token at exactly TTL should verify, got %v", err)
	}
	if _, err := c.Verify(tok, now.Add(TTL+time.Millisecond)); !errors.Is(err, ErrExpired) {
		t.Errorf("token past TTL should be expired, got %v", err)
	}
}

func TestAuthenticateUnsigned(t *testing.T) {
	legacy, err := EncodeUnsigned(testUser)
	if err != nil {
		t.Fatalf("EncodeUnsigned: %v", err)
	}

	strict := newTestCodec(t)
	if _, err := strict.Authenticate(legacy, time.Now()); !errors.Is(err, ErrUnsigned) {
		t.Errorf("strict codec should reject unsigned token, got %v", err)
	}

	lenient := newTestCodec(t, WithUnsigned(true))
	u, err := lenient.Authenticate(legacy, time.Now())
	if err != nil {
		t.Fatalf("Authenticate unsigned: %v", err)
	}
	if u.Email != testUser.Email {
		t.Errorf("email = %q, want %q", u.Email, testUser.Email)
	}

	signed, _ := lenient.Issue(testUser, time.Now())
	if _, err := lenient.Authenticate(signed, time.Now()); err != nil {
		t.Errorf("signed token should still verify: %v", err)
	}
}

func TestDecodeUnsignedMalformed(t *testing.T) {
	for _, tok := range []string{"!!!", base64.StdEncoding.EncodeToString([]byte("not json")), base64.StdEncoding.EncodeToString([]byte(`{}`))} {
		if _, err := DecodeUnsigned(tok); !errors.Is(err, ErrMalformed) {
			t.Errorf("DecodeUnsigned(%q) error = %v, want ErrMalformed", tok, err)
		}
	}
}
