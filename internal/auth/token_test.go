package auth

import (
	"errors"
	"testing"
	"time"
)

func testTokenService(t *testing.T, now *time.Time, opts ...TokenOption) *TokenService {
	t.Helper()
	opts = append([]TokenOption{WithTokenClock(func() time.Time { return *now })}, opts...)
	svc, err := NewTokenService("access-secret", "refresh-secret", opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := testTokenService(t, &now)
	acct := &Account{ID: "acct-1", Username: "alice", Role: RoleSupervisor}

	token, expiresAt, err := svc.IssueAccess(acct)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if want := now.Add(7 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
	}

	claims, err := svc.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.AccountID() != "acct-1" || claims.Username != "alice" || claims.Role != RoleSupervisor {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Issuer != "sigepic" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti")
	}
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := testTokenService(t, &now, WithAccessTTL(time.Hour))

	token, _, err := svc.IssueAccess(&Account{ID: "acct-1", Username: "alice", Role: RoleUsuario})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	now = now.Add(59 * time.Minute)
	if _, err := svc.VerifyAccess(token); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	now = now.Add(2 * time.Minute)
	_, err = svc.VerifyAccess(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenKindSeparation(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := testTokenService(t, &now)
	acct := &Account{ID: "acct-1", Username: "alice", Role: RoleUsuario}

	access, _, _ := svc.IssueAccess(acct)
	refresh, _, _ := svc.IssueRefresh(acct)

	if _, err := svc.VerifyRefresh(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, err := svc.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token accepted as access: %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := testTokenService(t, &now)
	other, err := NewTokenService("other-access", "other-refresh",
		WithTokenClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _, _ := other.IssueAccess(&Account{ID: "acct-1", Username: "alice", Role: RoleUsuario})
	if _, err := svc.VerifyAccess(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := testTokenService(t, &now)

	for _, tok := range []string{"", "  ", "not-a-jwt", "a.b.c"} {
		if _, err := svc.VerifyAccess(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}

func TestNewTokenServiceValidation(t *testing.T) {
	if _, err := NewTokenService("", "refresh"); err == nil {
		t.Fatal("expected error for empty access secret")
	}
	if _, err := NewTokenService("access", ""); err == nil {
		t.Fatal("expected error for empty refresh secret")
	}
	if _, err := NewTokenService("same", "same"); err == nil {
		t.Fatal("expected error for identical secrets")
	}
}
