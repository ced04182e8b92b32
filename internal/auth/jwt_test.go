package auth

import (
	"testing"
	"time"

	"dialer-platform/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTIssuer:      "dialer",
		JWTAudience:    "dialer-api",
		AccessTokenTTL: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	return m
}

func TestJWT_IssueAndVerify(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.IssueAccessToken(now, "u1", "w1", "operator")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := m.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != "u1" || claims.WorkspaceID != "w1" || claims.Role != "operator" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWT_VerifyUsesInjectedClock(t *testing.T) {
	m := newTestManager(t)
	// Issued long enough ago that the wall clock is far past expiry; only the
	// supplied verification time may decide validity.
	issued := time.Date(2023, 11, 14, 20, 0, 0, 0, time.UTC)

	tok, err := m.IssueAccessToken(issued, "u1", "w1", "operator")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := m.Verify(tok, issued.Add(time.Minute)); err != nil {
		t.Fatalf("verify at issue time failed: %v", err)
	}
	if _, err := m.Verify(tok, issued.Add(24*time.Hour)); err == nil {
		t.Fatalf("expected rejection past expiry")
	}
}

func TestJWT_RejectsExpired(t *testing.T) {
	m := newTestManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.IssueAccessToken(now, "u1", "w1", "operator")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := m.Verify(tok, now.Add(16*time.Minute)); err == nil {
		t.Fatalf("expected expired token rejection")
	}
}

func TestJWT_RejectsWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(config.AuthConfig{JWTSecret: "other", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("manager init failed: %v", err)
	}
	now := time.Unix(1700000000, 0).UTC()

	tok, err := other.IssueAccessToken(now, "u1", "w1", "operator")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := m.Verify(tok, now); err == nil {
		t.Fatalf("expected signature rejection")
	}
}
