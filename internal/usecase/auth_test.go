package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

func newTestAuth(t *testing.T, clock *fakeClock) *AdminAuth {
	t.Helper()
	auth, err := NewAdminAuth("admin", "s3cret", "signing-key", time.Hour, clock.Now)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return auth
}

func TestNewAdminAuth_RequiresSecrets(t *testing.T) {
	if _, err := NewAdminAuth("admin", "", "key", time.Hour, nil); err == nil {
		t.Fatalf("expected error without password")
	}
	if _, err := NewAdminAuth("admin", "pw", "", time.Hour, nil); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	auth := newTestAuth(t, clock)

	token, err := auth.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !token.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", token.ExpiresAt)
	}

	subject, err := auth.Parse(token.Value)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if subject != "admin" {
		t.Fatalf("expected subject admin, got %s", subject)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	auth := newTestAuth(t, newFakeClock())

	if _, err := auth.Login("admin", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := auth.Login("root", "s3cret"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestParse_Expired(t *testing.T) {
	clock := newFakeClock()
	auth := newTestAuth(t, clock)
	token, err := auth.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	clock.At(2 * time.Hour)
	if _, err := auth.Parse(token.Value); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestParse_WrongKey(t *testing.T) {
	clock := newFakeClock()
	token, err := newTestAuth(t, clock).Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	other, _ := NewAdminAuth("admin", "s3cret", "another-key", time.Hour, clock.Now)
	if _, err := other.Parse(token.Value); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := other.Parse("not-a-jwt"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
