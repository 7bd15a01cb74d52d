package token

import (
	"errors"
	"testing"
	"time"
)

func TestSignAndVerify_Roundtrip(t *testing.T) {
	t.Parallel()

	m, err := NewManager([]byte("access-secret"), time.Hour)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	in := Claims{
		UserID:   "user-123",
		Username: "ana",
		FullName: "Ana Petrova",
		Email:    "ana@example.com",
	}
	tok, err := m.Sign(in)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	got, err := m.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if got.UserID != in.UserID || got.Username != in.Username ||
		got.FullName != in.FullName || got.Email != in.Email {
		t.Fatalf("claims mismatch: got %+v want %+v", got, in)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", got.ExpiresAt)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m, err := NewManager([]byte("secret"), time.Millisecond)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	tok, err := m.Sign(Claims{UserID: "u1"})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	_, err = m.Verify(tok)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	signer, _ := NewManager([]byte("right-secret"), time.Hour)
	verifier, _ := NewManager([]byte("wrong-secret"), time.Hour)

	tok, err := signer.Sign(Claims{UserID: "u2"})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	_, err = verifier.Verify(tok)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	m, _ := NewManager([]byte("k"), time.Hour)

	for _, tok := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := m.Verify(tok); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: expected ErrMalformed, got %v", tok, err)
		}
	}
}

func TestVerify_MissingUserID(t *testing.T) {
	t.Parallel()

	m, _ := NewManager([]byte("k"), time.Hour)
	tok, err := m.Sign(Claims{})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if _, err := m.Verify(tok); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty uid, got %v", err)
	}
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewManager([]byte("k"), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
	if _, err := NewManager([]byte("k"), -time.Minute); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}
