package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/o1egl/paseto"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestMaker(t *testing.T) Maker {
	t.Helper()
	maker, err := NewPasetoMaker(testKey)
	if err != nil {
		t.Fatalf("NewPasetoMaker: %v", err)
	}
	return maker
}

func TestPasetoMakerRoundTrip(t *testing.T) {
	maker := newTestMaker(t)

	tok, err := maker.CreateToken(Actor{Identity: " alice ", Role: RoleBoardChecker}, time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	payload, err := maker.VerifyToken(tok)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got := payload.Actor(); got != (Actor{Identity: "alice", Role: RoleBoardChecker}) {
		t.Fatalf("unexpected actor %+v", got)
	}
}

func TestPasetoMakerRejectsShortKey(t *testing.T) {
	if _, err := NewPasetoMaker("short"); err == nil {
		t.Fatal("expected key size error")
	}
}

func TestPasetoMakerRejectsExpiredToken(t *testing.T) {
	maker := newTestMaker(t)
	tok, err := maker.CreateToken(Actor{Identity: "bob", Role: RoleEmployer}, time.Nanosecond)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := maker.VerifyToken(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestPasetoMakerRejectsTamperedToken(t *testing.T) {
	maker := newTestMaker(t)
	other, _ := NewPasetoMaker(strings.Repeat("z", 32))

	tok, err := other.CreateToken(Actor{Identity: "mallory", Role: RoleOperator}, time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := maker.VerifyToken(tok); err == nil {
		t.Fatal("expected token from a different key to be rejected")
	}
}

func TestPasetoMakerRejectsTokenFromAnotherIssuer(t *testing.T) {
	maker := newTestMaker(t)
	payload, err := NewPayload(Actor{Identity: "alice", Role: RoleUploader}, time.Minute)
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}

	// same key, but minted by a service that signs its own footer
	tok, err := paseto.NewV2().Encrypt([]byte(testKey), payload, "pension-portal")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := maker.VerifyToken(tok); !errors.Is(err, ErrForeignToken) {
		t.Fatalf("expected ErrForeignToken, got %v", err)
	}
}

func TestNewPayloadValidatesActor(t *testing.T) {
	tests := []struct {
		name     string
		actor    Actor
		duration time.Duration
		want     error
	}{
		{"empty identity", Actor{Identity: "  ", Role: RoleEmployer}, time.Minute, ErrEmptyActor},
		{"missing role", Actor{Identity: "alice"}, time.Minute, ErrUnknownRole},
		{"unknown role", Actor{Identity: "alice", Role: "ADMIN"}, time.Minute, ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPayload(tt.actor, tt.duration); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := NewPayload(Actor{Identity: "alice", Role: RoleEmployer}, 0); err == nil {
		t.Fatal("expected non-positive duration to be rejected")
	}
}
