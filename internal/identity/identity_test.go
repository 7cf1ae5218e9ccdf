package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, claims jwt.MapClaims, secret []byte, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("token signing failed: %v", err)
	}
	return token
}

func mustProvider(t *testing.T) *TokenProvider {
	t.Helper()
	provider, err := NewTokenProvider(TokenProviderConfig{SigningSecret: testSecret})
	if err != nil {
		t.Fatalf("unexpected provider error: %v", err)
	}
	return provider
}

func TestTokenProviderRequiresSecret(t *testing.T) {
	if _, err := NewTokenProvider(TokenProviderConfig{}); err == nil {
		t.Fatal("expected missing secret rejection")
	}
}

func TestIdentifyResolvesSubjectAndNickname(t *testing.T) {
	provider := mustProvider(t)
	token := signToken(t, jwt.MapClaims{
		"sub":      "user-42",
		"nickname": "Ada",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}, testSecret, jwt.SigningMethodHS256)

	resolved, err := provider.Identify(context.Background(), token)
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}
	if resolved.UserID != "user-42" || resolved.Nickname != "Ada" {
		t.Fatalf("unexpected identity %+v", resolved)
	}
}

func TestIdentifyRejectsBadSignature(t *testing.T) {
	provider := mustProvider(t)
	token := signToken(t, jwt.MapClaims{"sub": "user-42"}, []byte("wrong-secret-wrong-secret-wrong!"), jwt.SigningMethodHS256)

	if _, err := provider.Identify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestIdentifyRejectsExpiredToken(t *testing.T) {
	provider := mustProvider(t)
	token := signToken(t, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, testSecret, jwt.SigningMethodHS256)

	if _, err := provider.Identify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestIdentifyRejectsEmptySubject(t *testing.T) {
	provider := mustProvider(t)
	token := signToken(t, jwt.MapClaims{"nickname": "Ada"}, testSecret, jwt.SigningMethodHS256)

	if _, err := provider.Identify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestStoreIDDerivation(t *testing.T) {
	ids := Identity{UserID: "user-42"}.StoreIDs()
	if len(ids) != 3 {
		t.Fatalf("expected three per-user stores, got %d", len(ids))
	}
	for _, id := range ids {
		if id.DomainID() != "user-42" {
			t.Fatalf("store id %s not scoped to the user", id)
		}
	}
}

func TestStaticProvider(t *testing.T) {
	static := Static{Identity: Identity{UserID: "user-1", Nickname: "Ada"}}
	resolved, err := static.Identify(context.Background(), "ignored")
	if err != nil || resolved.UserID != "user-1" {
		t.Fatalf("unexpected static identity %+v (%v)", resolved, err)
	}
	if _, err := (Static{}).Identify(context.Background(), ""); err == nil {
		t.Fatal("expected empty static identity rejection")
	}
}
