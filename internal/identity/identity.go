// Package identity supplies the (userId, nickname) pair the sync core
// stamps into createdBy and collaborator rows. Authentication itself lives
// with the external identity provider; the core only resolves opaque
// tokens into the pair and derives per-user store ids from it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
)

var (
	// ErrInvalidToken indicates an identity token that failed validation.
	ErrInvalidToken = errors.New("identity: invalid token")

	errMissingSigningSecret = errors.New("identity: signing secret must be provided")
)

// Identity is the stable pair describing one user.
type Identity struct {
	UserID   string
	Nickname string
}

// StoreIDs derives the per-user store ids owned by this identity.
func (i Identity) StoreIDs() []storeid.StoreID {
	return []storeid.StoreID{
		storeid.ForListIndex(i.UserID),
		storeid.ForInventory(i.UserID),
		storeid.ForPurchaseHistory(i.UserID),
	}
}

// Provider resolves opaque tokens into identities.
type Provider interface {
	Identify(ctx context.Context, token string) (Identity, error)
}

// TokenProviderConfig configures a TokenProvider.
type TokenProviderConfig struct {
	SigningSecret []byte
	Issuer        string
}

// TokenProvider validates HS256 identity tokens whose subject is the user
// id and whose "nickname" claim is the display name.
type TokenProvider struct {
	config TokenProviderConfig
}

type identityClaims struct {
	jwt.RegisteredClaims
	Nickname string `json:"nickname"`
}

// NewTokenProvider validates the configuration and returns a provider.
func NewTokenProvider(cfg TokenProviderConfig) (*TokenProvider, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	return &TokenProvider{config: cfg}, nil
}

// Identify parses and validates a token, returning its identity pair.
func (p *TokenProvider) Identify(_ context.Context, token string) (Identity, error) {
	claims := &identityClaims{}
	options := []jwt.ParserOption{}
	if p.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(p.config.Issuer))
	}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return p.config.SigningSecret, nil
		},
		options...,
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return Identity{UserID: claims.Subject, Nickname: claims.Nickname}, nil
}

// Static is a fixed identity provider for tools and tests.
type Static struct {
	Identity Identity
}

// Identify returns the fixed identity regardless of token.
func (s Static) Identify(context.Context, string) (Identity, error) {
	if s.Identity.UserID == "" {
		return Identity{}, fmt.Errorf("%w: empty user id", ErrInvalidToken)
	}
	return s.Identity, nil
}
