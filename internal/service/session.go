package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Strob0t/NoteVault/internal/config"
	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/user"
)

// sessionClaims is the signed token body: registered claims plus the tenant id.
type sessionClaims struct {
	TenantID string `json:"tid"`
	jwt.RegisteredClaims
}

// SessionIssuer signs and verifies stateless HS256 session tokens.
// The secret is fixed at construction.
type SessionIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionIssuer creates a SessionIssuer from the auth configuration.
func NewSessionIssuer(cfg *config.Auth) *SessionIssuer {
	return &SessionIssuer{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TokenTTL,
		now:      time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration { return s.ttl }

// Issue signs a token for u that expires after the configured TTL.
func (s *SessionIssuer) Issue(u *user.User) (string, error) {
	now := s.now()
	claims := sessionClaims{
		TenantID: u.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve verifies token and returns its claims. Every failure, whatever
// the cause, is reported as domain.ErrUnauthenticated.
func (s *SessionIssuer) Resolve(token string) (*user.TokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	var claims sessionClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" || claims.TenantID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, errors.New("incomplete claims"))
	}

	return &user.TokenClaims{
		AccountID: claims.Subject,
		TenantID:  claims.TenantID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
