// Package auth issues and verifies the bearer tokens applications use to
// call the gateway.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSubject is returned for tokens without an application ID.
	ErrMissingSubject = errors.New("token has no subject")
	// ErrEmptySecret is returned when signing or verifying without a secret.
	ErrEmptySecret = errors.New("jwt secret is empty")
)

type contextKey struct{}

// WithApplicationID returns a context carrying the authenticated application.
func WithApplicationID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, contextKey{}, appID)
}

// ApplicationIDFromContext returns the authenticated application ID.
func ApplicationIDFromContext(ctx context.Context) (string, bool) {
	appID, ok := ctx.Value(contextKey{}).(string)
	return appID, ok && appID != ""
}

// TokenIssuer signs and verifies HS256 tokens whose subject is the
// application ID.
type TokenIssuer struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewTokenIssuer creates an issuer. An empty issuer name disables the
// issuer check.
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, leeway: 5 * time.Second}, nil
}

// Create signs a token for appID that expires after ttl. A zero ttl
// produces a token without expiry.
func (i *TokenIssuer) Create(appID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  appID,
		Issuer:   i.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims.
func (i *TokenIssuer) Parse(token string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(i.leeway),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

// ApplicationID verifies token and returns its subject.
func (i *TokenIssuer) ApplicationID(token string) (string, error) {
	claims, err := i.Parse(token)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}
