// Package token supplies bearer tokens to the hub connection. Token
// issuance itself belongs to the auth subsystem; this package only decides
// which token string to hand to the transport at connect time and when a
// cached token is too stale to reuse.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when a provider cannot produce a token.
	ErrNoToken = errors.New("no token available")
)

// Provider yields the current bearer token. The transport calls it on every
// connect and reconnect attempt. An empty token with a nil error means the
// caller is unauthenticated; whether that is acceptable is the hub's call.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token. Useful for tests and for callers that manage
// refresh elsewhere.
type Static string

func (s Static) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// RefreshFunc fetches a fresh token from the auth subsystem.
type RefreshFunc func(ctx context.Context) (string, error)

// JWTProvider caches a JWT and refreshes it through a RefreshFunc when the
// cached token is within the skew window of its expiry. The token is parsed
// unverified: the client does not hold the signing key, it only needs the
// exp claim to avoid presenting a dead token on reconnect.
type JWTProvider struct {
	refresh RefreshFunc
	skew    time.Duration
	now     func() time.Time

	mu        sync.Mutex
	current   string
	expiresAt time.Time
}

type JWTProviderOption func(*JWTProvider)

// WithSkew sets how long before expiry a cached token is considered stale.
func WithSkew(d time.Duration) JWTProviderOption {
	return func(p *JWTProvider) {
		p.skew = d
	}
}

func NewJWTProvider(refresh RefreshFunc, opts ...JWTProviderOption) *JWTProvider {
	p := &JWTProvider{
		refresh: refresh,
		skew:    30 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *JWTProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != "" && p.now().Add(p.skew).Before(p.expiresAt) {
		return p.current, nil
	}

	tok, err := p.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	if tok == "" {
		return "", ErrNoToken
	}

	exp, err := tokenExpiry(tok)
	if err != nil {
		return "", fmt.Errorf("tokenExpiry: %w", err)
	}

	p.current = tok
	p.expiresAt = exp
	return tok, nil
}

func tokenExpiry(tok string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		// tokens without exp never go stale on our side
		return time.Now().Add(24 * time.Hour * 365), nil
	}
	return claims.ExpiresAt.Time, nil
}
