package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		Issuer:    "deliverchat",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.Nil(t, err)
	return tok
}

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token(context.Background())
	require.Nil(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = Static("").Token(context.Background())
	require.Nil(t, err)
	assert.Empty(t, tok)
}

func TestJWTProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches on first use and caches until near expiry", func(t *testing.T) {
		calls := 0
		tok := signedToken(t, time.Now().Add(time.Hour))
		p := NewJWTProvider(func(ctx context.Context) (string, error) {
			calls++
			return tok, nil
		})

		got, err := p.Token(ctx)
		require.Nil(t, err)
		assert.Equal(t, tok, got)

		_, err = p.Token(ctx)
		require.Nil(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("refreshes when within the skew window", func(t *testing.T) {
		calls := 0
		stale := signedToken(t, time.Now().Add(10*time.Second))
		fresh := signedToken(t, time.Now().Add(time.Hour))
		p := NewJWTProvider(func(ctx context.Context) (string, error) {
			calls++
			if calls == 1 {
				return stale, nil
			}
			return fresh, nil
		}, WithSkew(30*time.Second))

		got, err := p.Token(ctx)
		require.Nil(t, err)
		assert.Equal(t, stale, got)

		got, err = p.Token(ctx)
		require.Nil(t, err)
		assert.Equal(t, fresh, got)
		assert.Equal(t, 2, calls)
	})

	t.Run("propagates refresh failure", func(t *testing.T) {
		boom := errors.New("auth down")
		p := NewJWTProvider(func(ctx context.Context) (string, error) {
			return "", boom
		})
		_, err := p.Token(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty refreshed token is ErrNoToken", func(t *testing.T) {
		p := NewJWTProvider(func(ctx context.Context) (string, error) {
			return "", nil
		})
		_, err := p.Token(ctx)
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("rejects a malformed token", func(t *testing.T) {
		p := NewJWTProvider(func(ctx context.Context) (string, error) {
			return "not-a-jwt", nil
		})
		_, err := p.Token(ctx)
		assert.NotNil(t, err)
	})
}
