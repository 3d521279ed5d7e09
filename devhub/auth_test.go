package devhub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T, id, username, password string) Account {
	t.Helper()
	hash, err := HashPassword(password)
	require.Nil(t, err)
	return Account{ID: id, Username: username, PasswordHash: hash}
}

func TestAuth(t *testing.T) {
	secret := []byte("01234567890123456789012345678901")
	driver := testAccount(t, "U1", "driver", "driver-pw")

	t.Run("issue and verify round trip", func(t *testing.T) {
		auth := NewAuth(secret, time.Hour, driver)
		tok, userID, err := auth.Issue("driver", "driver-pw")
		require.Nil(t, err)
		assert.Equal(t, "U1", userID)

		claims, err := auth.Verify(tok)
		require.Nil(t, err)
		assert.Equal(t, "U1", claims.UserID)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		auth := NewAuth(secret, time.Hour, driver)
		_, _, err := auth.Issue("driver", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown username is rejected", func(t *testing.T) {
		auth := NewAuth(secret, time.Hour, driver)
		_, _, err := auth.Issue("ghost", "driver-pw")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("expired token", func(t *testing.T) {
		auth := NewAuth(secret, -time.Minute, driver)
		tok, _, err := auth.Issue("driver", "driver-pw")
		require.Nil(t, err)

		_, err = auth.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := NewAuth([]byte("another-secret-another-secret-12"), time.Hour, driver)
		tok, _, err := other.Issue("driver", "driver-pw")
		require.Nil(t, err)

		auth := NewAuth(secret, time.Hour, driver)
		_, err = auth.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("malformed token", func(t *testing.T) {
		auth := NewAuth(secret, time.Hour, driver)
		_, err := auth.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
