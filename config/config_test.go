package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient(t *testing.T) {

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("HUBURL", "ws://hub.example.com/hub")
		t.Setenv("ROOM_KIND", "offer")
		t.Setenv("ROOM_ID", "OFFER-1")
		t.Setenv("CREDENTIALS_USERNAME", "driver")
		t.Setenv("CREDENTIALS_PASSWORD", "secret")

		c, err := LoadClient()
		require.Nil(t, err)
		require.Nil(t, c.Validate())
		assert.Equal(t, "ws://hub.example.com/hub", c.HubURL)
		assert.Equal(t, "http://localhost:8080", c.APIURL)
		assert.Equal(t, "offer", c.Room.Kind)
		assert.Equal(t, "OFFER-1", c.Room.ID)
	})

	t.Run("missing room fails validation", func(t *testing.T) {
		c, err := LoadClient()
		require.Nil(t, err)
		err = c.Validate()
		require.NotNil(t, err)
		assert.Contains(t, FormatValidationErrors(err), "required")
	})

	t.Run("unknown room kind fails validation", func(t *testing.T) {
		t.Setenv("ROOM_KIND", "parcel")
		t.Setenv("ROOM_ID", "1")
		t.Setenv("CREDENTIALS_USERNAME", "driver")
		t.Setenv("CREDENTIALS_PASSWORD", "secret")

		c, err := LoadClient()
		require.Nil(t, err)
		assert.NotNil(t, c.Validate())
	})
}

func TestLoadServer(t *testing.T) {

	t.Run("defaults are valid", func(t *testing.T) {
		c, err := LoadServer()
		require.Nil(t, err)
		require.Nil(t, c.Validate())
		assert.Equal(t, 8080, c.Port)
		assert.Equal(t, "0.0.0.0", c.Hostname)
		assert.Len(t, c.Auth.Secret, 32)
		assert.Equal(t, 100, c.HistoryLimit)
	})

	t.Run("secret is decoded from base64", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", base64.StdEncoding.EncodeToString([]byte("0123456789abcdef")))
		c, err := LoadServer()
		require.Nil(t, err)
		require.Nil(t, c.Validate())
		assert.Equal(t, []byte("0123456789abcdef"), []byte(c.Auth.Secret))
	})

	t.Run("invalid port fails validation", func(t *testing.T) {
		t.Setenv("PORT", "99999")
		c, err := LoadServer()
		require.Nil(t, err)
		assert.NotNil(t, c.Validate())
	})
}
