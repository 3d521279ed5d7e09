// Package config loads and validates the configuration of the two
// deliverchat binaries. Values come from a yaml config file overlaid with
// environment variables (dots become underscores, e.g. room.id -> ROOM_ID);
// a .env file is honored when present.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Base64Encoded decodes a base64 string into raw bytes while unmarshalling.
type Base64Encoded []byte

func (b *Base64Encoded) UnmarshalText(text []byte) error {
	dec, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("base64 decode: %w", err)
	}
	*b = dec
	return nil
}

// Client configures the terminal chat client.
type Client struct {
	// HubURL is the websocket endpoint of the messaging hub.
	HubURL string `validate:"required"`
	// APIURL is the base URL of the marketplace REST API.
	APIURL string `validate:"required"`
	Room   struct {
		// Kind selects the conversation scope: offer or order.
		Kind string `validate:"required,oneof=offer order"`
		ID   string `validate:"required"`
	}
	Credentials struct {
		Username string `validate:"required"`
		Password string `validate:"required"`
	}
	valid bool
}

// Server configures the development hub server.
type Server struct {
	// Port is the port number to listen on. The default is 8080.
	Port int `validate:"required,port"`
	// Hostname is the hostname to listen on. The default is 0.0.0.0.
	Hostname string `validate:"required"`
	Auth     struct {
		// Secret is the key used to sign JWT tokens, base64 encoded.
		// The default is a random 32 byte string.
		Secret Base64Encoded `validate:"required"`
	}
	SQLite struct {
		// File is the path to the SQLite database file.
		File string `validate:"required"`
		// Migrations is the directory the migration files reside in.
		Migrations string `validate:"required"`
	}
	// AllowedOrigins is the list of origins allowed to connect.
	AllowedOrigins []string
	// HistoryLimit caps the size of the history batch pushed on join.
	HistoryLimit int
	valid        bool
}

// LoadClient reads the client configuration from deliver-chat.yaml and the
// environment. Invalid values are deferred to Validate.
func LoadClient() (*Client, error) {
	v, err := newViper("deliver-chat")
	if err != nil {
		return nil, err
	}

	v.SetDefault("huburl", "ws://localhost:8080/hub")
	v.SetDefault("apiurl", "http://localhost:8080")

	config := &Client{}
	if err := unmarshal(v, config); err != nil {
		// defer error to validation step
		return config, nil
	}
	return config, nil
}

// LoadServer reads the server configuration from deliverd.yaml and the
// environment. Invalid values are deferred to Validate.
func LoadServer() (*Server, error) {
	v, err := newViper("deliverd")
	if err != nil {
		return nil, err
	}

	v.SetDefault("port", 8080)
	v.SetDefault("hostname", "0.0.0.0")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	v.SetDefault("auth.secret", base64.StdEncoding.EncodeToString(secret))
	v.SetDefault("sqlite.file", "./deliverchat.db")
	v.SetDefault("sqlite.migrations", "./migrations")
	v.SetDefault("historylimit", 100)

	config := &Server{}
	if err := unmarshal(v, config); err != nil {
		// defer error to validation step
		return config, nil
	}
	return config, nil
}

func newViper(name string) (*viper.Viper, error) {
	// a missing .env is fine; the environment may carry everything
	godotenv.Load()

	v := viper.New()
	v.SetConfigName(name)
	v.AddConfigPath(".")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func unmarshal(v *viper.Viper, config any) error {
	return v.Unmarshal(config,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToSliceHookFunc(",")),
		),
	)
}

func (c *Client) Validate() error {
	if c.valid {
		return nil
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	c.valid = true
	return nil
}

func (c *Server) Validate() error {
	if c.valid {
		return nil
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	c.valid = true
	return nil
}
