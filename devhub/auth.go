package devhub

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrUnrecognizedToken  = errors.New("unrecognized token")
)

// Account is a seeded development user the hub can authenticate.
type Account struct {
	ID           string
	Username     string
	PasswordHash []byte
}

// HashPassword prepares a password for seeding an account.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

type AuthClaims struct {
	UserID string
	jwt.RegisteredClaims
}

// Auth issues and verifies the bearer tokens the hub and the websocket
// upgrade accept. Accounts are seeded; there is no signup surface.
type Auth struct {
	secret     []byte
	expiration time.Duration
	accounts   map[string]Account
}

func NewAuth(secret []byte, expiration time.Duration, accounts ...Account) *Auth {
	byName := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		byName[a.Username] = a
	}
	return &Auth{secret: secret, expiration: expiration, accounts: byName}
}

// Issue checks the credentials against the seeded accounts and returns a
// signed token plus the account's user id.
func (a *Auth) Issue(username, password string) (string, string, error) {
	account, ok := a.accounts[username]
	if !ok {
		return "", "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	exp := time.Now().Add(a.expiration)
	claims := &AuthClaims{
		UserID: account.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "deliverchat",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", "", err
	}
	return signed, account.ID, nil
}

// Verify parses and validates a token, returning its claims.
func (a *Auth) Verify(token string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_token, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

	switch {
	case _token != nil && _token.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, ErrUnrecognizedToken
	}
}
