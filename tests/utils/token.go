package testutil

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultSecret matches the docker compose TEST_JWT_SECRET.
const DefaultSecret = "testsecret"

// TokenOptions customizes the claims of a generated token.
type TokenOptions struct {
	Name     string
	Email    string
	Audience string
	Issuer   string
	TTL      time.Duration
}

// TestToken returns a signed JWT suitable for test mode authentication.
func TestToken(userID string) (string, error) {
	return TestTokenWithOptions(userID, TokenOptions{})
}

// TestTokenWithOptions signs an HS256 token for userID with TEST_JWT_SECRET,
// falling back to DefaultSecret.
func TestTokenWithOptions(userID string, opts TokenOptions) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	secret := os.Getenv("TEST_JWT_SECRET")
	if secret == "" {
		secret = DefaultSecret
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	if opts.Name != "" {
		claims["name"] = opts.Name
	}
	if opts.Email != "" {
		claims["email"] = opts.Email
	}
	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}
	if opts.Issuer != "" {
		claims["iss"] = opts.Issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
