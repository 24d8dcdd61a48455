// Package auth verifies the bearer tokens issued by the identity provider.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	clockSkew           = time.Minute

	envAuth0TestMode   = "AUTH0_TEST_MODE"
	envTestJWTSecret   = "TEST_JWT_SECRET"
	envLocalAuthMode   = "LOCAL_AUTH_MODE"
	envLocalAuthSecret = "LOCAL_AUTH_SHARED_SECRET"
	envJWKSCacheTTL    = "JWKS_CACHE_TTL"
)

var (
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenNotYet     = errors.New("token not valid yet")
	ErrTokenIssuedLate = errors.New("token used before issued")
	ErrAudience        = errors.New("invalid audience")
	ErrIssuer          = errors.New("invalid issuer")
	ErrMissingSubject  = errors.New("missing sub")
)

// Identity is what a verified token says about the signed-in user.
type Identity struct {
	Subject string `json:"id"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Auth validates incoming JWT tokens. In test mode tokens are HS256 signed
// with TestSecret; otherwise they are RS256 and verified against JWKS.
type Auth struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte

	parser *jwt.Parser
	now    func() time.Time

	keysMu      sync.Mutex
	keys        map[string]cachedKey
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// New creates an Auth verifying RS256 tokens against jwks. LOCAL_AUTH_MODE=hs256
// or AUTH0_TEST_MODE=1 switch it to shared-secret HS256 verification.
// Misconfiguration panics, as it is only read at startup.
func New(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	ttl, err := cacheTTLFromEnv()
	if err != nil {
		panic(err.Error())
	}
	secret, err := sharedSecretFromEnv()
	if err != nil {
		panic(err.Error())
	}
	a := &Auth{JWKS: jwks, Audience: audience, Issuer: issuer, keyCacheTTL: ttl}
	if secret != nil {
		a.TestMode = true
		a.TestSecret = secret
	}
	return a.init()
}

// NewHS256 creates an Auth that accepts tokens signed with secret.
func NewHS256(secret []byte, audience, issuer string) *Auth {
	a := &Auth{Audience: audience, Issuer: issuer, TestMode: true, TestSecret: secret}
	return a.init()
}

func (a *Auth) init() *Auth {
	method := "RS256"
	if a.TestMode {
		method = "HS256"
	}
	// Time claims are checked in checkClaims, with clock skew allowance.
	a.parser = jwt.NewParser(jwt.WithValidMethods([]string{method}), jwt.WithoutClaimsValidation())
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// sharedSecretFromEnv returns the HS256 secret when a local auth mode is
// configured, or nil for JWKS verification.
func sharedSecretFromEnv() ([]byte, error) {
	switch mode := strings.ToLower(os.Getenv(envLocalAuthMode)); mode {
	case "":
	case "hs256":
		secret := os.Getenv(envLocalAuthSecret)
		if secret == "" {
			return nil, errors.New("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		return []byte(secret), nil
	default:
		return nil, fmt.Errorf("unsupported LOCAL_AUTH_MODE value %q", mode)
	}
	if os.Getenv(envAuth0TestMode) != "1" {
		return nil, nil
	}
	secret := os.Getenv(envTestJWTSecret)
	if secret == "" {
		return nil, errors.New("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
	}
	return []byte(secret), nil
}

func cacheTTLFromEnv() (time.Duration, error) {
	raw := os.Getenv(envJWKSCacheTTL)
	if raw == "" {
		return defaultJWKSCacheTTL, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		return 0, fmt.Errorf("invalid JWKS_CACHE_TTL %q", raw)
	}
	return ttl, nil
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	id, err := a.IdentityFromAuthHeader(h)
	return id.Subject, err
}

// IdentityFromAuthHeader verifies the bearer token in h.
func (a *Auth) IdentityFromAuthHeader(h string) (Identity, error) {
	token, err := BearerToken(h)
	if err != nil {
		return Identity{}, err
	}
	return a.IdentityFromToken(token)
}

// UserIDFromToken verifies a raw token, as passed in a query string.
func (a *Auth) UserIDFromToken(token string) (string, error) {
	id, err := a.IdentityFromToken(token)
	return id.Subject, err
}

// IdentityFromToken verifies a raw token and returns its subject and profile claims.
func (a *Auth) IdentityFromToken(token string) (Identity, error) {
	if token == "" || strings.Count(token, ".") != 2 {
		return Identity{}, ErrBadAuthorization
	}
	if a.parser == nil {
		a.init()
	}
	parsed, err := a.parser.Parse(token, a.verificationKey)
	if err != nil {
		return Identity{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}
	if err := a.checkClaims(claims); err != nil {
		return Identity{}, err
	}
	return identityFromClaims(claims)
}

// checkClaims validates the time claims and enforces the configured audience
// and issuer. Expiry is exact; nbf and iat tolerate an issuer clock running
// up to clockSkew ahead.
func (a *Auth) checkClaims(claims jwt.MapClaims) error {
	now := a.now()
	latest := now.Add(clockSkew).Unix()
	switch {
	case !claims.VerifyExpiresAt(now.Unix(), true):
		return ErrTokenExpired
	case !claims.VerifyNotBefore(latest, false):
		return ErrTokenNotYet
	case !claims.VerifyIssuedAt(latest, false):
		return ErrTokenIssuedLate
	case a.Audience != "" && !claims.VerifyAudience(a.Audience, false):
		return ErrAudience
	case a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false):
		return ErrIssuer
	}
	return nil
}

func identityFromClaims(claims jwt.MapClaims) (Identity, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, ErrMissingSubject
	}
	id := Identity{Subject: sub}
	id.Name, _ = claims["name"].(string)
	id.Email, _ = claims["email"].(string)
	return id, nil
}

func (a *Auth) verificationKey(token *jwt.Token) (any, error) {
	if !a.TestMode {
		return a.jwksKey(token)
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("invalid signing method")
	}
	return a.TestSecret, nil
}

// jwksKey resolves the RS256 key for token, caching it by kid.
func (a *Auth) jwksKey(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}
	kid, _ := token.Header["kid"].(string)
	cacheable := kid != "" && a.keyCacheTTL > 0
	if cacheable {
		if key, ok := a.cachedKey(kid); ok {
			return key, nil
		}
	}
	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if cacheable {
		a.keysMu.Lock()
		if a.keys == nil {
			a.keys = make(map[string]cachedKey)
		}
		a.keys[kid] = cachedKey{key: key, expiresAt: a.now().Add(a.keyCacheTTL)}
		a.keysMu.Unlock()
	}
	return key, nil
}

func (a *Auth) cachedKey(kid string) (any, bool) {
	a.keysMu.Lock()
	defer a.keysMu.Unlock()
	entry, ok := a.keys[kid]
	if !ok {
		return nil, false
	}
	if !a.now().Before(entry.expiresAt) {
		delete(a.keys, kid)
		return nil, false
	}
	return entry.key, true
}
