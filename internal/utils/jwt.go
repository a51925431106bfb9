package utils // package utils provides token issuing and password hashing helpers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// DefaultTokenTTL is how long an access token stays valid. There is no
// refresh flow; clients log in again after expiry.
const DefaultTokenTTL = 7 * 24 * time.Hour

var signingMethod = jwt.SigningMethodHS256

// ErrInvalidToken covers every verification failure: bad signature,
// malformed structure, unexpected algorithm, missing subject or expiry.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken is a signed token together with its absolute expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// TokenIssuer signs and verifies bearer tokens whose subject is the user's
// email. It is built once from configuration and is safe for concurrent use.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer for the given secret. A non-positive ttl
// selects DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *t
	cp.now = now
	return &cp
}

// Issue builds an HS256 token with sub, iat and exp claims.
func (t *TokenIssuer) Issue(subjectEmail string) (AccessToken, error) {
	if subjectEmail == "" {
		return AccessToken{}, fmt.Errorf("subject is required")
	}
	issuedAt := t.now().UTC()
	exp := issuedAt.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subjectEmail,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("signing jwt: %w", err)
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify returns the subject email of a valid, unexpired token.
func (t *TokenIssuer) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(tok *jwt.Token) (interface{}, error) {
			if tok.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
