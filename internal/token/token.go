// Package token mints and verifies the signed return-URL tokens embedded in
// processor redirect flows. The token ties a redirect completion back to the
// checkout session it belongs to without trusting query parameters.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("return token secret is required")
	ErrInvalidToken  = errors.New("invalid return token")
)

const defaultTTL = 2 * time.Hour

// Claims identifies the session a customer is returning to.
type Claims struct {
	SessionID string `json:"sid"`
	HandlerID string `json:"hnd"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret), ttl: defaultTTL}, nil
}

// Mint signs a return token for the given session and handler.
func (s *Signer) Mint(sessionID, handlerID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		HandlerID: handlerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a return token.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
