// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinSigningKeyLength is the minimum HMAC key size in bytes.
const MinSigningKeyLength = 32

// TokenKind distinguishes access tokens from refresh tokens.
type TokenKind string

// Token kinds.
const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims are the identity attributes embedded in a bearer token.
type Claims struct {
	Subject     ulid.ULID
	Identifier  string
	DisplayName string
	Kind        TokenKind
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenCodec signs and verifies time-bounded bearer tokens.
type TokenCodec interface {
	// Sign returns a signed token for claims valid for ttl, and its expiry.
	Sign(claims Claims, ttl time.Duration) (string, time.Time, error)

	// Verify checks signature and expiry and returns the embedded claims.
	Verify(token string) (*Claims, error)
}

// JWTCodec implements TokenCodec with HS256-signed JWTs.
type JWTCodec struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// JWTCodecOption configures a JWTCodec.
type JWTCodecOption func(*JWTCodec)

// WithCodecClock sets the time source used for iat/exp and validation.
func WithCodecClock(now func() time.Time) JWTCodecOption {
	return func(c *JWTCodec) {
		c.now = now
	}
}

// NewJWTCodec creates a JWTCodec. The key must be at least MinSigningKeyLength bytes.
func NewJWTCodec(key []byte, issuer string, opts ...JWTCodecOption) (*JWTCodec, error) {
	if len(key) < MinSigningKeyLength {
		return nil, oops.Code("CONFIG_INVALID").
			With("min", MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	c := &JWTCodec{
		key:    append([]byte(nil), key...),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type jwtClaims struct {
	Identifier  string `json:"email"`
	DisplayName string `json:"name"`
	Kind        string `json:"kind"`
	jwt.RegisteredClaims
}

// Sign returns a signed JWT for claims valid for ttl.
func (c *JWTCodec) Sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").With("ttl", ttl).Errorf("ttl must be positive")
	}
	issuedAt := c.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Identifier:  claims.Identifier,
		DisplayName: claims.DisplayName,
		Kind:        string(claims.Kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    c.issuer,
			Subject:   claims.Subject.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify parses token, checking signature, issuer and expiry.
func (c *JWTCodec) Verify(token string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(_ *jwt.Token) (any, error) {
		return c.key, nil
	}, parserOpts...)
	if err != nil {
		return nil, oops.Code("TOKEN_VERIFY_FAILED").Wrap(err)
	}
	jc, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, oops.Code("TOKEN_VERIFY_FAILED").Errorf("invalid token claims")
	}

	subject, err := ulid.Parse(jc.Subject)
	if err != nil {
		return nil, oops.Code("TOKEN_VERIFY_FAILED").With("subject", jc.Subject).Wrap(err)
	}

	claims := &Claims{
		Subject:     subject,
		Identifier:  jc.Identifier,
		DisplayName: jc.DisplayName,
		Kind:        TokenKind(jc.Kind),
	}
	if jc.IssuedAt != nil {
		claims.IssuedAt = jc.IssuedAt.UTC()
	}
	if jc.ExpiresAt != nil {
		claims.ExpiresAt = jc.ExpiresAt.UTC()
	}
	return claims, nil
}

// Compile-time interface check.
var _ TokenCodec = (*JWTCodec)(nil)
