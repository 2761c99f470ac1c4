package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lettera/lettera/internal/common"
)

// MinKeyLen is the minimum accepted signing key length in bytes. HMAC
// with SHA-384 loses nothing from longer keys but degrades silently with
// shorter ones, so short keys are rejected outright.
const MinKeyLen = 48

// Claims is the signed token payload: the subject's user id plus the
// standard expiry claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// TokenCodec issues and verifies stateless bearer tokens. It is an
// immutable value constructed once at startup; the key never comes from
// request input.
type TokenCodec struct {
	key []byte
	ttl time.Duration
}

func NewTokenCodec(key []byte, ttl time.Duration) (*TokenCodec, error) {
	if len(key) < MinKeyLen {
		return nil, common.ErrShortKey
	}
	return &TokenCodec{key: key, ttl: ttl}, nil
}

// TTL returns the lifetime stamped on issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for userID expiring at now plus the codec's TTL.
func (c *TokenCodec) Issue(userID uuid.UUID, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		UserID: userID.String(),
	})

	return token.SignedString(c.key)
}

// Verify parses and checks the token as of now. Any failure (malformed
// structure, wrong algorithm, bad signature, expired claims) collapses
// into common.ErrInvalidToken so callers cannot tell them apart.
func (c *TokenCodec) Verify(tokenString string, now time.Time) (uuid.UUID, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS384.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		// Reject non-canonical base64: the signature must cover the exact
		// bytes that were signed, with no ambiguous encodings.
		jwt.WithStrictDecoding(),
	)
	if err != nil || !token.Valid {
		return uuid.Nil, common.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, common.ErrInvalidToken
	}

	return userID, nil
}
