package jwt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid access token")

// AccessClaims is the claim set carried by every access token.
type AccessClaims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// UserID returns the subject claim as a numeric user id.
func (c *AccessClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("lib.jwt.UserID: %w", ErrInvalidToken)
	}

	return id, nil
}

// NewAccessToken mints a signed HS256 token with registered claims plus the
// caller's role. A signing failure is returned to the caller and must be
// treated as fatal for the request.
func NewAccessToken(userID int64, role, secret, issuer, audience string, ttl time.Duration) (string, time.Time, error) {
	const op = "lib.jwt.NewAccessToken"

	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Audience:  jwtlib.ClaimStrings{audience},
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

// ParseAccessToken validates the signature, expiry, issuer and audience of a
// token and returns its claims.
func ParseAccessToken(tokenStr, secret, issuer, audience string) (*AccessClaims, error) {
	const op = "lib.jwt.ParseAccessToken"

	claims := &AccessClaims{}

	parsed, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%s: unexpected signing method", op)
		}
		return []byte(secret), nil
	}, jwtlib.WithIssuer(issuer), jwtlib.WithAudience(audience))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// NewRefreshToken returns an opaque random value with 256 bits of entropy.
// It carries no structure; the session store is the only way to resolve it.
func NewRefreshToken() (string, error) {
	const op = "lib.jwt.NewRefreshToken"

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.StdEncoding.EncodeToString(b), nil
}
