package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hesab/internal/core"
)

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, malformed token, expiry. Callers should not distinguish.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the validated contents of an access token.
type Claims struct {
	Username  string
	Role      core.Role
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a manager with the given signing secret and token
// lifetime. now may be nil, defaulting to time.Now.
func NewTokenManager(secret []byte, issuer string, ttl time.Duration, now func() time.Time) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: secret, issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue signs a token for the user, embedding the role claim.
func (m *TokenManager) Issue(user core.User) (string, error) {
	issued := m.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.ttl)),
		},
		Role: string(user.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a bearer token and returns its claims. Expired, tampered or
// non-HS256 tokens yield ErrInvalidToken.
func (m *TokenManager) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if parsed.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	if m.issuer != "" && parsed.Issuer != m.issuer {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{
		Username: parsed.Subject,
		Role:     core.Role(parsed.Role),
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time.UTC()
	}
	return claims, nil
}
