package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"hesab/internal/core"
)

// HashPassword derives a bcrypt hash for storage. Rejects trivially short
// passwords before hashing.
func HashPassword(plain string) (string, error) {
	if len(plain) < 8 {
		return "", core.NewValidationError("password", "must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
