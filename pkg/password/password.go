package password

import (
	"fmt"

	"anoa.com/schoolportal/pkg/apperror"
	"golang.org/x/crypto/bcrypt"
)

const MinLength = 6

func Hash(plain string) (string, error) {
	if len(plain) < MinLength {
		return "", fmt.Errorf("password must be at least %d characters: %w", MinLength, apperror.ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Matches reports whether plain is the password behind hash.
func Matches(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
