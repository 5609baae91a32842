package store

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds enforced before hashing. The upper bound is
// not arbitrary: bcrypt reads only the first 72 bytes of its input,
// so anything longer would be silently truncated instead of hashed.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var (
	ErrPasswordTooShort = errors.New("password is shorter than 8 characters")
	ErrPasswordTooLong  = errors.New("password is longer than 72 characters")
)

// HashPassword checks the length bounds and returns the bcrypt hash of
// the password. The resulting string embeds the salt and cost, so it is
// all that needs to be stored.
func HashPassword(password string) (string, error) {
	switch {
	case len(password) < MinPasswordLength:
		return "", ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
