package auth

import (
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"blog/internal/apperr"
)

const MinPasswordLength = 8

// MaxPasswordBytes is the most bcrypt will hash.
const MaxPasswordBytes = 72

func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return apperr.ErrPasswordTooShort
	}
	if len(pw) > MaxPasswordBytes {
		return apperr.ErrPasswordTooLong
	}
	return nil
}

// --- password helpers (bcrypt) ---
func HashPassword(pw string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", apperr.Wrap(err, "hash password")
	}
	return string(b), nil
}

func CheckPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
