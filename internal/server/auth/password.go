// Package auth holds the credential primitives: bcrypt password hashing and
// the signed cookie codec for browser sessions.
package auth

import (
	"unicode"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 8
	// MaxPasswordLen is bcrypt's input limit in bytes.
	MaxPasswordLen = 72
)

func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword fails closed: a malformed or empty hash yields false.
func VerifyPassword(plain, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}

// ValidatePassword enforces length bounds and requires at least one letter
// and one digit.
func ValidatePassword(plain string) error {
	if len(plain) < MinPasswordLen || len(plain) > MaxPasswordLen {
		return common.ErrWeakPassword
	}

	var letter, digit bool
	for _, r := range plain {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return common.ErrWeakPassword
	}
	return nil
}

// dummyHash is compared against when the e-mail is unknown so that the
// response time does not reveal whether the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("buddiesfinder-dummy-password"), bcrypt.DefaultCost)

// BurnPasswordCheck performs one bcrypt comparison and discards the result.
func BurnPasswordCheck(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
