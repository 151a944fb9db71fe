package models

import "time"

// TokenPurpose separates the kinds of single-use e-mailed tokens that share
// the account_tokens table.
type TokenPurpose string

const (
	PurposePasswordReset     TokenPurpose = "password_reset"
	PurposeEmailVerification TokenPurpose = "email_verification"
)

// AccountToken is a single-use token. Only the SHA-256 digest of the raw
// value is stored.
type AccountToken struct {
	AccountID string
	Purpose   TokenPurpose
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// IsUsable reports whether the token can still be consumed at now.
func (t *AccountToken) IsUsable(now time.Time) bool {
	return !t.Used && now.Before(t.ExpiresAt)
}
