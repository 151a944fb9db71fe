package models

import "time"

// Role is the authorization level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account is the authentication view of a user row. Empty OTPSecret and
// CurrentSessionToken correspond to NULL in storage.
type Account struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string
	Role                Role
	OTPSecret           string // sealed, see cryptox
	OTPEnabled          bool
	CurrentSessionToken string
	LockedUntil         *time.Time
	EmailVerified       bool
	CreatedAt           time.Time
}
