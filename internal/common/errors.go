// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// ErrPersistence wraps storage faults. It is fatal for the request and is
	// never retried inside the service layer.
	ErrPersistence = errors.New("persistence error")

	// Authentication outcomes.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrEmailUnverified    = errors.New("email not verified")
	ErrOTPRequired        = errors.New("one-time code required")
	ErrInvalidOTP         = errors.New("invalid one-time code")

	// Two-factor enrollment errors.
	ErrNoSecretProvisioned = errors.New("no otp secret provisioned")
	ErrOTPAlreadyEnabled   = errors.New("otp already enabled")

	// Single-use token errors.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrInvalidToken is returned for cookies that fail signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Validation errors.
	ErrWeakPassword = errors.New("password does not meet requirements")
	ErrInvalidEmail = errors.New("invalid email address")
)
