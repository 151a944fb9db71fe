// Package accounts declares the storage contract for account rows and a
// PostgreSQL implementation of it.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
)

// Repository reads and mutates account rows. Every mutation is a single-row,
// last-writer-wins update. Lookups and updates of a missing row return
// common.ErrorNotFound.
type Repository interface {
	// Create inserts the account and fills in ID and CreatedAt. A duplicate
	// e-mail yields common.ErrorAlreadyExists.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// ExtendLock sets locked_until to until unless the stored lock already
	// ends later. It never shortens a lock.
	ExtendLock(ctx context.Context, id string, until time.Time) error
	ClearLock(ctx context.Context, id string) error

	// SetSessionToken records the account's single active session token.
	// An empty token clears it.
	SetSessionToken(ctx context.Context, id string, token string) error

	// SetOTP stores a sealed secret and the enabled flag together. An empty
	// secret clears it.
	SetOTP(ctx context.Context, id string, sealedSecret string, enabled bool) error
	// EnableOTP flips otp_enabled on, but only while the stored secret is
	// still sealedSecret.
	EnableOTP(ctx context.Context, id string, sealedSecret string) error

	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	MarkEmailVerified(ctx context.Context, id string) error
}
