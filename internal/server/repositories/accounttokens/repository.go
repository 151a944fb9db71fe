// Package accounttokens stores single-use e-mailed tokens (password reset,
// e-mail verification) keyed by the SHA-256 digest of the raw token.
package accounttokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
)

type Repository interface {
	// Replace drops the account's unused tokens of the given purpose and
	// stores a new one, so only the latest link works.
	Replace(ctx context.Context, accountID string, purpose models.TokenPurpose, hash string, expiresAt time.Time) error
	// Claim marks an unused, unexpired token as used and returns its account
	// id. Concurrent claims of one token see exactly one winner; the rest get
	// common.ErrorNotFound.
	Claim(ctx context.Context, hash string, purpose models.TokenPurpose, now time.Time) (string, error)
}
