// Package failedlogins stores the append-only log of failed password
// attempts used by the lockout tracker.
package failedlogins

import (
	"context"
	"time"
)

type Repository interface {
	Append(ctx context.Context, accountID string, at time.Time) error
	// CountSince returns the number of failures recorded at or after since.
	CountSince(ctx context.Context, accountID string, since time.Time) (int, error)
	DeleteAll(ctx context.Context, accountID string) error
}
