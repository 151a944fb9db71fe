package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/dbx"
	"github.com/dmitrijs2005/buddiesfinder/internal/logging"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/repositories/repomanager"
)

// LockoutPolicy locks an account for Duration once Threshold failures fall
// inside the trailing Window.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
	Duration  time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: 10, Window: 10 * time.Minute, Duration: 15 * time.Minute}
}

// LockoutTracker keeps the failed-login log and the account lock.
type LockoutTracker struct {
	repos  repomanager.RepositoryManager
	tx     dbx.Transactor
	policy LockoutPolicy
	log    logging.Logger
	now    func() time.Time
}

func NewLockoutTracker(d Deps, policy LockoutPolicy) *LockoutTracker {
	return &LockoutTracker{
		repos:  d.Repos,
		tx:     d.Tx,
		policy: policy,
		log:    d.Log.With("module", "lockout"),
		now:    d.clock(),
	}
}

func (t *LockoutTracker) RecordFailure(ctx context.Context, accountID string) error {
	return t.recordFailure(ctx, t.tx.Conn(), accountID)
}

func (t *LockoutTracker) CountRecentFailures(ctx context.Context, accountID string, window time.Duration) (int, error) {
	return t.countRecentFailures(ctx, t.tx.Conn(), accountID, window)
}

// ApplyLockIfThresholdExceeded locks the account until now+lockout when
// recent reaches threshold and returns the new lock end, or nil when below
// threshold. A longer lock already in place is kept.
func (t *LockoutTracker) ApplyLockIfThresholdExceeded(ctx context.Context, accountID string, recent, threshold int, lockout time.Duration) (*time.Time, error) {
	return t.applyLock(ctx, t.tx.Conn(), accountID, recent, threshold, lockout)
}

// Clear deletes the failure log and lifts the lock.
func (t *LockoutTracker) Clear(ctx context.Context, accountID string) error {
	return t.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return t.clear(ctx, tx, accountID)
	})
}

// RegisterFailure records a failure, recounts the window and applies the lock
// in one transaction. It returns the lock end (nil when not locked) and the
// recent failure count.
func (t *LockoutTracker) RegisterFailure(ctx context.Context, accountID string) (*time.Time, int, error) {
	var (
		until  *time.Time
		recent int
	)
	err := t.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := t.recordFailure(ctx, tx, accountID); err != nil {
			return err
		}
		var err error
		if recent, err = t.countRecentFailures(ctx, tx, accountID, t.policy.Window); err != nil {
			return err
		}
		until, err = t.applyLock(ctx, tx, accountID, recent, t.policy.Threshold, t.policy.Duration)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	if until != nil {
		t.log.Warn(ctx, "account locked", "account_id", accountID, "failures", recent, "until", until)
	}
	return until, recent, nil
}

// IsLocked reports whether the account has a lock ending in the future.
func (t *LockoutTracker) IsLocked(a *models.Account) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(t.now())
}

// LockExpired reports whether the account still carries a lock that has
// already ended.
func (t *LockoutTracker) LockExpired(a *models.Account) bool {
	return a.LockedUntil != nil && !a.LockedUntil.After(t.now())
}

func (t *LockoutTracker) recordFailure(ctx context.Context, db dbx.DBTX, accountID string) error {
	if err := t.repos.FailedLogins(db).Append(ctx, accountID, t.now()); err != nil {
		return persistence("record failure", err)
	}
	return nil
}

func (t *LockoutTracker) countRecentFailures(ctx context.Context, db dbx.DBTX, accountID string, window time.Duration) (int, error) {
	n, err := t.repos.FailedLogins(db).CountSince(ctx, accountID, t.now().Add(-window))
	if err != nil {
		return 0, persistence("count failures", err)
	}
	return n, nil
}

func (t *LockoutTracker) applyLock(ctx context.Context, db dbx.DBTX, accountID string, recent, threshold int, lockout time.Duration) (*time.Time, error) {
	if recent < threshold {
		return nil, nil
	}
	until := t.now().Add(lockout)
	if err := t.repos.Accounts(db).ExtendLock(ctx, accountID, until); err != nil {
		return nil, persistence("extend lock", err)
	}
	return &until, nil
}

func (t *LockoutTracker) clear(ctx context.Context, db dbx.DBTX, accountID string) error {
	if err := t.repos.FailedLogins(db).DeleteAll(ctx, accountID); err != nil {
		return persistence("delete failures", err)
	}
	if err := t.repos.Accounts(db).ClearLock(ctx, accountID); err != nil {
		return persistence("clear lock", err)
	}
	return nil
}
