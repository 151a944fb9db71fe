package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/buddiesfinder/internal/common"
	"github.com/dmitrijs2005/buddiesfinder/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFailure_TenthLocksNinthDoesNot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	for i := 1; i <= 9; i++ {
		until, n, err := e.lockout.RegisterFailure(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, i, n)
		assert.Nil(t, until, "attempt %d must not lock", i)
		e.clock.Advance(30 * time.Second)
	}
	assert.Nil(t, e.reload(t, a.ID).LockedUntil)

	until, n, err := e.lockout.RegisterFailure(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	require.NotNil(t, until)
	assert.True(t, until.Equal(e.clock.Now().Add(15*time.Minute)))

	stored := e.reload(t, a.ID).LockedUntil
	require.NotNil(t, stored)
	assert.True(t, stored.Equal(*until))
}

func TestRegisterFailure_OldFailuresAgeOut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	for i := 0; i < 9; i++ {
		_, _, err := e.lockout.RegisterFailure(ctx, a.ID)
		require.NoError(t, err)
	}
	e.clock.Advance(11 * time.Minute)

	until, n, err := e.lockout.RegisterFailure(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Nil(t, until)
}

func TestApplyLock_NeverShortens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	long, err := e.lockout.ApplyLockIfThresholdExceeded(ctx, a.ID, 10, 10, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, long)

	_, err = e.lockout.ApplyLockIfThresholdExceeded(ctx, a.ID, 10, 10, time.Minute)
	require.NoError(t, err)

	stored := e.reload(t, a.ID).LockedUntil
	require.NotNil(t, stored)
	assert.True(t, stored.Equal(*long))
}

func TestApplyLock_BelowThreshold(t *testing.T) {
	e := newEnv(t)
	a := e.seed(t, "a@x.com", "pw1secret")

	until, err := e.lockout.ApplyLockIfThresholdExceeded(context.Background(), a.ID, 9, 10, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, until)
	assert.Nil(t, e.reload(t, a.ID).LockedUntil)
}

func TestRecordAndCount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	require.NoError(t, e.lockout.RecordFailure(ctx, a.ID))
	e.clock.Advance(5 * time.Minute)
	require.NoError(t, e.lockout.RecordFailure(ctx, a.ID))

	n, err := e.lockout.CountRecentFailures(ctx, a.ID, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = e.lockout.CountRecentFailures(ctx, a.ID, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClear_RemovesFailuresAndLock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.seed(t, "a@x.com", "pw1secret")

	for i := 0; i < 10; i++ {
		_, _, err := e.lockout.RegisterFailure(ctx, a.ID)
		require.NoError(t, err)
	}
	require.NotNil(t, e.reload(t, a.ID).LockedUntil)

	require.NoError(t, e.lockout.Clear(ctx, a.ID))
	assert.Nil(t, e.reload(t, a.ID).LockedUntil)
	assert.Zero(t, e.failureCount(t, a.ID))
}

func TestIsLockedAndLockExpired(t *testing.T) {
	e := newEnv(t)
	now := e.clock.Now()
	past, future := now.Add(-time.Second), now.Add(time.Second)

	tests := []struct {
		name    string
		until   *time.Time
		locked  bool
		expired bool
	}{
		{"no lock", nil, false, false},
		{"future", &future, true, false},
		{"past", &past, false, true},
		{"ends now", &now, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &models.Account{LockedUntil: tt.until}
			assert.Equal(t, tt.locked, e.lockout.IsLocked(a))
			assert.Equal(t, tt.expired, e.lockout.LockExpired(a))
		})
	}
}

func TestRegisterFailure_PersistenceError(t *testing.T) {
	e := newEnv(t)
	a := e.seed(t, "a@x.com", "pw1secret")
	e.withRepos(t, &brokenRepos{RepositoryManager: e.repos, failures: true})

	_, _, err := e.lockout.RegisterFailure(context.Background(), a.ID)
	assert.ErrorIs(t, err, common.ErrPersistence)
	assert.ErrorIs(t, err, errDB)
	assert.Nil(t, e.reload(t, a.ID).LockedUntil)
}
