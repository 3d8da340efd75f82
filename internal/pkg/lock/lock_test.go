package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T) (*RedisLocker, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, "payroll:")
	locker.newToken = func() string { return "token-1" }
	return locker, mock
}

func TestRedisLocker_Acquire_Success(t *testing.T) {
	locker, mock := newTestRedisLocker(t)
	ctx := context.Background()

	mock.ExpectSetNX("payroll:run:2024-03", "token-1", time.Minute).SetVal(true)
	mock.ExpectEval(releaseScript, []string{"payroll:run:2024-03"}, "token-1").SetVal(int64(1))

	lease, err := locker.Acquire(ctx, "run:2024-03", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lease)

	assert.NoError(t, lease.Release(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Refresh(t *testing.T) {
	locker, mock := newTestRedisLocker(t)
	ctx := context.Background()

	mock.ExpectSetNX("payroll:run:2024-03", "token-1", time.Minute).SetVal(true)
	mock.ExpectEval(refreshScript, []string{"payroll:run:2024-03"}, "token-1", int64(120000)).SetVal(int64(1))
	mock.ExpectEval(refreshScript, []string{"payroll:run:2024-03"}, "token-1", int64(120000)).SetVal(int64(0))

	lease, err := locker.Acquire(ctx, "run:2024-03", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, lease.Refresh(ctx, 2*time.Minute))
	assert.ErrorIs(t, lease.Refresh(ctx, 2*time.Minute), ErrLost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Acquire_AlreadyHeld(t *testing.T) {
	locker, mock := newTestRedisLocker(t)

	mock.ExpectSetNX("payroll:run:2024-03", "token-1", time.Minute).SetVal(false)

	lease, err := locker.Acquire(context.Background(), "run:2024-03", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, lease)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Acquire_RedisError(t *testing.T) {
	locker, mock := newTestRedisLocker(t)

	mock.ExpectSetNX("payroll:run:2024-03", "token-1", time.Minute).SetErr(errors.New("connection refused"))

	_, err := locker.Acquire(context.Background(), "run:2024-03", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLocalLocker_AcquireRelease(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "run:2024-03", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "run:2024-03", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	_, err = locker.Acquire(ctx, "run:2024-04", time.Minute)
	assert.NoError(t, err, "other keys are independent")

	require.NoError(t, lease.Release(ctx))
	_, err = locker.Acquire(ctx, "run:2024-03", time.Minute)
	assert.NoError(t, err)
}

func TestLocalLocker_Expiry(t *testing.T) {
	locker := NewLocalLocker()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "run:2024-03", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = locker.Acquire(ctx, "run:2024-03", time.Minute)
	require.NoError(t, err, "expired lock can be taken over")

	// releasing the stale handle must not free the new owner's lock
	require.NoError(t, stale.Release(ctx))
	_, err = locker.Acquire(ctx, "run:2024-03", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, stale.Refresh(ctx, time.Minute), ErrLost)
}

func TestLocalLocker_RefreshKeepsLock(t *testing.T) {
	locker := NewLocalLocker()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "run:2024-03", time.Minute)
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	require.NoError(t, lease.Refresh(ctx, time.Minute))

	// past the original expiry, still inside the refreshed one
	now = now.Add(50 * time.Second)
	_, err = locker.Acquire(ctx, "run:2024-03", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
}
