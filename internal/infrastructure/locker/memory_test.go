package locker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordwatch/internal/domain"
)

func TestAcquireThenContention(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	token, err := l.Acquire(context.Background(), "submit:req-1", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = l.Acquire(context.Background(), "submit:req-1", time.Minute)
	var contention *domain.LockContentionError
	require.ErrorAs(t, err, &contention)
	assert.Equal(t, "submit:req-1", contention.Key)
}

func TestReleaseFreesKey(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	token, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, l.Release(context.Background(), "k", token))

	_, err = l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
}

func TestReleaseWithStaleTokenIgnored(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	_, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, l.Release(context.Background(), "k", "not-the-token"))

	// The lease survives a mismatched release.
	_, err = l.Acquire(context.Background(), "k", time.Minute)
	var contention *domain.LockContentionError
	require.ErrorAs(t, err, &contention)
}

func TestExpiredLeaseCanBeReclaimed(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	first, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	second, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestIndependentKeysDoNotContend(t *testing.T) {
	t.Parallel()

	l := NewMemoryLocker()
	_, err := l.Acquire(context.Background(), "submit:req-1", time.Minute)
	require.NoError(t, err)
	_, err = l.Acquire(context.Background(), "submit:req-2", time.Minute)
	require.NoError(t, err)
}
