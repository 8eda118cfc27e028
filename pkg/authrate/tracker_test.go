package authrate_test

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventdrop/pkg/authrate"
)

func newTracker(t *testing.T, cfg authrate.Config) (*authrate.MemoryTracker, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	return authrate.NewMemoryTracker(cfg, authrate.WithClock(mock)), mock
}

func TestMemoryTracker_BlocksAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	tracker, _ := newTracker(t, authrate.Config{
		MaxAttempts:   3,
		Window:        time.Minute,
		BlockDuration: 15 * time.Minute,
	})

	for i := 0; i < 2; i++ {
		tracker.RecordFailure("1.2.3.4", "wedding", "admin")
		blocked, _ := tracker.IsBlocked("1.2.3.4", "wedding", "admin")
		assert.False(t, blocked, "attempt %d should not block yet", i+1)
	}

	tracker.RecordFailure("1.2.3.4", "wedding", "admin")
	blocked, retryAfter := tracker.IsBlocked("1.2.3.4", "wedding", "admin")
	require.True(t, blocked)
	assert.Equal(t, 15*time.Minute, retryAfter)
}

func TestMemoryTracker_BlockExpires(t *testing.T) {
	t.Parallel()
	tracker, mock := newTracker(t, authrate.Config{
		MaxAttempts:   2,
		Window:        time.Minute,
		BlockDuration: 10 * time.Minute,
	})

	tracker.RecordFailure("1.2.3.4", "e1", "admin")
	tracker.RecordFailure("1.2.3.4", "e1", "admin")

	blocked, _ := tracker.IsBlocked("1.2.3.4", "e1", "admin")
	require.True(t, blocked)

	mock.Add(10*time.Minute + time.Second)

	blocked, retryAfter := tracker.IsBlocked("1.2.3.4", "e1", "admin")
	assert.False(t, blocked)
	assert.Zero(t, retryAfter)
}

func TestMemoryTracker_WindowResetsCount(t *testing.T) {
	t.Parallel()
	tracker, mock := newTracker(t, authrate.Config{
		MaxAttempts:   3,
		Window:        time.Minute,
		BlockDuration: 10 * time.Minute,
	})

	tracker.RecordFailure("1.2.3.4", "e1", "admin")
	tracker.RecordFailure("1.2.3.4", "e1", "admin")

	// Let the window lapse; the next failure starts a fresh count.
	mock.Add(2 * time.Minute)

	tracker.RecordFailure("1.2.3.4", "e1", "admin")
	blocked, _ := tracker.IsBlocked("1.2.3.4", "e1", "admin")
	assert.False(t, blocked, "stale failures must not count toward the block")
}

func TestMemoryTracker_LazyPrune(t *testing.T) {
	t.Parallel()
	tracker, mock := newTracker(t, authrate.Config{
		MaxAttempts:   5,
		Window:        time.Minute,
		BlockDuration: 10 * time.Minute,
	})

	tracker.RecordFailure("1.2.3.4", "e1", "guest")
	mock.Add(2 * time.Minute)

	// The stale entry is discarded on lookup; building back up to the limit
	// must take the full budget again.
	blocked, _ := tracker.IsBlocked("1.2.3.4", "e1", "guest")
	assert.False(t, blocked)

	for i := 0; i < 4; i++ {
		tracker.RecordFailure("1.2.3.4", "e1", "guest")
	}
	blocked, _ = tracker.IsBlocked("1.2.3.4", "e1", "guest")
	assert.False(t, blocked)

	tracker.RecordFailure("1.2.3.4", "e1", "guest")
	blocked, _ = tracker.IsBlocked("1.2.3.4", "e1", "guest")
	assert.True(t, blocked)
}

func TestMemoryTracker_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	tracker, _ := newTracker(t, authrate.Config{
		MaxAttempts:   2,
		Window:        time.Minute,
		BlockDuration: 10 * time.Minute,
	})

	tracker.RecordFailure("1.2.3.4", "e1", "admin")
	tracker.RecordFailure("1.2.3.4", "e1", "admin")

	blocked, _ := tracker.IsBlocked("1.2.3.4", "e1", "admin")
	require.True(t, blocked)

	for _, k := range [][3]string{
		{"5.6.7.8", "e1", "admin"},
		{"1.2.3.4", "e2", "admin"},
		{"1.2.3.4", "e1", "guest"},
	} {
		blocked, _ := tracker.IsBlocked(k[0], k[1], k[2])
		assert.False(t, blocked, "key %v must not be blocked", k)
	}
}

func TestMemoryTracker_Reset(t *testing.T) {
	t.Parallel()
	tracker, _ := newTracker(t, authrate.Config{
		MaxAttempts:   2,
		Window:        time.Minute,
		BlockDuration: 10 * time.Minute,
	})

	tracker.RecordFailure("1.2.3.4", "e1", "admin")
	tracker.RecordFailure("1.2.3.4", "e1", "admin")
	tracker.Reset("1.2.3.4", "e1", "admin")

	blocked, _ := tracker.IsBlocked("1.2.3.4", "e1", "admin")
	assert.False(t, blocked)
}

func TestMemoryTracker_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	tracker := authrate.NewMemoryTracker(authrate.Config{
		MaxAttempts:   1000,
		Window:        time.Minute,
		BlockDuration: time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tracker.RecordFailure("1.2.3.4", "e1", "admin")
				tracker.IsBlocked("1.2.3.4", "e1", "admin")
			}
		}()
	}
	wg.Wait()

	blocked, _ := tracker.IsBlocked("1.2.3.4", "e1", "admin")
	assert.True(t, blocked, "1000 failures across goroutines must reach the limit")
}
