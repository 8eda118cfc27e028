package authgate_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventdrop/pkg/authgate"
	"github.com/dmitrymomot/eventdrop/pkg/authrate"
	"github.com/dmitrymomot/eventdrop/pkg/event"
)

const (
	adminPassword = "longpass1"
	guestPassword = "guestpass1"
	clientAddr    = "203.0.113.7"
)

func testEvent(t *testing.T, withGuest bool) *event.Event {
	t.Helper()
	adminHash, err := authgate.HashPassword(adminPassword)
	require.NoError(t, err)

	ev := &event.Event{
		ID:   "e1",
		Name: "Test",
		Settings: event.Settings{
			AllowGuestUpload: true,
		},
		Auth: event.Auth{AdminPasswordHash: adminHash},
	}
	if withGuest {
		guestHash, err := authgate.HashPassword(guestPassword)
		require.NoError(t, err)
		ev.Auth.GuestPasswordHash = &guestHash
		ev.Settings.AllowGuestDownload = true
	}
	return ev
}

func newGate(cfg authrate.Config, opts ...authrate.Option) *authgate.Gate {
	return authgate.New(authrate.NewMemoryTracker(cfg, opts...))
}

func TestParseBasicAuth(t *testing.T) {
	t.Parallel()

	t.Run("absent header", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		creds := authgate.ParseBasicAuth(r)
		assert.False(t, creds.Present)
		assert.Empty(t, creds.User)
		assert.Empty(t, creds.Password)
	})

	t.Run("valid header", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		r.SetBasicAuth("admin", "secret")
		creds := authgate.ParseBasicAuth(r)
		assert.True(t, creds.Present)
		assert.Equal(t, "admin", creds.User)
		assert.Equal(t, "secret", creds.Password)
	})

	t.Run("malformed header", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Basic not-base64!!!")
		creds := authgate.ParseBasicAuth(r)
		assert.True(t, creds.Present)
		assert.Empty(t, creds.User)
	})
}

func TestGate_Authorize(t *testing.T) {
	t.Parallel()
	cfg := authrate.Config{MaxAttempts: 5, Window: time.Minute, BlockDuration: 15 * time.Minute}

	t.Run("no credentials", func(t *testing.T) {
		t.Parallel()
		gate := newGate(cfg)
		r := httptest.NewRequest("GET", "/", nil)

		_, err := gate.Authorize(r, clientAddr, testEvent(t, false), authgate.RoleAdmin, authgate.RoleGuest)
		assert.ErrorIs(t, err, authgate.ErrNoCredentials)
	})

	t.Run("admin success", func(t *testing.T) {
		t.Parallel()
		gate := newGate(cfg)
		ev := testEvent(t, false)
		r := httptest.NewRequest("GET", "/", nil)
		r.SetBasicAuth("admin", adminPassword)

		grant, err := gate.Authorize(r, clientAddr, ev, authgate.RoleAdmin, authgate.RoleGuest)
		require.NoError(t, err)
		assert.Equal(t, authgate.RoleAdmin, grant.Role)
		assert.Same(t, ev, grant.Event)
	})

	t.Run("guest success", func(t *testing.T) {
		t.Parallel()
		gate := newGate(cfg)
		r := httptest.NewRequest("GET", "/", nil)
		r.SetBasicAuth("guest", guestPassword)

		grant, err := gate.Authorize(r, clientAddr, testEvent(t, true), authgate.RoleAdmin, authgate.RoleGuest)
		require.NoError(t, err)
		assert.Equal(t, authgate.RoleGuest, grant.Role)
	})

	t.Run("guest without configured password", func(t *testing.T) {
		t.Parallel()
		gate := newGate(cfg)
		r := httptest.NewRequest("GET", "/", nil)
		r.SetBasicAuth("guest", "x")

		_, err := gate.Authorize(r, clientAddr, testEvent(t, false), authgate.RoleAdmin, authgate.RoleGuest)
		assert.ErrorIs(t, err, authgate.ErrForbidden)
	})

	t.Run("wrong admin password short-circuits", func(t *testing.T) {
		t.Parallel()
		gate := newGate(cfg)
		ev := testEvent(t, true)
		// The guest password presented under the admin username must not be
		// evaluated as a guest attempt.
		r := httptest.NewRequest("GET", "/", nil)
		r.SetBasicAuth("admin", guestPassword)

		_, err := gate.Authorize(r, clientAddr, ev, authgate.RoleAdmin, authgate.RoleGuest)
		assert.ErrorIs(t, err, authgate.ErrForbidden)
	})

	t.Run("unknown username", func(t *testing.T) {
		t.Parallel()
		gate := newGate(cfg)
		r := httptest.NewRequest("GET", "/", nil)
		r.SetBasicAuth("bob", adminPassword)

		_, err := gate.Authorize(r, clientAddr, testEvent(t, true), authgate.RoleAdmin, authgate.RoleGuest)
		assert.ErrorIs(t, err, authgate.ErrForbidden)
	})

	t.Run("admin endpoint rejects guest", func(t *testing.T) {
		t.Parallel()
		gate := newGate(cfg)
		r := httptest.NewRequest("GET", "/", nil)
		r.SetBasicAuth("guest", guestPassword)

		_, err := gate.Authorize(r, clientAddr, testEvent(t, true), authgate.RoleAdmin)
		assert.ErrorIs(t, err, authgate.ErrForbidden)
	})
}

func TestGate_RateLimiting(t *testing.T) {
	t.Parallel()

	t.Run("blocks after max attempts even with correct password", func(t *testing.T) {
		t.Parallel()
		mock := clock.NewMock()
		gate := newGate(
			authrate.Config{MaxAttempts: 3, Window: time.Minute, BlockDuration: 15 * time.Minute},
			authrate.WithClock(mock),
		)
		ev := testEvent(t, false)

		bad := httptest.NewRequest("GET", "/", nil)
		bad.SetBasicAuth("admin", "wrong")
		for i := 0; i < 3; i++ {
			_, err := gate.Authorize(bad, clientAddr, ev, authgate.RoleAdmin)
			require.ErrorIs(t, err, authgate.ErrForbidden)
		}

		good := httptest.NewRequest("GET", "/", nil)
		good.SetBasicAuth("admin", adminPassword)
		_, err := gate.Authorize(good, clientAddr, ev, authgate.RoleAdmin)

		var rl *authgate.RateLimitedError
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, 15*60, rl.RetryAfterSeconds())

		// After the block elapses the correct password works again.
		mock.Add(15*time.Minute + time.Second)
		grant, err := gate.Authorize(good, clientAddr, ev, authgate.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, authgate.RoleAdmin, grant.Role)
	})

	t.Run("anonymous requests never poison the counter", func(t *testing.T) {
		t.Parallel()
		gate := newGate(authrate.Config{MaxAttempts: 2, Window: time.Minute, BlockDuration: time.Hour})
		ev := testEvent(t, false)

		anon := httptest.NewRequest("GET", "/", nil)
		for i := 0; i < 10; i++ {
			_, err := gate.Authorize(anon, clientAddr, ev, authgate.RoleAdmin)
			require.ErrorIs(t, err, authgate.ErrNoCredentials)
		}

		good := httptest.NewRequest("GET", "/", nil)
		good.SetBasicAuth("admin", adminPassword)
		_, err := gate.Authorize(good, clientAddr, ev, authgate.RoleAdmin)
		assert.NoError(t, err)
	})
}

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := authgate.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, authgate.VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, authgate.VerifyPassword(hash, "wrong"))
	assert.False(t, authgate.VerifyPassword("not a hash", "anything"))
}

func TestIsAuthError(t *testing.T) {
	t.Parallel()

	assert.True(t, authgate.IsAuthError(authgate.ErrNoCredentials))
	assert.True(t, authgate.IsAuthError(authgate.ErrForbidden))
	assert.True(t, authgate.IsAuthError(&authgate.RateLimitedError{RetryAfter: time.Second}))
	assert.False(t, authgate.IsAuthError(assert.AnError))
}
