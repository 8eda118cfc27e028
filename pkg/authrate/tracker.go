// Package authrate tracks failed authentication attempts per
// (client address, event, username) key and blocks keys that exceed the
// configured attempt budget inside a rolling window. State lives in process
// memory only; entries are pruned lazily when their key is looked up again
// after the window has elapsed.
package authrate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Tracker records authentication failures and answers block queries.
type Tracker interface {
	// IsBlocked reports whether the key is currently blocked and, if so,
	// how long the caller should wait before retrying.
	IsBlocked(addr, eventID, username string) (blocked bool, retryAfter time.Duration)

	// RecordFailure counts one failed attempt for the key. Once the attempt
	// budget is exhausted inside the window the key is blocked for the
	// configured duration.
	RecordFailure(addr, eventID, username string)

	// Reset clears any state for the key.
	Reset(addr, eventID, username string)
}

// Config defines the lockout policy.
type Config struct {
	MaxAttempts   int           `env:"AUTH_RATE_LIMIT_MAX_ATTEMPTS" envDefault:"5"`
	Window        time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"1m"`
	BlockDuration time.Duration `env:"AUTH_RATE_LIMIT_BLOCK_DURATION" envDefault:"15m"`
}

type key struct {
	addr     string
	eventID  string
	username string
}

type entry struct {
	count        int
	firstAttempt time.Time
	blockedUntil time.Time
}

// MemoryTracker is the in-memory Tracker implementation. Safe for concurrent
// use; every read-modify-write on the map happens under the mutex.
type MemoryTracker struct {
	mu      sync.Mutex
	entries map[key]*entry
	cfg     Config
	clock   clock.Clock
}

// Option configures a MemoryTracker.
type Option func(*MemoryTracker)

// WithClock injects a clock, letting tests drive the lockout window
// deterministically.
func WithClock(c clock.Clock) Option {
	return func(t *MemoryTracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// NewMemoryTracker creates a tracker with the given policy. Zero or negative
// config fields fall back to the defaults.
func NewMemoryTracker(cfg Config, opts ...Option) *MemoryTracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 15 * time.Minute
	}

	t := &MemoryTracker{
		entries: make(map[key]*entry),
		cfg:     cfg,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTracker) IsBlocked(addr, eventID, username string) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{addr, eventID, username}
	e, ok := t.entries[k]
	if !ok {
		return false, 0
	}

	now := t.clock.Now()
	if now.Before(e.blockedUntil) {
		return true, e.blockedUntil.Sub(now)
	}

	// Window elapsed with no active block: the entry is stale, drop it.
	if now.Sub(e.firstAttempt) > t.cfg.Window {
		delete(t.entries, k)
	}
	return false, 0
}

func (t *MemoryTracker) RecordFailure(addr, eventID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{addr, eventID, username}
	now := t.clock.Now()

	e, ok := t.entries[k]
	if !ok || (now.Sub(e.firstAttempt) > t.cfg.Window && !now.Before(e.blockedUntil)) {
		// First failure in a fresh window.
		e = &entry{count: 0, firstAttempt: now}
		t.entries[k] = e
	}

	e.count++
	if e.count >= t.cfg.MaxAttempts {
		e.blockedUntil = now.Add(t.cfg.BlockDuration)
	}
}

func (t *MemoryTracker) Reset(addr, eventID, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key{addr, eventID, username})
}

var _ Tracker = (*MemoryTracker)(nil)
