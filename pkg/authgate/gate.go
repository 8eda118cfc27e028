// Package authgate resolves a request's role on an event from HTTP Basic
// credentials, with failure-rate limiting per (client, event, username).
// It is the single authorization entry point for the HTTP layer: handlers
// pass the event and the roles the endpoint allows, and receive a typed
// Grant by value instead of ambient request state.
package authgate

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/eventdrop/pkg/authrate"
	"github.com/dmitrymomot/eventdrop/pkg/event"
)

// Role is an access level on a single event.
type Role string

const (
	// RoleAdmin is the event's owning role: full read, write, delete and
	// configuration rights.
	RoleAdmin Role = "admin"
	// RoleGuest has upload and/or password-gated download access.
	RoleGuest Role = "guest"
)

// Credentials are the parsed Basic-Auth header values. Present is true when
// an Authorization header was sent at all; failures are only recorded for
// requests that actually presented credentials, so anonymous traffic cannot
// poison the failure counter.
type Credentials struct {
	User     string
	Password string
	Present  bool
}

// ParseBasicAuth extracts Basic-Auth credentials from the request. An
// absent or malformed header yields empty strings, never an error.
func ParseBasicAuth(r *http.Request) Credentials {
	if r.Header.Get("Authorization") == "" {
		return Credentials{}
	}
	user, password, ok := r.BasicAuth()
	if !ok {
		return Credentials{Present: true}
	}
	return Credentials{User: user, Password: password, Present: true}
}

// Grant is the authorization result handed to downstream calls.
type Grant struct {
	Role  Role
	Event *event.Event
}

// Gate composes the failure tracker with credential verification.
type Gate struct {
	tracker authrate.Tracker
	logger  *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gate backed by the given failure tracker.
func New(tracker authrate.Tracker, opts ...Option) *Gate {
	g := &Gate{
		tracker: tracker,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize evaluates the request's credentials against the roles allowed
// on the endpoint, in the order given (callers list admin before guest).
// Outcomes: blocked key returns *RateLimitedError; a request without
// credentials returns ErrNoCredentials; wrong credentials return
// ErrForbidden and count one failure. A presented username of "admin" whose
// password fails never falls through to guest evaluation, so admin-password
// guesses cannot be silently retried as guest attempts.
func (g *Gate) Authorize(r *http.Request, clientAddr string, ev *event.Event, roles ...Role) (Grant, error) {
	creds := ParseBasicAuth(r)

	if blocked, retryAfter := g.tracker.IsBlocked(clientAddr, ev.ID, creds.User); blocked {
		g.logger.Warn("auth attempt while blocked",
			slog.String("event_id", ev.ID),
			slog.String("client", clientAddr),
			slog.String("username", creds.User),
		)
		return Grant{}, &RateLimitedError{RetryAfter: retryAfter}
	}

	if !creds.Present {
		return Grant{}, ErrNoCredentials
	}

	for _, role := range roles {
		switch role {
		case RoleAdmin:
			if creds.User != string(RoleAdmin) {
				continue
			}
			if VerifyPassword(ev.Auth.AdminPasswordHash, creds.Password) {
				return Grant{Role: RoleAdmin, Event: ev}, nil
			}
			// Short-circuit: a failed admin password is never retried as a
			// guest attempt.
			return Grant{}, g.deny(clientAddr, ev.ID, creds.User)
		case RoleGuest:
			if ev.Auth.GuestPasswordHash == nil || creds.User != string(RoleGuest) {
				continue
			}
			if VerifyPassword(*ev.Auth.GuestPasswordHash, creds.Password) {
				return Grant{Role: RoleGuest, Event: ev}, nil
			}
		}
	}

	return Grant{}, g.deny(clientAddr, ev.ID, creds.User)
}

// deny records the failure and returns ErrForbidden.
func (g *Gate) deny(clientAddr, eventID, username string) error {
	g.tracker.RecordFailure(clientAddr, eventID, username)
	g.logger.Info("auth failure recorded",
		slog.String("event_id", eventID),
		slog.String("client", clientAddr),
		slog.String("username", username),
	)
	return ErrForbidden
}

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsAuthError reports whether err is one of the gate's expected outcomes.
func IsAuthError(err error) bool {
	var rl *RateLimitedError
	return errors.Is(err, ErrNoCredentials) || errors.Is(err, ErrForbidden) || errors.As(err, &rl)
}
