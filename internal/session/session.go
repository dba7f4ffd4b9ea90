// Package session stores per-browser state in redis, keyed by an opaque
// identifier carried in a cookie. A record is authenticated only when the
// full OAuth credential pair is present; there is no partial-auth state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// ErrStoreUnavailable wraps redis failures. Session state backs every
// authenticated flow, so there is no degraded session-less mode.
var ErrStoreUnavailable = errors.New("session store unavailable")

// Record is one browser's state. During the OAuth handshake the token pair
// temporarily holds the request token; after the callback exchange it holds
// the long-lived access token.
type Record struct {
	OAuthToken       string `json:"oauth_token,omitempty"`
	OAuthTokenSecret string `json:"oauth_token_secret,omitempty"`
	UserNSID         string `json:"user_nsid,omitempty"`
	UserName         string `json:"user_name,omitempty"`
}

// Authenticated reports whether the record carries a complete credential pair.
func (r Record) Authenticated() bool {
	return r.OAuthToken != "" && r.OAuthTokenSecret != ""
}

// Manager owns all session reads and writes. Handlers never touch the
// store directly; every mutation goes through Mutate so the TTL refresh
// happens in exactly one place.
type Manager struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewManager creates a session manager backed by redis.
func NewManager(client goredis.UniversalClient, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

// Resolve maps an inbound cookie value to a session identifier and record.
// An absent cookie yields a fresh identifier with an empty record. A store
// miss keeps the presented identifier so a later write still lands under
// the cookie the browser already holds.
func (m *Manager) Resolve(ctx context.Context, cookieValue string) (string, Record, error) {
	if cookieValue == "" {
		return NewID(), Record{}, nil
	}
	rec, err := m.Get(ctx, cookieValue)
	if err != nil {
		return "", Record{}, err
	}
	return cookieValue, rec, nil
}

// Get fetches the record for an identifier. A miss returns a zero Record.
// Reads never refresh the TTL.
func (m *Manager) Get(ctx context.Context, sessionID string) (Record, error) {
	val, err := m.client.Get(ctx, key(sessionID)).Result()
	if err == goredis.Nil {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		// Corrupt record; treat as anonymous rather than failing the request.
		return Record{}, nil
	}
	return rec, nil
}

// Mutate applies fn to the current record and writes it back with a fresh
// TTL. This is the only write path for session state.
func (m *Manager) Mutate(ctx context.Context, sessionID string, fn func(*Record)) (Record, error) {
	rec, err := m.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}

	fn(&rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("session: marshal: %w", err)
	}
	if err := m.client.Set(ctx, key(sessionID), data, m.ttl).Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Destroy removes the session record. The cookie value may live on in the
// browser; a later Resolve for the same identifier sees an empty record.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	if err := m.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
