// Package challenges implements the registry of pending ceremony challenges.
//
// A challenge is issued when ceremony options are generated and must be
// presented back exactly once: consuming it removes it whether or not the
// presented bytes match. Entries are keyed by (identity, purpose), so at most
// one ceremony per purpose can be in flight for an identity at a time.
package challenges

import (
	"context"
	"crypto/subtle"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Purpose distinguishes the two ceremony kinds a challenge can be bound to.
type Purpose string

const (
	PurposeRegistration   Purpose = "registration"
	PurposeAuthentication Purpose = "authentication"
)

var (
	// ErrNotFound means no live challenge exists for the key: never issued,
	// already consumed, or swept after expiry.
	ErrNotFound = errors.New("challenge not found")

	// ErrExpired means the challenge existed but outlived its TTL.
	ErrExpired = errors.New("challenge expired")

	// ErrMismatch means the presented bytes differ from the stored challenge.
	// The entry is removed regardless.
	ErrMismatch = errors.New("challenge mismatch")
)

// DefaultTTL bounds how long an issued challenge stays valid.
const DefaultTTL = 5 * time.Minute

const shardCount = 16

type entry struct {
	session  *webauthn.SessionData
	issuedAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]entry
}

// Registry is a sharded in-memory challenge store. It is injected into the
// credential authority rather than held as process-global state, so tests
// and multiple server instances can each own their own partition.
type Registry struct {
	shards        [shardCount]*shard
	ttl           time.Duration
	sweepInterval time.Duration
}

// NewRegistry creates a registry with the given TTL. A non-positive ttl
// falls back to DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{ttl: ttl, sweepInterval: ttl / 5}
	for i := range r.shards {
		r.shards[i] = &shard{entries: make(map[string]entry)}
	}
	return r
}

// TTL returns the configured challenge lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

func (r *Registry) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return r.shards[h.Sum32()%shardCount]
}

func key(identityID string, purpose Purpose) string {
	return identityID + "/" + string(purpose)
}

// Issue stores the pending ceremony state for (identity, purpose) and
// returns the challenge bytes the caller must later present.
//
// Any live challenge for the same key is overwritten: last request wins.
// A second concurrent "begin" call therefore silently cancels the first
// in-flight ceremony for that identity and purpose.
func (r *Registry) Issue(identityID string, purpose Purpose, session *webauthn.SessionData) []byte {
	s := r.shardFor(key(identityID, purpose))
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key(identityID, purpose)] = entry{session: session, issuedAt: time.Now()}
	return []byte(session.Challenge)
}

// Consume removes the challenge for (identity, purpose) and returns the
// stored ceremony state if the candidate byte-equals the issued challenge
// and the entry has not expired.
//
// The entry is removed on every outcome, success or failure: a challenge can
// be presented at most once.
func (r *Registry) Consume(identityID string, purpose Purpose, candidate []byte) (*webauthn.SessionData, error) {
	k := key(identityID, purpose)
	s := r.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[k]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, k)

	if time.Since(e.issuedAt) > r.ttl {
		return nil, ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(e.session.Challenge), candidate) != 1 {
		return nil, ErrMismatch
	}
	return e.session, nil
}

// Sweep removes expired entries and reports how many were evicted. It bounds
// memory for challenges that were issued but never presented.
func (r *Registry) Sweep() int {
	removed := 0
	now := time.Now()
	for _, s := range r.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if now.Sub(e.issuedAt) > r.ttl {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Run sweeps expired challenges periodically until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len reports the number of live entries across all shards.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}
