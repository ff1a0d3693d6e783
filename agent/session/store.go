// Package session holds per-conversation scratch state shared between the
// tool calls of one turn.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// Bag is the key/value state of one session. It is only handed out while the
// session lock is held.
type Bag map[string]any

type Config struct {
	MaxEntries int           `envconfig:"MAX_ENTRIES" split_words:"true" default:"10000"`
	IdleTTL    time.Duration `envconfig:"IDLE_TTL" split_words:"true" default:"0"`
}

// StoreOption customizes Store.
type StoreOption func(*Store)

// WithMaxEntries caps the number of live sessions. The least recently used
// session is evicted first. Zero means unbounded.
func WithMaxEntries(n int) StoreOption {
	return func(s *Store) {
		if n >= 0 {
			s.maxEntries = n
		}
	}
}

// WithIdleTTL evicts sessions untouched for ttl. Zero disables expiry.
func WithIdleTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl >= 0 {
			s.idleTTL = ttl
		}
	}
}

type bucket struct {
	mu     sync.Mutex
	values Bag
}

// Store maps session ids to isolated bags. Operations on one session are
// mutually exclusive; different sessions never share a lock beyond the short
// lookup in the index.
type Store struct {
	maxEntries int
	idleTTL    time.Duration

	mu    sync.Mutex
	index *expirable.LRU[string, *bucket]
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.index = expirable.NewLRU[string, *bucket](s.maxEntries, func(id string, _ *bucket) {
		log.Debug().Str("session_id", id).Msg("session evicted")
	}, s.idleTTL)
	return s
}

func NewStoreFromConfig(cfg Config) *Store {
	return NewStore(WithMaxEntries(cfg.MaxEntries), WithIdleTTL(cfg.IdleTTL))
}

// Bind makes sure the session has a bag and marks it as recently used.
func (s *Store) Bind(sessionID string) {
	s.lookup(sessionID, true)
}

func (s *Store) Set(sessionID, key string, value any) {
	b := s.lookup(sessionID, true)
	if b == nil {
		return
	}
	b.mu.Lock()
	b.values[key] = value
	b.mu.Unlock()
}

func (s *Store) Get(sessionID, key string) (any, bool) {
	b := s.lookup(sessionID, false)
	if b == nil {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

func (s *Store) Clear(sessionID, key string) {
	b := s.lookup(sessionID, false)
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.values, key)
	b.mu.Unlock()
}

// Update runs fn with exclusive access to the session bag. Changes made by
// fn are kept even when it returns an error. An empty session id gets a
// throwaway bag, so reads see nothing and writes are dropped.
func (s *Store) Update(sessionID string, fn func(Bag) error) error {
	b := s.lookup(sessionID, true)
	if b == nil {
		return fn(Bag{})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b.values)
}

// Snapshot returns a shallow copy of the session bag.
func (s *Store) Snapshot(sessionID string) Bag {
	out := Bag{}
	b := s.lookup(sessionID, false)
	if b == nil {
		return out
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Restore replaces the session bag with a copy of values.
func (s *Store) Restore(sessionID string, values Bag) {
	b := s.lookup(sessionID, true)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values = make(Bag, len(values))
	for k, v := range values {
		b.values[k] = v
	}
}

// Reset drops the whole session.
func (s *Store) Reset(sessionID string) {
	if strings.TrimSpace(sessionID) == "" {
		return
	}
	s.mu.Lock()
	s.index.Remove(sessionID)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	return s.index.Len()
}

func (s *Store) lookup(sessionID string, create bool) *bucket {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.index.Get(sessionID); ok {
		// re-adding refreshes the idle deadline
		s.index.Add(sessionID, b)
		return b
	}
	if !create {
		return nil
	}
	b := &bucket{values: Bag{}}
	s.index.Add(sessionID, b)
	return b
}
