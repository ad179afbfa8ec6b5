package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/aegis/pkg/canonicalize"
)

var (
	// ErrChainBroken reports hash-chain corruption during Verify.
	ErrChainBroken = errors.New("audit chain is broken")
)

// Entry wraps a Record with its position in the hash chain. Entries are
// immutable once appended.
type Entry struct {
	EntryID      string    `json:"entry_id"`
	Sequence     uint64    `json:"sequence"`
	AppendedAt   time.Time `json:"appended_at"`
	Record       Record    `json:"record"`
	PreviousHash string    `json:"previous_hash"`
	EntryHash    string    `json:"entry_hash"`
}

// Store is an append-only, hash-chained in-memory audit log. It
// implements the gate's Recorder contract and can fan entries out to
// persistence backends through handlers.
type Store struct {
	mu        sync.RWMutex
	entries   []*Entry
	sequence  uint64
	chainHead string
	handlers  []EntryHandler
	clock     func() time.Time
}

// EntryHandler observes appended entries (e.g. to mirror them into
// SQLite or Postgres). Handlers run synchronously under the append.
type EntryHandler func(entry *Entry)

// NewStore creates an empty chained store.
func NewStore() *Store {
	return &Store{
		chainHead: "genesis",
		clock:     time.Now,
	}
}

// WithClock overrides the clock for tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// OnAppend registers a handler for future appends.
func (s *Store) OnAppend(h EntryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Record implements the gate's Recorder contract.
func (s *Store) Record(_ context.Context, rec Record) error {
	_, err := s.Append(rec)
	return err
}

// Append adds a record to the chain and returns the entry.
func (s *Store) Append(rec Record) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	entry := &Entry{
		EntryID:      uuid.New().String(),
		Sequence:     s.sequence,
		AppendedAt:   s.clock().UTC(),
		Record:       rec,
		PreviousHash: s.chainHead,
	}
	hash, err := entryHash(entry)
	if err != nil {
		s.sequence--
		return nil, fmt.Errorf("hash entry: %w", err)
	}
	entry.EntryHash = hash
	s.chainHead = hash
	s.entries = append(s.entries, entry)

	for _, h := range s.handlers {
		h(entry)
	}
	return entry, nil
}

// Verify walks the chain and confirms every link.
func (s *Store) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prev := "genesis"
	for i, e := range s.entries {
		if e.PreviousHash != prev {
			return fmt.Errorf("%w: entry %d previous-hash mismatch", ErrChainBroken, i)
		}
		recomputed, err := entryHash(e)
		if err != nil {
			return fmt.Errorf("rehash entry %d: %w", i, err)
		}
		if recomputed != e.EntryHash {
			return fmt.Errorf("%w: entry %d content mutated", ErrChainBroken, i)
		}
		prev = e.EntryHash
	}
	return nil
}

// List returns up to limit most recent entries, newest first. A
// non-positive limit returns everything.
func (s *Store) List(limit int) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// entryHash hashes the entry minus its own EntryHash field, bound to
// the previous hash for chaining.
func entryHash(e *Entry) (string, error) {
	hashable := struct {
		EntryID      string    `json:"entry_id"`
		Sequence     uint64    `json:"sequence"`
		AppendedAt   time.Time `json:"appended_at"`
		Record       Record    `json:"record"`
		PreviousHash string    `json:"previous_hash"`
	}{e.EntryID, e.Sequence, e.AppendedAt, e.Record, e.PreviousHash}

	h, err := canonicalize.CanonicalHash(hashable)
	if err != nil {
		return "", err
	}
	return "sha256:" + h, nil
}
