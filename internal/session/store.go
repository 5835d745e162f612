// Package session holds the short-term conversation memory of the chat agent:
// a bounded, per-channel rolling window of recent turns.
package session

import (
	"sync"

	"github.com/MrWong99/glyphchat/internal/keylock"
)

// DefaultCapacity is the number of turns retained per channel when no
// capacity is configured.
const DefaultCapacity = 6

// Turn is a single entry in a channel's rolling history.
type Turn struct {
	// Speaker is the display name of the author, or the agent's self label.
	Speaker string

	// Text is the message content.
	Text string
}

// Store is a bounded per-channel history. Each channel holds at most
// capacity turns; appending beyond that evicts from the oldest end.
//
// Appends to the same channel are serialised through a keyed lock so that
// the two turns of one exchange are never interleaved with another
// exchange's turns. Different channels never contend.
//
// All methods are safe for concurrent use.
type Store struct {
	capacity int
	locks    keylock.Map

	mu       sync.RWMutex
	channels map[string][]Turn
}

// Option configures a [Store].
type Option func(*Store)

// WithCapacity sets the per-channel turn capacity. Non-positive values are
// ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewStore returns an empty [Store].
func NewStore(opts ...Option) *Store {
	s := &Store{
		capacity: DefaultCapacity,
		channels: make(map[string][]Turn),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Capacity returns the per-channel turn limit.
func (s *Store) Capacity() int { return s.capacity }

// Append adds turns to the tail of channelID's history, in order, as one
// atomic step. Oldest turns are evicted while the history exceeds capacity.
func (s *Store) Append(channelID string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	unlock := s.locks.Lock(channelID)
	defer unlock()

	s.mu.RLock()
	cur := s.channels[channelID]
	s.mu.RUnlock()

	next := make([]Turn, 0, len(cur)+len(turns))
	next = append(next, cur...)
	next = append(next, turns...)
	if over := len(next) - s.capacity; over > 0 {
		next = next[over:]
	}

	s.mu.Lock()
	s.channels[channelID] = next
	s.mu.Unlock()
}

// Snapshot returns a copy of channelID's history, oldest first. An unseen
// channel yields an empty slice.
func (s *Store) Snapshot(channelID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.channels[channelID]
	out := make([]Turn, len(cur))
	copy(out, cur)
	return out
}
