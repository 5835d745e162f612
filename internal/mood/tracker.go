package mood

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/MrWong99/glyphchat/internal/keylock"
)

// Tracker keeps the most recent sentiment scores of every channel.
//
// Updates to one channel are serialised with a keyed lock. Writes of the
// shared file are serialised with saveMu; reads never wait for a write.
// A record is committed in memory only after it was persisted, so a failed
// write drops the update and leaves both memory and file unchanged.
//
// All methods are safe for concurrent use.
type Tracker struct {
	store    Store
	window   int
	positive float64
	negative float64

	locks  keylock.Map
	saveMu sync.Mutex

	mu    sync.RWMutex
	moods map[string]Record
}

// Option configures a [Tracker].
type Option func(*Tracker)

// WithWindow sets how many recent scores are kept per channel.
func WithWindow(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.window = n
		}
	}
}

// WithThresholds sets the averages above which a channel is positive and
// below which it is negative.
func WithThresholds(positive, negative float64) Option {
	return func(t *Tracker) {
		t.positive = positive
		t.negative = negative
	}
}

// NewTracker loads persisted records from store and returns a ready
// [Tracker]. Unreadable state is logged and replaced by an empty one.
// Averages are recomputed from the stored scores, trimmed to the window.
func NewTracker(ctx context.Context, store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		window:   DefaultWindow,
		positive: DefaultPositiveThreshold,
		negative: DefaultNegativeThreshold,
	}
	for _, o := range opts {
		o(t)
	}

	moods, err := store.LoadMoods(ctx)
	if err != nil {
		slog.WarnContext(ctx, "mood: persisted moods unreadable, starting empty", "err", err)
	}
	t.moods = make(map[string]Record, len(moods))
	for ch, r := range moods {
		scores := make([]float64, 0, len(r.Scores))
		for _, s := range r.Scores {
			scores = append(scores, clamp(s))
		}
		if over := len(scores) - t.window; over > 0 {
			scores = scores[over:]
		}
		t.moods[ch] = Record{Scores: scores, Average: mean(scores)}
	}
	return t
}

// Record adds score (clamped to [-1, 1]) to channelID's window and
// persists the result before committing it.
func (t *Tracker) Record(ctx context.Context, channelID string, score float64) (Reading, error) {
	unlock := t.locks.Lock(channelID)
	defer unlock()

	t.mu.RLock()
	cur := t.moods[channelID]
	t.mu.RUnlock()

	scores := make([]float64, 0, len(cur.Scores)+1)
	scores = append(scores, cur.Scores...)
	scores = append(scores, clamp(score))
	if over := len(scores) - t.window; over > 0 {
		scores = scores[over:]
	}
	next := Record{Scores: scores, Average: mean(scores)}

	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.RLock()
	snapshot := cloneMoods(t.moods)
	t.mu.RUnlock()
	snapshot[channelID] = next
	if err := t.store.SaveMoods(ctx, snapshot); err != nil {
		return t.reading(cur), fmt.Errorf("mood: record %s: %w", channelID, err)
	}

	t.mu.Lock()
	t.moods[channelID] = next
	t.mu.Unlock()
	return t.reading(next), nil
}

// Current returns channelID's mood. Unseen channels are neutral at 0.
func (t *Tracker) Current(channelID string) Reading {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reading(t.moods[channelID])
}

// Channels returns the IDs of every channel with a recorded mood, sorted.
func (t *Tracker) Channels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.moods))
	for id := range t.moods {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Scores returns a copy of channelID's retained scores, oldest first.
func (t *Tracker) Scores(channelID string) []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]float64(nil), t.moods[channelID].Scores...)
}

// Categorise maps an average to a [Category] using t's thresholds.
func (t *Tracker) Categorise(avg float64) Category {
	switch {
	case avg > t.positive:
		return Positive
	case avg < t.negative:
		return Negative
	default:
		return Neutral
	}
}

func (t *Tracker) reading(r Record) Reading {
	return Reading{Category: t.Categorise(r.Average), Average: r.Average, Samples: len(r.Scores)}
}
