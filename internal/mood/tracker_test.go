package mood

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestTracker_AverageIsMeanOfWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := NewTracker(ctx, &MemoryStore{})

	var all []float64
	for i := range 25 {
		s := math.Sin(float64(i)) // deterministic values in [-1, 1]
		all = append(all, s)
		r, err := tr.Record(ctx, "ch", s)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		start := max(0, len(all)-DefaultWindow)
		want := mean(all[start:])
		if math.Abs(r.Average-want) > 1e-12 {
			t.Fatalf("after %d scores: average = %f, want %f", i+1, r.Average, want)
		}
		if got := len(tr.Scores("ch")); got > DefaultWindow {
			t.Fatalf("window length = %d", got)
		}
	}
	if diff := cmp.Diff(all[len(all)-DefaultWindow:], tr.Scores("ch")); diff != "" {
		t.Errorf("retained scores (-want +got):\n%s", diff)
	}
}

func TestTracker_ClampsAndCategorises(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := NewTracker(ctx, &MemoryStore{}, WithWindow(2))

	tests := []struct {
		score   float64
		wantAvg float64
		wantCat Category
	}{
		{score: 5, wantAvg: 1, wantCat: Positive},
		{score: -5, wantAvg: 0, wantCat: Neutral},
		{score: -0.5, wantAvg: -0.75, wantCat: Negative},
		{score: math.NaN(), wantAvg: -0.25, wantCat: Negative},
		{score: 0.4, wantAvg: 0.2, wantCat: Neutral}, // threshold is exclusive
	}
	for i, tt := range tests {
		r, err := tr.Record(ctx, "ch", tt.score)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if math.Abs(r.Average-tt.wantAvg) > 1e-12 || r.Category != tt.wantCat {
			t.Errorf("step %d: got %+v, want avg %v cat %v", i, r, tt.wantAvg, tt.wantCat)
		}
	}
}

func TestTracker_UnseenChannelIsNeutral(t *testing.T) {
	t.Parallel()

	tr := NewTracker(context.Background(), &MemoryStore{})
	r := tr.Current("nope")
	if r.Category != Neutral || r.Average != 0 || r.Samples != 0 {
		t.Errorf("Current(unseen) = %+v", r)
	}
}

func TestTracker_FailedWriteDropsUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &MemoryStore{}
	tr := NewTracker(ctx, store)
	if _, err := tr.Record(ctx, "ch", 0.5); err != nil {
		t.Fatal(err)
	}

	store.Err = errors.New("disk full")
	if _, err := tr.Record(ctx, "ch", -1); err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff([]float64{0.5}, tr.Scores("ch")); diff != "" {
		t.Errorf("in-memory state changed after failed write (-want +got):\n%s", diff)
	}
}

func TestTracker_PersistsAndReloads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "channel_mood.json")

	tr := NewTracker(ctx, NewFileStore(path))
	for _, s := range []float64{0.1, 0.2, 0.3} {
		if _, err := tr.Record(ctx, "a", s); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := tr.Record(ctx, "b", -0.9); err != nil {
		t.Fatal(err)
	}

	reloaded := NewTracker(ctx, NewFileStore(path))
	if diff := cmp.Diff(tr.Current("a"), reloaded.Current("a"), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("channel a after reload (-want +got):\n%s", diff)
	}
	if got := reloaded.Current("b").Category; got != Negative {
		t.Errorf("channel b category = %v", got)
	}
}

func TestTracker_LoadRecomputesAndTrims(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "m.json")
	_ = os.WriteFile(path, []byte(`{"c": {"scores": [1, 1, 1, -1], "average": 0.99}}`), 0o644)

	tr := NewTracker(context.Background(), NewFileStore(path), WithWindow(2))
	r := tr.Current("c")
	if r.Average != 0 || r.Samples != 2 {
		t.Errorf("Current = %+v, want average 0 from last two scores", r)
	}
}

func TestTracker_CorruptFileStartsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "m.json")
	_ = os.WriteFile(path, []byte(`{{{`), 0o644)

	tr := NewTracker(context.Background(), NewFileStore(path))
	if r := tr.Current("x"); r.Samples != 0 {
		t.Errorf("Current = %+v", r)
	}
	if _, err := tr.Record(context.Background(), "x", 0.3); err != nil {
		t.Errorf("Record after corrupt load: %v", err)
	}
}

func TestTracker_ConcurrentRecordsAreNotLost(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := NewTracker(ctx, &MemoryStore{}, WithWindow(100))
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() { defer wg.Done(); _, _ = tr.Record(ctx, "same", 0.1) }()
		go func() { defer wg.Done(); _, _ = tr.Record(ctx, "other", -0.1) }()
	}
	wg.Wait()

	if got := len(tr.Scores("same")); got != 50 {
		t.Errorf("same: %d scores, want 50", got)
	}
	if got := len(tr.Scores("other")); got != 50 {
		t.Errorf("other: %d scores, want 50", got)
	}
}

func TestTracker_Channels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := NewTracker(ctx, &MemoryStore{})
	for _, ch := range []string{"zeta", "alpha", "zeta"} {
		if _, err := tr.Record(ctx, ch, 0.1); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if diff := cmp.Diff([]string{"alpha", "zeta"}, tr.Channels()); diff != "" {
		t.Errorf("Channels (-want +got):\n%s", diff)
	}
}

// blockingStore parks SaveMoods until release is closed.
type blockingStore struct {
	MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) SaveMoods(ctx context.Context, moods map[string]Record) error {
	close(s.entered)
	<-s.release
	return s.MemoryStore.SaveMoods(ctx, moods)
}

func TestTracker_ReadsDoNotWaitForSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	tr := NewTracker(ctx, store)

	recorded := make(chan error, 1)
	go func() {
		_, err := tr.Record(ctx, "A", 0.9)
		recorded <- err
	}()
	<-store.entered

	read := make(chan Reading, 1)
	go func() { read <- tr.Current("B") }()
	select {
	case r := <-read:
		if r.Samples != 0 {
			t.Errorf("Current(B) = %+v, want unseen", r)
		}
	case <-time.After(time.Second):
		t.Fatal("Current(B) blocked while channel A was being saved")
	}
	if r := tr.Current("A"); r.Samples != 0 {
		t.Errorf("Current(A) = %+v before its save finished, want uncommitted", r)
	}

	close(store.release)
	if err := <-recorded; err != nil {
		t.Fatalf("Record: %v", err)
	}
	if r := tr.Current("A"); r.Samples != 1 || r.Average != 0.9 {
		t.Errorf("Current(A) = %+v after save", r)
	}
}
