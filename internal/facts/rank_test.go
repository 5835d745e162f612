package facts

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRank(t *testing.T) {
	t.Parallel()

	notes := []Note{
		{Text: "no embedding"},
		{Text: "orthogonal", Embedding: []float32{0, 1}},
		{Text: "exact", Embedding: []float32{1, 0}},
		{Text: "zero norm", Embedding: []float32{0, 0}},
		{Text: "close", Embedding: []float32{0.9, 0.1}},
		{Text: "wrong dims", Embedding: []float32{1, 0, 0}},
		{Text: "opposite", Embedding: []float32{-1, 0}},
	}

	tests := []struct {
		name  string
		query []float32
		notes []Note
		topK  int
		want  []string
	}{
		{name: "top three", query: []float32{1, 0}, notes: notes, topK: 3, want: []string{"exact", "close", "orthogonal"}},
		{name: "all eligible", query: []float32{1, 0}, notes: notes, topK: 10, want: []string{"exact", "close", "orthogonal", "opposite"}},
		{name: "nil query", query: nil, notes: notes, topK: 3, want: []string{}},
		{name: "zero query", query: []float32{0, 0}, notes: notes, topK: 3, want: []string{}},
		{name: "empty notes", query: []float32{1, 0}, notes: nil, topK: 3, want: []string{}},
		{name: "zero k", query: []float32{1, 0}, notes: notes, topK: 0, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, Rank(tt.query, tt.notes, tt.topK)); diff != "" {
				t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRank_StableTies(t *testing.T) {
	t.Parallel()

	notes := []Note{
		{Text: "first", Embedding: []float32{1, 1}},
		{Text: "second", Embedding: []float32{2, 2}},
		{Text: "third", Embedding: []float32{3, 3}},
	}
	got := Rank([]float32{1, 1}, notes, 3)
	if diff := cmp.Diff([]string{"first", "second", "third"}, got); diff != "" {
		t.Errorf("ties reordered (-want +got):\n%s", diff)
	}
}

func TestRankScored_NonIncreasing(t *testing.T) {
	t.Parallel()

	notes := make([]Note, 0, 20)
	for i := range 20 {
		a := float64(i) * math.Pi / 20
		notes = append(notes, Note{Text: "n", Embedding: []float32{float32(math.Cos(a)), float32(math.Sin(a))}})
	}
	got := RankScored([]float32{0.3, 0.7}, notes, 5)
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("score[%d]=%f > score[%d]=%f", i, got[i].Score, i-1, got[i-1].Score)
		}
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{0, 0}, []float32{1, 0}, 0},
		{[]float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cosine(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
		}
	}
}
