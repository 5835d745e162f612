package facts

import (
	"math"
	"slices"
)

// DefaultTopK is the number of notes returned by ranking when no limit is
// configured.
const DefaultTopK = 3

// Scored is a note with its similarity to the query.
type Scored struct {
	Note  Note
	Score float64
}

// RankScored scores notes against query by cosine similarity and returns the
// best topK, highest first. Notes with equal scores keep their original
// order. Notes without an embedding, with a zero-norm embedding or with a
// length different from query are left out. A nil or zero-norm query ranks
// nothing.
func RankScored(query []float32, notes []Note, topK int) []Scored {
	if topK <= 0 || len(query) == 0 {
		return nil
	}
	qq := dot(query, query)
	if qq == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(notes))
	for _, n := range notes {
		if len(n.Embedding) != len(query) {
			continue
		}
		nn := dot(n.Embedding, n.Embedding)
		if nn == 0 {
			continue
		}
		scored = append(scored, Scored{Note: n, Score: cosine(dot(query, n.Embedding), qq, nn)})
	}

	slices.SortStableFunc(scored, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Rank is RankScored returning only the note texts.
func Rank(query []float32, notes []Note, topK int) []string {
	scored := RankScored(query, notes, topK)
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.Note.Text
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is
// zero-norm or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	aa, bb := dot(a, a), dot(b, b)
	if aa == 0 || bb == 0 {
		return 0
	}
	return cosine(dot(a, b), aa, bb)
}

// cosine divides by a single square root so that parallel vectors score
// exactly 1 and tie with each other.
func cosine(ab, aa, bb float64) float64 {
	return ab / math.Sqrt(aa*bb)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
