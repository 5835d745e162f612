// Package mood tracks a rolling sentiment average per channel.
//
// Every non-command message is scored by the generation service in the
// background (see [Analyzer]); the [Tracker] keeps the most recent scores
// per channel and derives a coarse category from their mean.
package mood

import "math"

// Defaults for [Tracker] configuration.
const (
	DefaultWindow            = 10
	DefaultPositiveThreshold = 0.2
	DefaultNegativeThreshold = -0.2
)

// Category is the coarse mood derived from a channel's average.
type Category int

// Categories.
const (
	Neutral Category = iota
	Positive
	Negative
)

func (c Category) String() string {
	switch c {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// Reading is a channel's current mood.
type Reading struct {
	Category Category
	Average  float64
	Samples  int
}

// Record is the persisted state of one channel.
type Record struct {
	Scores  []float64 `json:"scores"`
	Average float64   `json:"average"`
}

// clamp limits score to [-1, 1]. NaN becomes 0.
func clamp(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return 0
	case score > 1:
		return 1
	case score < -1:
		return -1
	default:
		return score
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
