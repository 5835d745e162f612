package mood

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/MrWong99/glyphchat/internal/prompt"
)

// ErrNoScore is returned when a classification answer holds no usable score.
var ErrNoScore = errors.New("mood: no score in classification")

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSON   = regexp.MustCompile(`(?s)\{.*?\}`)
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is a single sentiment classification.
type Result struct {
	Emotion string
	Score   float64
}

// ParseScore extracts the classification JSON from a model answer. A fenced
// ```json block is preferred; otherwise the first {...} span is used. A
// document without a "score" key counts as 0; a score that is neither a
// number nor a numeric string is [ErrNoScore].
func ParseScore(text string) (Result, error) {
	var raw string
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else if m := bareJSON.FindString(text); m != "" {
		raw = m
	} else {
		return Result{}, ErrNoScore
	}

	var doc struct {
		Emotion string          `json:"emotion"`
		Score   json.RawMessage `json:"score"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoScore, err)
	}
	res := Result{Emotion: doc.Emotion}
	if len(doc.Score) == 0 || string(doc.Score) == "null" {
		return res, nil
	}

	var f float64
	if err := json.Unmarshal(doc.Score, &f); err == nil {
		res.Score = f
		return res, nil
	}
	var s string
	if err := json.Unmarshal(doc.Score, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			res.Score = f
			return res, nil
		}
	}
	return Result{}, fmt.Errorf("%w: score %s", ErrNoScore, doc.Score)
}

// Analyzer classifies messages with the generation service and feeds the
// scores into a [Tracker].
type Analyzer struct {
	gen     Generator
	tmpl    atomic.Pointer[prompt.Template]
	tracker *Tracker
}

// NewAnalyzer returns an [Analyzer]. tmpl must accept the user_message field.
func NewAnalyzer(gen Generator, tmpl *prompt.Template, tracker *Tracker) *Analyzer {
	a := &Analyzer{gen: gen, tracker: tracker}
	a.tmpl.Store(tmpl)
	return a
}

// SetTemplate replaces the classification template for later calls.
func (a *Analyzer) SetTemplate(tmpl *prompt.Template) { a.tmpl.Store(tmpl) }

// Analyze classifies text without recording it.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	p, err := a.tmpl.Load().Execute(prompt.Fields{prompt.FieldUserMessage: text})
	if err != nil {
		return Result{}, fmt.Errorf("mood: analyze: %w", err)
	}
	out, err := a.gen.Generate(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("mood: analyze: %w", err)
	}
	return ParseScore(out)
}

// Track classifies text and records the score for channelID. When no score
// can be extracted nothing is recorded and the error wraps [ErrNoScore].
func (a *Analyzer) Track(ctx context.Context, channelID, text string) (Reading, error) {
	res, err := a.Analyze(ctx, text)
	if err != nil {
		return a.tracker.Current(channelID), err
	}
	return a.tracker.Record(ctx, channelID, res.Score)
}

// Tracker returns the tracker scores are recorded in.
func (a *Analyzer) Tracker() *Tracker { return a.tracker }
