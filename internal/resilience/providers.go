package resilience

import (
	"context"

	"github.com/MrWong99/glyphchat/pkg/provider/embeddings"
	"github.com/MrWong99/glyphchat/pkg/provider/llm"
)

// LLM is an [llm.Provider] that fails over across a [Group] of providers.
type LLM struct {
	group *Group[llm.Provider]
}

var _ llm.Provider = (*LLM)(nil)

// NewLLM wraps primary. Register fallbacks with [LLM.AddFallback].
func NewLLM(name string, primary llm.Provider, cfg BreakerConfig) *LLM {
	return &LLM{group: NewGroup(name, primary, cfg)}
}

// AddFallback registers p after every provider already present.
func (l *LLM) AddFallback(name string, p llm.Provider) { l.group.Add(name, p) }

// Group exposes the underlying group, for health reporting.
func (l *LLM) Group() *Group[llm.Provider] { return l.group }

// Complete returns the first successful completion.
func (l *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Do(ctx, l.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// ModelID reports the primary's model.
func (l *LLM) ModelID() string { return l.group.Primary().ModelID() }

// Embedder is an [embeddings.Provider] guarded by a breaker, with optional
// fallbacks. Fallbacks must produce vectors of the primary's dimension;
// vectors of another size would not compare against stored ones.
type Embedder struct {
	group *Group[embeddings.Provider]
}

var _ embeddings.Provider = (*Embedder)(nil)

// NewEmbedder wraps primary.
func NewEmbedder(name string, primary embeddings.Provider, cfg BreakerConfig) *Embedder {
	return &Embedder{group: NewGroup(name, primary, cfg)}
}

// AddFallback registers p after every provider already present.
func (e *Embedder) AddFallback(name string, p embeddings.Provider) { e.group.Add(name, p) }

// Group exposes the underlying group, for health reporting.
func (e *Embedder) Group() *Group[embeddings.Provider] { return e.group }

// Embed returns the first successful vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return Do(ctx, e.group, func(ctx context.Context, p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch returns the first successful batch.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return Do(ctx, e.group, func(ctx context.Context, p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions reports the primary's dimension.
func (e *Embedder) Dimensions() int { return e.group.Primary().Dimensions() }

// ModelID reports the primary's model.
func (e *Embedder) ModelID() string { return e.group.Primary().ModelID() }
