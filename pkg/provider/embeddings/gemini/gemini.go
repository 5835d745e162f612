// Package gemini provides an embeddings provider backed by the Google Gemini
// API through google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/MrWong99/glyphchat/pkg/provider/embeddings"
)

// DefaultModel is the default Gemini embedding model.
const DefaultModel = "gemini-embedding-001"

// Task types understood by the embedding endpoint.
const (
	TaskRetrievalQuery      = "RETRIEVAL_QUERY"
	TaskRetrievalDocument   = "RETRIEVAL_DOCUMENT"
	TaskSemanticSimilarity  = "SEMANTIC_SIMILARITY"
	defaultGeminiDimensions = 3072
)

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider using the Gemini API.
type Provider struct {
	client     *genai.Client
	model      string
	taskType   string
	dimensions int
}

type config struct {
	taskType   string
	dimensions int
	baseURL    string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTaskType sets the embedding task type. Defaults to
// [TaskSemanticSimilarity], which suits note-to-message comparison.
func WithTaskType(t string) Option {
	return func(c *config) { c.taskType = t }
}

// WithDimensions truncates output vectors to n entries.
func WithDimensions(n int) Option {
	return func(c *config) { c.dimensions = n }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// New constructs a Gemini embeddings provider. If model is empty,
// DefaultModel is used.
func New(ctx context.Context, apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embeddings: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}
	cfg := &config{taskType: TaskSemanticSimilarity}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: new client: %w", err)
	}
	return &Provider{
		client:     client,
		model:      model,
		taskType:   cfg.taskType,
		dimensions: cfg.dimensions,
	}, nil
}

func (p *Provider) embedConfig() *genai.EmbedContentConfig {
	c := &genai.EmbedContentConfig{TaskType: p.taskType}
	if p.dimensions > 0 {
		d := int32(p.dimensions)
		c.OutputDimensionality = &d
	}
	return c
}

// Embed implements embeddings.Provider.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, p.embedConfig())
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("gemini embeddings: missing embedding %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// Dimensions implements embeddings.Provider.
func (p *Provider) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	return defaultGeminiDimensions
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string { return p.model }
