package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/glyphchat/pkg/memory"
	"github.com/MrWong99/glyphchat/pkg/provider/embeddings"
	"github.com/MrWong99/glyphchat/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// MessageLogFactory opens a long-term message log. data is passed so that
// file-backed backends can resolve relative paths.
type MessageLogFactory func(ctx context.Context, cfg MemoryConfig, data DataConfig) (memory.MessageLog, error)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	llm        map[string]func(ProviderEntry) (llm.Provider, error)
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
	messageLog map[MemoryBackend]MessageLogFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        make(map[string]func(ProviderEntry) (llm.Provider, error)),
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
		messageLog: make(map[MemoryBackend]MessageLogFactory),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterMessageLog registers a message-log backend factory.
func (r *Registry) RegisterMessageLog(backend MemoryBackend, factory MessageLogFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messageLog[backend] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateMessageLog opens the backend selected by cfg.Backend. The none
// backend yields a nil log and no error.
func (r *Registry) CreateMessageLog(ctx context.Context, cfg MemoryConfig, data DataConfig) (memory.MessageLog, error) {
	if cfg.Backend == MemoryNone || cfg.Backend == "" {
		return nil, nil
	}
	r.mu.RLock()
	factory, ok := r.messageLog[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: memory/%q", ErrProviderNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg, data)
}

// LLMNames returns the registered LLM provider names.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llm))
	for n := range r.llm {
		names = append(names, n)
	}
	return names
}
