package provider

import (
	"sort"

	"transcript-compare/internal/domain"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.Registry = (*registry)(nil)

// registry is the fixed provider table, populated once at process start.
type registry struct {
	table map[model.ProviderKey]adapter.TranscriptionProvider
}

// NewRegistry wires all nine adapters with their production endpoints.
func NewRegistry() *registry {
	return NewRegistryWith(
		NewWhisperAdapter(),
		NewAssemblyAIAdapter(),
		NewGeminiAdapter(),
		NewAWSTranscribeAdapter(),
		NewElevenLabsAdapter(),
		NewDeepgramAdapter(),
		NewGladiaAdapter(),
		NewSpeechmaticsAdapter(),
		NewOpenRouterAdapter(),
	)
}

// NewRegistryWith builds a registry from explicit adapters; tests inject
// fakes through it.
func NewRegistryWith(providers ...adapter.TranscriptionProvider) *registry {
	table := make(map[model.ProviderKey]adapter.TranscriptionProvider, len(providers))
	for _, p := range providers {
		table[p.Key()] = p
	}
	return &registry{table: table}
}

func (r *registry) Get(key model.ProviderKey) (adapter.TranscriptionProvider, error) {
	p, ok := r.table[key]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return p, nil
}

func (r *registry) List() []adapter.TranscriptionProvider {
	out := make([]adapter.TranscriptionProvider, 0, len(r.table))
	for _, p := range r.table {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
