package memory

import (
	"context"
	"sync"
)

// mockProvider generates deterministic embeddings and counts what it was
// asked to embed.
type mockProvider struct {
	dims int
	err  error

	mu      sync.Mutex
	calls   int
	batches [][]string
}

func newMockProvider(dims int) *mockProvider {
	return &mockProvider{dims: dims}
}

func (p *mockProvider) Name() string {
	return "mock"
}

func (p *mockProvider) Dimensions() int {
	return p.dims
}

func (p *mockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	p.batches = append(p.batches, append([]string(nil), texts...))
	err := p.err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = p.vectorFor(text)
	}
	return embeddings, nil
}

func (p *mockProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, p, text)
}

// vectorFor derives a deterministic vector from the text's bytes.
func (p *mockProvider) vectorFor(text string) []float32 {
	hash := 0
	for _, c := range text {
		hash = hash*31 + int(c)
	}

	vec := make([]float32, p.dims)
	for i := range vec {
		vec[i] = float32((hash+i)%100) / 100.0
	}
	return vec
}

// Calls returns the number of Embed invocations.
func (p *mockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// TimesEmbedded counts how often text appeared across all Embed calls.
func (p *mockProvider) TimesEmbedded(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, batch := range p.batches {
		for _, t := range batch {
			if t == text {
				n++
			}
		}
	}
	return n
}

func (p *mockProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
