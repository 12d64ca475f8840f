package memory

import (
	"context"
	"errors"
	"fmt"
)

// Provider generates vector embeddings from text. A nil Provider, or one
// reporting zero Dimensions, puts the engine in keyword-only mode.
type Provider interface {
	// Name identifies the provider in logs and status output.
	Name() string
	// Dimensions returns the width of produced vectors. Zero means disabled.
	Dimensions() int
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedOne embeds a single text as a one-element batch.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// ProviderOptions configures provider construction.
type ProviderOptions struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewProvider builds a provider by kind. Supported kinds are "openai",
// "ollama" and "disabled"; disabled returns a nil provider.
func NewProvider(kind string, opts ProviderOptions) (Provider, error) {
	switch kind {
	case "openai":
		if opts.APIKey == "" {
			return nil, errors.New("openai provider requires an api key")
		}
		return NewOpenAIProvider(opts), nil
	case "ollama":
		return NewOllamaProvider(opts), nil
	case "", "disabled", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", kind)
	}
}

// embedSingle implements EmbedOne on top of a batch Embed call.
func embedSingle(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, errors.New("provider returned no embedding")
	}
	return vecs[0], nil
}
