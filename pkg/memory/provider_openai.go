package memory

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider generates embeddings via the OpenAI API.
type OpenAIProvider struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAIProvider creates an OpenAI embedding provider. The dimension is
// derived from the model unless overridden in opts.
func NewOpenAIProvider(opts ProviderOptions) *OpenAIProvider {
	model := opts.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	dims := opts.Dimensions
	if dims == 0 {
		switch model {
		case "text-embedding-3-large":
			dims = 3072
		default:
			// text-embedding-3-small and text-embedding-ada-002
			dims = 1536
		}
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		model:  model,
		dims:   dims,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dims
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI embeddings API: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("OpenAI returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			vec[i] = float32(v)
		}
		if data.Index < 0 || int(data.Index) >= len(embeddings) {
			return nil, fmt.Errorf("OpenAI returned out-of-range embedding index %d", data.Index)
		}
		embeddings[data.Index] = vec
	}

	return embeddings, nil
}

func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, p, text)
}
