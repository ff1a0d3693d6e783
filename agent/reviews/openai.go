package reviews

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

type EmbeddingConfig struct {
	APIKey  string `envconfig:"API_KEY" split_words:"true"`
	BaseURL string `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	Model   string `envconfig:"MODEL" split_words:"true" default:"text-embedding-3-small"`
}

func (c EmbeddingConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// OpenAIEmbedder embeds query text with the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	if strings.TrimSpace(model) == "" {
		model = EmbeddingModel
	}
	return &OpenAIEmbedder{client: client, model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("reviews: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("reviews: embed: empty response")
	}
	return resp.Data[0].Embedding, nil
}
