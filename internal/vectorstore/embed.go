package vectorstore

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultEmbeddingModel is used when the config leaves the model unset.
const DefaultEmbeddingModel = "text-embedding-3-small"

// EmbeddingConfig selects the OpenAI embedding backend.
type EmbeddingConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// NewOpenAIEmbedder builds the client-side embedder the store uses. The
// collection itself is created with no server-side vectorizer, so every
// vector comes from here.
func NewOpenAIEmbedder(cfg EmbeddingConfig) (embeddings.Embedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedding api key not configured and OPENAI_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}
