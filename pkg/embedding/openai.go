package embedding

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the default OpenAI embedding model.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIEngine calls the OpenAI embeddings API or any compatible endpoint.
type OpenAIEngine struct {
	client     openai.Client
	model      string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	dims       int
}

// OpenAIOption configures an OpenAIEngine.
type OpenAIOption func(*OpenAIEngine)

// WithOpenAIModel sets the embedding model. Empty keeps the default.
func WithOpenAIModel(model string) OpenAIOption {
	return func(e *OpenAIEngine) {
		if model != "" {
			e.model = model
		}
	}
}

// WithOpenAIBaseURL points the engine at an OpenAI-compatible API.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(e *OpenAIEngine) {
		if baseURL != "" {
			e.baseURL = baseURL
		}
	}
}

// WithOpenAITimeout bounds every request. Zero keeps the default.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(e *OpenAIEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithOpenAIMaxRetries sets how often a failed request is retried.
func WithOpenAIMaxRetries(n int) OpenAIOption {
	return func(e *OpenAIEngine) {
		e.maxRetries = n
	}
}

// NewOpenAIEngine creates an engine for apiKey. An empty apiKey falls back to
// the OPENAI_API_KEY environment variable and a missing base URL to
// OPENAI_BASE_URL.
func NewOpenAIEngine(apiKey string, opts ...OpenAIOption) (*OpenAIEngine, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	e := &OpenAIEngine{
		model:      DefaultOpenAIModel,
		baseURL:    os.Getenv("OPENAI_BASE_URL"),
		timeout:    10 * time.Second,
		maxRetries: 1,
		dims:       OpenAIDimensions,
	}
	for _, opt := range opts {
		opt(e)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(e.maxRetries),
		option.WithRequestTimeout(e.timeout),
	}
	if e.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(e.baseURL))
	}
	e.client = openai.NewClient(clientOpts...)
	return e, nil
}

// Name implements Engine.
func (e *OpenAIEngine) Name() string {
	return "openai:" + e.model
}

// Dimensions implements Engine.
func (e *OpenAIEngine) Dimensions() int {
	return e.dims
}

// Embed implements Engine.
func (e *OpenAIEngine) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements Engine.
func (e *OpenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = truncateTokens(t, maxEmbeddingTokens)
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: openai.EmbeddingModel(e.model),
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dims))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float64, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}
