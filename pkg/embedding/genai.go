package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGenAIModel is the default Gemini embedding model.
const DefaultGenAIModel = "gemini-embedding-001"

// GenAIEngine calls the Gemini embeddings API.
type GenAIEngine struct {
	client *genai.Client
	model  string
	dims   int32
}

// NewGenAIEngine creates a Gemini engine. Vectors are requested at
// GenAIDimensions and re-normalized, since truncated Gemini embeddings are
// not unit length.
func NewGenAIEngine(ctx context.Context, apiKey, model string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultGenAIModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIEngine{client: client, model: model, dims: GenAIDimensions}, nil
}

// Name implements Engine.
func (e *GenAIEngine) Name() string {
	return "genai:" + e.model
}

// Dimensions implements Engine.
func (e *GenAIEngine) Dimensions() int {
	return int(e.dims)
}

// Embed implements Engine.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements Engine.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dims := e.dims
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed request failed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("genai returned %d embeddings for %d inputs", got, len(texts))
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("genai returned an empty embedding at %d", i)
		}
		vec := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			vec[j] = float64(v)
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}
