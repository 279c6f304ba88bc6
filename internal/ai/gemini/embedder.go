package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"
	embedBatchSize        = 100
)

type embedModel interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces text embeddings for the portfolio vector index.
type Embedder struct {
	models embedModel
	model  string
}

func NewEmbedder(client *genai.Client, model string) *Embedder {
	return newEmbedder(client.Models, model)
}

func newEmbedder(models embedModel, model string) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{models: models, model: model}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: text}},
			})
		}

		resp, err := e.models.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if resp == nil || len(resp.Embeddings) != len(contents) {
			got := 0
			if resp != nil {
				got = len(resp.Embeddings)
			}
			return nil, fmt.Errorf("embed content: expected %d embeddings, got %d", len(contents), got)
		}

		for _, embedding := range resp.Embeddings {
			if embedding == nil {
				return nil, errors.New("embed content: empty embedding")
			}
			vectors = append(vectors, embedding.Values)
		}
	}

	return vectors, nil
}
