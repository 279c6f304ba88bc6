package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type fakeEmbedModels struct {
	calls  int
	model  string
	sizes  []int
	err    error
	broken bool
}

func (f *fakeEmbedModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.calls++
	f.model = model
	f.sizes = append(f.sizes, len(contents))
	if f.err != nil {
		return nil, f.err
	}

	resp := &genai.EmbedContentResponse{}
	for _, content := range contents {
		text := content.Parts[0].Text
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{float32(len(text))}})
	}
	if f.broken {
		resp.Embeddings = resp.Embeddings[:len(resp.Embeddings)-1]
	}
	return resp, nil
}

func TestEmbedderBatchesAndKeepsOrder(t *testing.T) {
	models := &fakeEmbedModels{}
	e := newEmbedder(models, "")

	texts := make([]string, embedBatchSize+5)
	for i := range texts {
		texts[i] = string(make([]byte, i%7))
	}

	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if v[0] != float32(i%7) {
			t.Fatalf("vector %d out of order: %v", i, v)
		}
	}
	if models.calls != 2 || models.sizes[0] != embedBatchSize || models.sizes[1] != 5 {
		t.Fatalf("unexpected batching: calls=%d sizes=%v", models.calls, models.sizes)
	}
	if models.model != DefaultEmbeddingModel {
		t.Fatalf("expected default embedding model, got %q", models.model)
	}
}

func TestEmbedderErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := newEmbedder(&fakeEmbedModels{err: boom}, "m").Embed(context.Background(), []string{"a"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := newEmbedder(&fakeEmbedModels{broken: true}, "m").Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected count mismatch error")
	}
}
