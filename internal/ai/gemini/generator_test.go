package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	mu      sync.Mutex
	queue   []fakeResponse
	prompts []string
	models  []string
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.models = append(f.models, model)
	for _, content := range contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}

	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func newTestGenerator(models *fakeModels, maxRetries int) (*Generator, *[]time.Duration) {
	g := newGenerator(models, "gemini-pro", maxRetries, zap.NewNop())
	waits := &[]time.Duration{}
	g.wait = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return g, waits
}

func TestGeneratorReturnsJoinedText(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse(" Subject: Hi ", "", "Body"), nil)
	g, _ := newTestGenerator(models, 1)

	out, err := g.GenerateContent(context.Background(), "  write an email ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Subject: Hi\nBody" {
		t.Fatalf("unexpected output: %q", out)
	}
	if models.prompts[0] != "write an email" || models.models[0] != "gemini-pro" {
		t.Fatalf("unexpected request: %v %v", models.prompts, models.models)
	}
}

func TestGeneratorRejectsEmptyPromptAndResponse(t *testing.T) {
	models := &fakeModels{}
	g, _ := newTestGenerator(models, 1)

	if _, err := g.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}

	models.enqueue(textResponse("  "), nil)
	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)
	g, waits := newTestGenerator(models, 2)

	out, err := g.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "retry ok" {
		t.Fatalf("unexpected output: %q", out)
	}
	if len(models.prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.prompts))
	}
	if len(*waits) != 1 || (*waits)[0] != defaultRetryDelay {
		t.Fatalf("unexpected waits: %v", *waits)
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)
	g, _ := newTestGenerator(models, 2)

	_, err := g.GenerateContent(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	if len(models.prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.prompts))
	}
}

func TestGeneratorQuotaHandling(t *testing.T) {
	cases := []struct {
		name      string
		err       genai.APIError
		wantCalls int
		wantWait  time.Duration
	}{
		{
			name: "long delay in message",
			err: genai.APIError{
				Code:    http.StatusTooManyRequests,
				Status:  "RESOURCE_EXHAUSTED",
				Message: "quota exhausted, retry after 60 seconds",
			},
			wantCalls: 1,
		},
		{
			name: "short delay in details",
			err: genai.APIError{
				Code:    http.StatusTooManyRequests,
				Status:  "RESOURCE_EXHAUSTED",
				Details: []map[string]any{{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "3s"}},
			},
			wantCalls: 2,
			wantWait:  3 * time.Second,
		},
		{
			name: "no hint",
			err: genai.APIError{
				Code:   http.StatusTooManyRequests,
				Status: "RESOURCE_EXHAUSTED",
			},
			wantCalls: 2,
			wantWait:  defaultRetryDelay,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			models := &fakeModels{}
			models.enqueue(nil, tc.err)
			models.enqueue(textResponse("ok"), nil)
			g, waits := newTestGenerator(models, 3)

			_, err := g.GenerateContent(context.Background(), "prompt")
			if tc.wantCalls == 1 && err == nil {
				t.Fatal("expected error when quota delay too long")
			}
			if tc.wantCalls > 1 && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(models.prompts) != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, len(models.prompts))
			}
			if tc.wantWait > 0 && (len(*waits) != 1 || (*waits)[0] != tc.wantWait) {
				t.Fatalf("unexpected waits: %v", *waits)
			}
		})
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})
	g, _ := newTestGenerator(models, 3)

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if len(models.prompts) != 1 {
		t.Fatalf("expected single call, got %d", len(models.prompts))
	}
}

func TestGeneratorStopsWhenContextCancelled(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError})
	g, _ := newTestGenerator(models, 3)
	g.wait = func(ctx context.Context, _ time.Duration) error { return context.Canceled }

	_, err := g.GenerateContent(context.Background(), "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestNewGeneratorDefaults(t *testing.T) {
	g := newGenerator(&fakeModels{}, " ", 0, nil)
	if g.Model() != DefaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
	if g.maxRetries != defaultMaxRetries {
		t.Fatalf("expected default retries, got %d", g.maxRetries)
	}
}
