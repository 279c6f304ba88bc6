package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/cold-mailer/internal/utils"
)

const (
	DefaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 2
	defaultRetryDelay = 2 * time.Second
	// Quota hints longer than this are not worth waiting for interactively.
	maxQuotaDelay = 10 * time.Second
)

var quotaDelayPattern = regexp.MustCompile(`(?i)retry (?:in|after) ([0-9]+(?:\.[0-9]+)?)\s*(?:s\b|sec|second)`)

type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models     contentModel
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	wait       func(context.Context, time.Duration) error
}

// NewClient creates a GenAI client configured for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// NewGenerator returns a generator for model. maxRetries is the total number of
// attempts made for a prompt when the API reports a temporary failure.
func NewGenerator(client *genai.Client, model string, maxRetries int, logger *zap.Logger) *Generator {
	return newGenerator(client.Models, model, maxRetries, logger)
}

func newGenerator(models contentModel, model string, maxRetries int, logger *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:     models,
		model:      model,
		maxRetries: maxRetries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
		wait:       utils.WaitFor,
	}
}

// GenerateContent sends the prompt to Gemini and returns the textual response.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	for attempt := 1; ; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err == nil {
			return responseText(resp)
		}

		delay, retry := g.retryAfter(err, attempt)
		if !retry || attempt >= g.maxRetries {
			return "", fmt.Errorf("generate content: %w", err)
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
			zap.Error(err),
		)

		if err := g.wait(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Generator) retryAfter(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	backoff := g.retryDelay * time.Duration(attempt)

	switch {
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff, true
	case apiErr.Code == http.StatusTooManyRequests:
		hint, ok := quotaDelay(apiErr)
		if !ok {
			return backoff, true
		}
		if hint > maxQuotaDelay {
			return 0, false
		}
		return hint, true
	default:
		return 0, false
	}
}

// quotaDelay reads the server retry hint from the RetryInfo detail or, failing
// that, from the error message.
func quotaDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			return d, true
		}
	}

	match := quotaDelayPattern.FindStringSubmatch(apiErr.Message)
	if len(match) != 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}
