// Package research summarizes a company's about page for email personalization.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/utils"
	"github.com/spigell/cold-mailer/internal/webpage"
)

//go:embed prompts/company_info.md
var promptTemplate string

const (
	DefaultMaxTextLength = 5000
	noAboutText          = "No company information found."
	unknownCompany       = "Unknown"
	aboutPath            = "/about"
	defaultMaxLogLength  = 200
)

type pageFetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Researcher looks up the about page of the company behind a URL. Successful
// summaries are cached per URL for the lifetime of the instance.
type Researcher struct {
	fetcher       pageFetcher
	generator     contentGenerator
	logger        *zap.Logger
	maxTextLength int

	mu    sync.RWMutex
	cache map[string]ai.CompanyResearch
}

var _ ai.Researcher = (*Researcher)(nil)

func New(fetcher pageFetcher, generator contentGenerator, logger *zap.Logger, maxTextLength int) *Researcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}

	return &Researcher{
		fetcher:       fetcher,
		generator:     generator,
		logger:        logger,
		maxTextLength: maxTextLength,
		cache:         make(map[string]ai.CompanyResearch),
	}
}

// Research returns the cached summary for companyURL or builds a new one. It
// never fails: any problem yields ai.EmptyResearch. companyName is optional.
func (r *Researcher) Research(ctx context.Context, companyURL, companyName string) ai.CompanyResearch {
	if cached, ok := r.cached(companyURL); ok {
		r.logger.Debug("company research cache hit", zap.String("url", companyURL))
		return cached
	}

	baseURL, err := webpage.BaseURL(companyURL)
	if err != nil {
		r.logger.Warn("company research skipped", zap.String("url", companyURL), zap.Error(err))
		return ai.EmptyResearch()
	}

	aboutText, err := r.aboutText(ctx, baseURL+aboutPath)
	if err != nil {
		r.logger.Warn("about page fetch failed", zap.String("url", baseURL+aboutPath), zap.Error(err))
		return ai.EmptyResearch()
	}

	if companyName = strings.TrimSpace(companyName); companyName == "" {
		companyName = unknownCompany
	}
	prompt := strings.NewReplacer(
		"{{COMPANY_NAME}}", companyName,
		"{{ABOUT_TEXT}}", aboutText,
	).Replace(promptTemplate)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		r.logger.Warn("company research failed", zap.String("url", companyURL), zap.Error(err))
		return ai.EmptyResearch()
	}

	result, err := parseResearch(raw)
	if err != nil {
		r.logger.Warn("company research response is not valid JSON",
			zap.String("url", companyURL),
			zap.String("response_preview", utils.TruncateForLog(raw, defaultMaxLogLength)),
			zap.Error(err),
		)
		return ai.EmptyResearch()
	}

	r.store(companyURL, result)
	return result
}

// aboutText fetches the about page. A missing page or an empty one yields a
// placeholder so the model still gets the company name; transport failures
// are returned.
func (r *Researcher) aboutText(ctx context.Context, aboutURL string) (string, error) {
	text, err := r.fetcher.FetchText(ctx, aboutURL)
	if err != nil {
		var statusErr *webpage.StatusError
		if !errors.As(err, &statusErr) {
			return "", err
		}
		r.logger.Debug("no about page", zap.String("url", aboutURL), zap.Int("status", statusErr.StatusCode))
		return noAboutText, nil
	}

	text = webpage.CollapseSpaces(text)
	if text == "" {
		return noAboutText, nil
	}

	r.logger.Debug("about page fetched",
		zap.String("url", aboutURL),
		zap.Int("text_length", utf8.RuneCountInString(text)),
	)
	return utils.TruncateRunes(text, r.maxTextLength), nil
}

func parseResearch(raw string) (ai.CompanyResearch, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(ai.ExtractJSON(raw)), &data); err != nil {
		return ai.CompanyResearch{}, err
	}

	result := ai.CompanyResearch{
		Values:      ai.CoerceStrings(data["values"]),
		Initiatives: ai.CoerceStrings(data["initiatives"]),
		PainPoints:  ai.CoerceStrings(data["pain_points"]),
		Size:        ai.CoerceString(data["size"]),
	}
	if result.Size == "" {
		result.Size = ai.UnknownSize
	}

	for key, value := range data {
		switch key {
		case "values", "initiatives", "pain_points", "size":
			continue
		}
		if result.Extra == nil {
			result.Extra = make(map[string]any)
		}
		result.Extra[key] = value
	}

	return result, nil
}

func (r *Researcher) cached(companyURL string) (ai.CompanyResearch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.cache[companyURL]
	return result, ok
}

func (r *Researcher) store(companyURL string, result ai.CompanyResearch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[companyURL] = result
}
