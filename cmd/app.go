package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/cold-mailer/internal/ai/gemini"
	"github.com/spigell/cold-mailer/internal/history"
	"github.com/spigell/cold-mailer/internal/logger"
	"github.com/spigell/cold-mailer/internal/outreach"
	"github.com/spigell/cold-mailer/internal/portfolio"
	"github.com/spigell/cold-mailer/internal/research"
	"github.com/spigell/cold-mailer/internal/secrets"
	"github.com/spigell/cold-mailer/internal/vectorindex"
	"github.com/spigell/cold-mailer/internal/webpage"
)

const providerGemini = "gemini"

// components builds the collaborators lazily so commands that only touch
// local files never need an API key.
type components struct {
	cfg *Config
	log *zap.Logger

	client  *genai.Client
	matcher portfolio.Matcher
	closers []func() error
}

func newComponents(cfg *Config, log *zap.Logger) *components {
	return &components{cfg: cfg, log: log}
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.log.Warn("closing resource", zap.Error(err))
		}
	}
	c.closers = nil
}

func (c *components) genai(ctx context.Context) (*genai.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	provider := strings.TrimSpace(strings.ToLower(c.cfg.AI.Provider))
	if provider != "" && provider != providerGemini {
		return nil, fmt.Errorf("unsupported ai provider: %s", c.cfg.AI.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  c.cfg.AI.Gemini.APIKeyFile,
		Value: c.cfg.AI.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, ai.gemini.api-key or GEMINI_API_KEY)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func (c *components) portfolio(ctx context.Context) (portfolio.Matcher, error) {
	if c.matcher != nil {
		return c.matcher, nil
	}

	cfg := c.cfg.Portfolio
	backend := c.cfg.backend()
	log := logger.WithFields(c.log, zap.String(logger.FieldBackend, backend))

	store := portfolio.NewStore(cfg.File)
	entries, err := store.LoadOrSeed(portfolio.DefaultEntries())
	if err != nil {
		return nil, fmt.Errorf("loading portfolio: %w", err)
	}
	log.Debug("portfolio loaded", zap.String("file", store.Path()), zap.Int("entries", len(entries)))

	switch backend {
	case portfolio.BackendSemantic:
		client, err := c.genai(ctx)
		if err != nil {
			return nil, err
		}

		index, err := vectorindex.Open(cfg.Index.File, gemini.NewEmbedder(client, cfg.Index.EmbeddingModel))
		if err != nil {
			return nil, fmt.Errorf("opening portfolio index: %w", err)
		}
		c.closers = append(c.closers, index.Close)

		matcher, err := portfolio.NewSemantic(ctx, store, entries, index, log)
		if err != nil {
			return nil, err
		}
		c.matcher = matcher
	default:
		bias := portfolio.Bias{Weight: cfg.Bias.Weight, Terms: cfg.Bias.Terms}
		c.matcher = portfolio.NewLexical(store, entries, bias, log)
	}

	return c.matcher, nil
}

func (c *components) fetcher() *webpage.Client {
	return webpage.New(c.log, c.cfg.FetchTimeout, c.cfg.UserAgent)
}

func (c *components) history() *history.Store {
	return history.NewStore(c.cfg.History.File, c.log)
}

func (c *components) outreach(ctx context.Context) (*outreach.Service, error) {
	matcher, err := c.portfolio(ctx)
	if err != nil {
		return nil, err
	}

	client, err := c.genai(ctx)
	if err != nil {
		return nil, err
	}

	gcfg := c.cfg.AI.Gemini
	aiLog := logger.WithCommonFields(c.log, providerGemini, gcfg.Model)

	generator := gemini.NewGenerator(client, gcfg.Model, gcfg.MaxRetries, aiLog)

	composer := gemini.NewComposer(generator, aiLog, gcfg.MaxLogLength)
	composer.SetSender(*c.cfg.Sender)
	overrides, err := c.cfg.styleOverrides()
	if err != nil {
		return nil, err
	}
	composer.SetStyleInstructions(overrides)

	fetcher := c.fetcher()

	return outreach.New(outreach.Deps{
		Fetcher:    fetcher,
		Extractor:  gemini.NewExtractor(generator, aiLog, gcfg.MaxLogLength),
		Matcher:    matcher,
		Researcher: research.New(fetcher, generator, aiLog, c.cfg.Research.MaxTextLength),
		Composer:   composer,
		History:    c.history(),
		Logger:     c.log,
	}), nil
}
