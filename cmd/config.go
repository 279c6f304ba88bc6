package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/ai/gemini"
	"github.com/spigell/cold-mailer/internal/outreach"
	"github.com/spigell/cold-mailer/internal/portfolio"
	"github.com/spigell/cold-mailer/internal/research"
	"github.com/spigell/cold-mailer/internal/webpage"
)

type Config struct {
	Portfolio *PortfolioConfig  `mapstructure:"portfolio"`
	History   *HistoryConfig    `mapstructure:"history"`
	Research  *ResearchConfig   `mapstructure:"research"`
	Sender    *gemini.Sender    `mapstructure:"sender"`
	Styles    map[string]string `mapstructure:"styles"`
	UserAgent string            `mapstructure:"user-agent"`
	// FetchTimeout bounds every page fetch: the job posting and the about page.
	FetchTimeout time.Duration `mapstructure:"fetch-timeout"`
	AI           *AIConfig     `mapstructure:"ai"`
	Server       *ServerConfig `mapstructure:"server"`
}

type PortfolioConfig struct {
	File    string       `mapstructure:"file"`
	Backend string       `mapstructure:"backend"`
	Results int          `mapstructure:"results"`
	Bias    *BiasConfig  `mapstructure:"bias"`
	Index   *IndexConfig `mapstructure:"index"`
}

type BiasConfig struct {
	Weight float64  `mapstructure:"weight"`
	Terms  []string `mapstructure:"terms"`
}

type IndexConfig struct {
	File           string `mapstructure:"file"`
	EmbeddingModel string `mapstructure:"embedding-model"`
}

type HistoryConfig struct {
	File string `mapstructure:"file"`
}

type ResearchConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxTextLength int  `mapstructure:"max-text-length"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	APIKey       string `mapstructure:"api-key"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

func setDefaults() {
	sender := gemini.DefaultSender()

	viper.SetDefault("portfolio.file", "my_portfolio.csv")
	viper.SetDefault("portfolio.backend", portfolio.BackendLexical)
	viper.SetDefault("portfolio.results", outreach.DefaultLinks)
	viper.SetDefault("portfolio.bias.weight", 0)
	viper.SetDefault("portfolio.bias.terms", []string{})
	viper.SetDefault("portfolio.index.file", "portfolio_index.db")
	viper.SetDefault("portfolio.index.embedding-model", gemini.DefaultEmbeddingModel)

	viper.SetDefault("history.file", "email_history.json")

	viper.SetDefault("research.enabled", true)
	viper.SetDefault("research.max-text-length", research.DefaultMaxTextLength)

	viper.SetDefault("sender.name", sender.Name)
	viper.SetDefault("sender.company", sender.Company)
	viper.SetDefault("sender.pitch", sender.Pitch)

	viper.SetDefault("user-agent", webpage.DefaultUserAgent)
	viper.SetDefault("fetch-timeout", webpage.DefaultTimeout)

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.model", gemini.DefaultModel)
	viper.SetDefault("ai.gemini.max-retries", 2)
	viper.SetDefault("ai.gemini.max-log-length", 200)

	viper.SetDefault("server.listen", ":8080")
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, fmt.Errorf("config is empty")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Portfolio == nil || strings.TrimSpace(c.Portfolio.File) == "" {
		return fmt.Errorf("portfolio.file is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Portfolio.Backend)) {
	case portfolio.BackendLexical, portfolio.BackendSemantic:
	default:
		return fmt.Errorf("unsupported portfolio.backend %q (expected %s or %s)", c.Portfolio.Backend, portfolio.BackendLexical, portfolio.BackendSemantic)
	}
	if c.Portfolio.Index == nil {
		c.Portfolio.Index = &IndexConfig{}
	}
	if c.Portfolio.Bias == nil {
		c.Portfolio.Bias = &BiasConfig{}
	}
	if c.History == nil || strings.TrimSpace(c.History.File) == "" {
		return fmt.Errorf("history.file is required")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch-timeout must not be negative, got %s", c.FetchTimeout)
	}
	if c.Research == nil {
		c.Research = &ResearchConfig{}
	}
	if c.Sender == nil {
		sender := gemini.DefaultSender()
		c.Sender = &sender
	}
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
	if c.AI.Gemini == nil {
		c.AI.Gemini = &GeminiConfig{}
	}
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if _, err := c.styleOverrides(); err != nil {
		return err
	}
	return nil
}

func (c *Config) backend() string {
	return strings.ToLower(strings.TrimSpace(c.Portfolio.Backend))
}

func (c *Config) styleOverrides() (map[ai.Style]string, error) {
	overrides := make(map[ai.Style]string, len(c.Styles))
	for key, text := range c.Styles {
		style, err := ai.ParseStyle(key)
		if err != nil {
			return nil, fmt.Errorf("styles: %w", err)
		}
		overrides[style] = text
	}
	return overrides, nil
}
