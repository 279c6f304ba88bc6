package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/ai/gemini"
	"github.com/spigell/cold-mailer/internal/portfolio"
	"github.com/spigell/cold-mailer/internal/webpage"
)

func validConfig() *Config {
	return &Config{
		Portfolio: &PortfolioConfig{File: "portfolio.csv", Backend: portfolio.BackendLexical},
		History:   &HistoryConfig{File: "history.json"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "minimal config", mutate: func(*Config) {}},
		{name: "semantic backend in upper case", mutate: func(c *Config) { c.Portfolio.Backend = " Semantic " }},
		{name: "missing portfolio", mutate: func(c *Config) { c.Portfolio = nil }, wantErr: "portfolio.file"},
		{name: "unknown backend", mutate: func(c *Config) { c.Portfolio.Backend = "fuzzy" }, wantErr: "portfolio.backend"},
		{name: "missing history file", mutate: func(c *Config) { c.History.File = "  " }, wantErr: "history.file"},
		{name: "negative fetch timeout", mutate: func(c *Config) { c.FetchTimeout = -time.Second }, wantErr: "fetch-timeout"},
		{name: "unknown style override", mutate: func(c *Config) { c.Styles = map[string]string{"poetic": "rhyme"} }, wantErr: "styles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Sender == nil || *cfg.Sender != gemini.DefaultSender() {
		t.Fatalf("expected default sender, got %+v", cfg.Sender)
	}
	if cfg.AI == nil || cfg.AI.Gemini == nil || cfg.Research == nil || cfg.Server == nil {
		t.Fatalf("expected nested sections to be filled: %+v", cfg)
	}
	if cfg.Portfolio.Bias == nil || cfg.Portfolio.Index == nil {
		t.Fatalf("expected portfolio sections to be filled: %+v", cfg.Portfolio)
	}
}

func TestStyleOverrides(t *testing.T) {
	cfg := validConfig()
	cfg.Styles = map[string]string{"Problem_Solution": "lead with the pain"}

	overrides, err := cfg.styleOverrides()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := overrides[ai.StyleProblemSolution]; got != "lead with the pain" {
		t.Fatalf("unexpected override: %q", got)
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{input: "7", want: 7},
		{input: " 14 ", want: 14},
		{input: "0", wantErr: true},
		{input: "-3", wantErr: true},
		{input: "week", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseDays(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseDays(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("parseDays(%q) = %d, %v; want %d", tt.input, got, err, tt.want)
		}
	}
}

func TestRedactedHidesAPIKey(t *testing.T) {
	cfg := validConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.AI.Gemini.APIKey = "secret"

	out := redacted(cfg)
	if out.AI.Gemini.APIKey != "<redacted>" {
		t.Fatalf("expected key to be redacted, got %q", out.AI.Gemini.APIKey)
	}
	if cfg.AI.Gemini.APIKey != "secret" {
		t.Fatalf("original config must stay untouched")
	}
}

func TestFetchTimeoutDrivesPageFetcher(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	cfg, err := getConfig()
	if err != nil {
		t.Fatalf("getConfig: %v", err)
	}
	if cfg.FetchTimeout != webpage.DefaultTimeout {
		t.Fatalf("expected default fetch timeout %s, got %s", webpage.DefaultTimeout, cfg.FetchTimeout)
	}

	viper.Set("fetch-timeout", "3s")
	cfg, err = getConfig()
	if err != nil {
		t.Fatalf("getConfig: %v", err)
	}

	fetcher := newComponents(cfg, zap.NewNop()).fetcher()
	if fetcher.HTTPClient.Timeout != 3*time.Second {
		t.Fatalf("expected fetcher timeout 3s, got %s", fetcher.HTTPClient.Timeout)
	}
}
