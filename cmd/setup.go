package cmd

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/logger"
)

// setup builds the logger and the validated config shared by every command.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("config file loaded", zap.String("file", used))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}

func redacted(cfg *Config) Config {
	out := *cfg
	if cfg.AI != nil && cfg.AI.Gemini != nil && cfg.AI.Gemini.APIKey != "" {
		gemini := *cfg.AI.Gemini
		gemini.APIKey = "<redacted>"
		ai := *cfg.AI
		ai.Gemini = &gemini
		out.AI = &ai
	}
	return out
}
