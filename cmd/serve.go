package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the email generator over HTTP",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "address to listen on (default is server.listen)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	logger.Info("starting the cold-mailer server", zap.String("version", version))

	c := newComponents(config, logger)
	defer c.Close()

	service, err := c.outreach(ctx)
	if err != nil {
		logger.Fatal("preparing the generator", zap.Error(err))
	}

	defaults := ai.DefaultPersonalization()
	defaults.IncludeCompanyResearch = config.Research.Enabled

	srv := server.New(service, service.Matcher(), defaults, logger)
	if err := srv.Run(ctx, config.Server.Listen); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
	logger.Info("server stopped")
}
