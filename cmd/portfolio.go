package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Manage the portfolio of projects used in emails",
}

var portfolioListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every portfolio entry",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withComponents(func(ctx context.Context, c *components, log *zap.Logger) {
			matcher, err := c.portfolio(ctx)
			if err != nil {
				log.Fatal("loading portfolio", zap.Error(err))
			}
			renderPortfolio(os.Stdout, matcher.Entries())
		})
	},
}

var portfolioAddCmd = &cobra.Command{
	Use:   "add <tech-stack> <link>",
	Short: "Append a project to the portfolio",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		withComponents(func(ctx context.Context, c *components, log *zap.Logger) {
			matcher, err := c.portfolio(ctx)
			if err != nil {
				log.Fatal("loading portfolio", zap.Error(err))
			}
			if err := matcher.Add(ctx, args[0], args[1]); err != nil {
				log.Fatal("adding a portfolio entry", zap.Error(err))
			}
			log.Info("portfolio entry added", zap.String("link", args[1]), zap.Int("entries", len(matcher.Entries())))
		})
	},
}

var portfolioMatchCmd = &cobra.Command{
	Use:   "match <skill>...",
	Short: "Show the portfolio links that best match the given skills",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withComponents(func(ctx context.Context, c *components, log *zap.Logger) {
			matcher, err := c.portfolio(ctx)
			if err != nil {
				log.Fatal("loading portfolio", zap.Error(err))
			}

			results, _ := cmd.Flags().GetInt("results")
			if results == 0 {
				results = c.cfg.Portfolio.Results
			}

			matches := matcher.Rank(ctx, args, results)
			links := make([]string, 0, len(matches))
			for _, match := range matches {
				links = append(links, match.Link)
			}
			renderLinks(os.Stdout, "Best matches", links)
		})
	},
}

func init() {
	rootCmd.AddCommand(portfolioCmd)
	portfolioCmd.AddCommand(portfolioListCmd, portfolioAddCmd, portfolioMatchCmd)

	portfolioMatchCmd.Flags().IntP("results", "n", 0, "number of links to return (default is portfolio.results)")
}

func withComponents(fn func(ctx context.Context, c *components, log *zap.Logger)) {
	log, config := setup()

	c := newComponents(config, log)
	defer c.Close()

	fn(context.Background(), c, log)
}
