package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse previously saved emails",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print saved emails, oldest first",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withComponents(func(_ context.Context, c *components, _ *zap.Logger) {
			renderHistory(os.Stdout, c.history().Load())
		})
	},
}

var historyFollowUpCmd = &cobra.Command{
	Use:   "follow-up <number>",
	Short: "Write a follow-up for a saved email (numbers as shown by history list)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withComponents(func(ctx context.Context, c *components, log *zap.Logger) {
			entries := c.history().Load()

			number, err := strconv.Atoi(args[0])
			if err != nil || number < 1 || number > len(entries) {
				log.Fatal("invalid history number",
					zap.String("number", args[0]),
					zap.Int("saved emails", len(entries)),
				)
			}
			entry := entries[number-1]

			days, _ := cmd.Flags().GetInt("days")
			if days < 1 {
				log.Fatal("days must be positive", zap.Int("days", days))
			}

			service, err := c.outreach(ctx)
			if err != nil {
				log.Fatal("preparing the generator", zap.Error(err))
			}

			followUp, err := service.FollowUp(ctx, entry.Email, days)
			if err != nil {
				log.Fatal("writing a follow-up", zap.Error(err))
			}

			renderCard(os.Stdout, fmt.Sprintf("Follow-up for %s at %s after %d days", entry.JobTitle, entry.Company, days), followUp)
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyFollowUpCmd)

	historyFollowUpCmd.Flags().Int("days", 7, "days since the first email was sent")
}
