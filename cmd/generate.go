package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/history"
	"github.com/spigell/cold-mailer/internal/outreach"
)

const (
	PromptSave     = "Save to history"
	PromptFollowUp = "Generate follow-up"
	PromptExit     = "Exit"
)

var errExit = errors.New("exit requested")

var actionPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptSave, PromptFollowUp, PromptExit},
}

var generateCmd = &cobra.Command{
	Use:   "generate <job-url>",
	Short: "Write a cold email for the job posting at the given url",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		generate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringP("style", "s", "", "email style: formal, conversational or problem-solution")
	generateCmd.Flags().IntP("links", "l", 0, fmt.Sprintf("portfolio links to include (%d-%d, default is portfolio.results)", outreach.MinLinks, outreach.MaxLinks))
	generateCmd.Flags().StringP("recipient", "r", "", "recipient name for the greeting")
	generateCmd.Flags().String("company-url", "", "company site used for research (default is the job url)")
	generateCmd.Flags().Bool("no-research", false, "skip company research")
	generateCmd.Flags().Bool("no-cta", false, "do not add a call to action")
	generateCmd.Flags().Bool("competitors", false, "mention how we differ from competitors")
	generateCmd.Flags().BoolP("yes", "y", false, "do not ask anything, print the email and exit")
	generateCmd.Flags().Bool("save", false, "save the email to history without asking")
}

func generate(cmd *cobra.Command, jobURL string) {
	ctx := context.Background()

	logger, config := setup()
	logger.Info("starting the cold-mailer", zap.String("version", version))

	components := newComponents(config, logger)
	defer components.Close()

	service, err := components.outreach(ctx)
	if err != nil {
		logger.Fatal("preparing the generator", zap.Error(err))
	}

	flags := cmd.Flags()
	yes, _ := flags.GetBool("yes")
	save, _ := flags.GetBool("save")

	style, _ := flags.GetString("style")
	if style == "" && !yes {
		style, err = chooseStyle()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	links, _ := flags.GetInt("links")
	if links == 0 {
		links = config.Portfolio.Results
	}

	req := outreach.Request{
		URL:             jobURL,
		Style:           ai.Style(style),
		Links:           links,
		Personalization: personalization(cmd, config),
	}

	result, err := service.Generate(ctx, req)
	if err != nil {
		logger.Fatal("generating an email", zap.Error(err))
	}

	if result.JobCount > 1 {
		logger.Info("several jobs found, using the first one", zap.Int("count", result.JobCount))
	}

	title := fmt.Sprintf("%s · %s", orUnknown(result.Job.Role), result.Style)
	renderCard(os.Stdout, title, result.Email)
	renderLinks(os.Stdout, "Portfolio links", result.Links)

	if save {
		if err := handleAction(ctx, PromptSave, service, result); err != nil {
			logger.Fatal("saving to history", zap.Error(err))
		}
	}

	if yes {
		return
	}

	for {
		_, action, err := actionPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, service, result); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, service *outreach.Service, result *outreach.Result) error {
	switch action {
	case PromptSave:
		_, err := service.SaveHistory(result)
		return err
	case PromptFollowUp:
		days, err := askDays()
		if err != nil {
			return err
		}
		followUp, err := service.FollowUp(ctx, result.Email, days)
		if err != nil {
			return err
		}
		renderCard(os.Stdout, fmt.Sprintf("Follow-up after %d days", days), followUp)
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func personalization(cmd *cobra.Command, config *Config) ai.Personalization {
	flags := cmd.Flags()
	recipient, _ := flags.GetString("recipient")
	companyURL, _ := flags.GetString("company-url")
	noResearch, _ := flags.GetBool("no-research")
	noCTA, _ := flags.GetBool("no-cta")
	competitors, _ := flags.GetBool("competitors")

	return ai.Personalization{
		RecipientName:          strings.TrimSpace(recipient),
		AddCallToAction:        !noCTA,
		MentionCompetitors:     competitors,
		IncludeCompanyResearch: config.Research.Enabled && !noResearch,
		CompanyURL:             strings.TrimSpace(companyURL),
	}
}

func chooseStyle() (string, error) {
	items := make([]string, 0, len(ai.Styles()))
	for _, style := range ai.Styles() {
		items = append(items, string(style))
	}

	stylePrompt := promptui.Select{
		Label: "Choose an email style",
		Items: items,
	}
	_, style, err := stylePrompt.Run()
	return style, err
}

func askDays() (int, error) {
	daysPrompt := promptui.Prompt{
		Label:   "Days since the first email",
		Default: "7",
		Validate: func(input string) error {
			_, err := parseDays(input)
			return err
		},
	}

	input, err := daysPrompt.Run()
	if err != nil {
		return 0, err
	}
	return parseDays(input)
}

func parseDays(input string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, fmt.Errorf("days must be a number")
	}
	if days < 1 {
		return 0, fmt.Errorf("days must be positive")
	}
	return days, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return history.UnknownRole
	}
	return s
}
