package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/utils"
)

var (
	//go:embed prompts/write_email.md
	emailPromptTemplate string
	//go:embed prompts/follow_up.md
	followUpPromptTemplate string
)

const (
	DefaultFollowUpDays = 7
	maxRecipientRunes   = 120
)

// Sender is the persona the emails are written as.
type Sender struct {
	Name    string `mapstructure:"name"`
	Company string `mapstructure:"company"`
	Pitch   string `mapstructure:"pitch"`
}

func DefaultSender() Sender {
	return Sender{
		Name:    "Mohan",
		Company: "AtliQ",
		Pitch:   "AtliQ is an AI & Software Consulting company dedicated to facilitating the seamless integration of business processes through automated tools.",
	}
}

// DefaultStyleInstructions returns the tone instruction of every style.
func DefaultStyleInstructions(companyName string) map[ai.Style]string {
	return map[ai.Style]string{
		ai.StyleFormal:          "Write a formal and professional cold email.",
		ai.StyleConversational:  "Write a friendly and conversational cold email that shows personality.",
		ai.StyleProblemSolution: fmt.Sprintf("Write a cold email that identifies specific problems and positions %s as the solution.", companyName),
	}
}

type Composer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	sender    Sender
	styles    map[ai.Style]string
}

var _ ai.Composer = (*Composer)(nil)

func NewComposer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Composer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sender := DefaultSender()
	return &Composer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
		sender:    sender,
		styles:    DefaultStyleInstructions(sender.Company),
	}
}

// SetSender replaces the non-empty persona fields.
func (c *Composer) SetSender(sender Sender) {
	if name := sanitizeSingleLine(sender.Name, maxRecipientRunes); name != "" {
		c.sender.Name = name
	}
	if company := sanitizeSingleLine(sender.Company, maxRecipientRunes); company != "" {
		c.sender.Company = company
		c.styles[ai.StyleProblemSolution] = DefaultStyleInstructions(company)[ai.StyleProblemSolution]
	}
	if pitch := strings.TrimSpace(sender.Pitch); pitch != "" {
		c.sender.Pitch = pitch
	}
}

// SetStyleInstructions overrides the tone instruction of individual styles.
func (c *Composer) SetStyleInstructions(overrides map[ai.Style]string) {
	for style, text := range overrides {
		if text = strings.TrimSpace(text); text != "" {
			c.styles[style] = text
		}
	}
}

func (c *Composer) WriteEmail(ctx context.Context, req ai.EmailRequest) (string, error) {
	prompt, err := c.buildEmailPrompt(req)
	if err != nil {
		return "", err
	}
	return c.generate(ctx, "email", prompt)
}

// FollowUp writes a reminder for an email sent days ago. Non-positive days
// select DefaultFollowUpDays.
func (c *Composer) FollowUp(ctx context.Context, email string, days int) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("original email is required")
	}
	if days <= 0 {
		days = DefaultFollowUpDays
	}

	prompt := strings.NewReplacer(
		"{{ORIGINAL_EMAIL}}", strings.TrimSpace(email),
		"{{SENDER_NAME}}", c.sender.Name,
		"{{SENDER_COMPANY}}", c.sender.Company,
		"{{DAYS}}", strconv.Itoa(days),
	).Replace(followUpPromptTemplate)

	return c.generate(ctx, "follow_up", prompt)
}

func (c *Composer) generate(ctx context.Context, kind, prompt string) (string, error) {
	c.logger.Debug("gemini compose request",
		zap.String("kind", kind),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	c.logger.Debug("gemini compose response",
		zap.String("kind", kind),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, c.maxLogLen)),
	)

	return strings.TrimSpace(raw), nil
}

func (c *Composer) buildEmailPrompt(req ai.EmailRequest) (string, error) {
	jobJSON, err := json.MarshalIndent(jobPayload(req.Job), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	links := "none"
	if len(req.Links) > 0 {
		links = "- " + strings.Join(req.Links, "\n- ")
	}

	style := req.Style
	if style == "" {
		style = ai.StyleFormal
	}

	research := ""
	if req.Research != nil {
		research = "\n" + researchBlock(*req.Research) + "\n"
	}

	var instructions []string
	if recipient := sanitizeSingleLine(req.Personalization.RecipientName, maxRecipientRunes); recipient != "" {
		instructions = append(instructions, "Address the email to "+recipient+".")
	}
	if req.Personalization.AddCallToAction {
		instructions = append(instructions, "Include a call to action at the end.")
	}
	if req.Personalization.MentionCompetitors {
		instructions = append(instructions, fmt.Sprintf("Mention how %s compares favorably to competitors.", c.sender.Company))
	}
	instructionBlock := ""
	if len(instructions) > 0 {
		instructionBlock = "\n" + strings.Join(instructions, "\n") + "\n"
	}

	prompt := strings.NewReplacer(
		"{{SENDER_NAME}}", c.sender.Name,
		"{{SENDER_COMPANY}}", c.sender.Company,
		"{{SENDER_PITCH}}", c.sender.Pitch,
		"{{JOB_JSON}}", string(jobJSON),
		"{{LINKS}}", links,
		"{{RESEARCH}}", research,
		"{{STYLE}}", c.styles[style],
		"{{INSTRUCTIONS}}", instructionBlock,
	).Replace(emailPromptTemplate)

	return prompt, nil
}

func jobPayload(job ai.JobRecord) map[string]any {
	payload := make(map[string]any, len(job.Raw)+5)
	for k, v := range job.Raw {
		payload[k] = v
	}
	payload["role"] = job.Role
	payload["experience"] = job.Experience
	payload["skills"] = job.Skills
	payload["description"] = job.Description
	if job.CompanyName != "" {
		payload["company_name"] = job.CompanyName
	}
	return payload
}

func researchBlock(r ai.CompanyResearch) string {
	size := strings.TrimSpace(r.Size)
	if size == "" {
		size = ai.UnknownSize
	}
	return strings.Join([]string{
		"Company Values: " + strings.Join(r.Values, ", "),
		"Recent Initiatives: " + strings.Join(r.Initiatives, ", "),
		"Potential Pain Points: " + strings.Join(r.PainPoints, ", "),
		"Company Size: " + size,
	}, "\n")
}

// sanitizeSingleLine collapses whitespace, neutralises bracketed role markers
// and caps the length of values interpolated into prompts.
func sanitizeSingleLine(s string, limit int) string {
	s = strings.NewReplacer("[", "(", "]", ")").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return utils.TruncateRunes(s, limit)
}
