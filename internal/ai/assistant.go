package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnparseable is returned when the model output for a job page cannot be
// decoded. It usually means the page text did not fit into the model context.
var ErrUnparseable = errors.New("parsing failed, content too large")

// Style selects the tone instruction used when composing an email.
type Style string

const (
	StyleFormal          Style = "formal"
	StyleConversational  Style = "conversational"
	StyleProblemSolution Style = "problem-solution"
)

// Styles lists the supported styles in presentation order.
func Styles() []Style {
	return []Style{StyleFormal, StyleConversational, StyleProblemSolution}
}

// ParseStyle maps user input to a Style. Empty input selects StyleFormal.
func ParseStyle(s string) (Style, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")

	if normalized == "" {
		return StyleFormal, nil
	}
	for _, style := range Styles() {
		if string(style) == normalized {
			return style, nil
		}
	}
	return "", fmt.Errorf("unknown style %q (expected one of formal, conversational, problem-solution)", s)
}

// JobRecord is one job posting extracted from a careers page.
type JobRecord struct {
	Role        string         `json:"role" mapstructure:"role"`
	Experience  string         `json:"experience" mapstructure:"experience"`
	Skills      []string       `json:"skills" mapstructure:"skills"`
	Description string         `json:"description" mapstructure:"description"`
	CompanyName string         `json:"company_name,omitempty" mapstructure:"company_name"`
	Raw         map[string]any `json:"-" mapstructure:",remain"`
}

// CompanyResearch summarizes a company's about page.
type CompanyResearch struct {
	Values      []string       `json:"values"`
	Initiatives []string       `json:"initiatives"`
	PainPoints  []string       `json:"pain_points"`
	Size        string         `json:"size"`
	Extra       map[string]any `json:"extra,omitempty"`
}

const UnknownSize = "Unknown"

// EmptyResearch is the result used whenever research is unavailable.
func EmptyResearch() CompanyResearch {
	return CompanyResearch{
		Values:      []string{},
		Initiatives: []string{},
		PainPoints:  []string{},
		Size:        UnknownSize,
	}
}

// IsEmpty reports whether the research carries anything worth mentioning.
func (r CompanyResearch) IsEmpty() bool {
	size := strings.TrimSpace(r.Size)
	return len(r.Values) == 0 && len(r.Initiatives) == 0 && len(r.PainPoints) == 0 &&
		(size == "" || strings.EqualFold(size, UnknownSize))
}

// Personalization carries the optional knobs of a generated email.
type Personalization struct {
	RecipientName          string `json:"recipient_name"`
	AddCallToAction        bool   `json:"add_call_to_action"`
	MentionCompetitors     bool   `json:"mention_competitors"`
	IncludeCompanyResearch bool   `json:"include_company_research"`
	CompanyURL             string `json:"company_url"`
}

// DefaultPersonalization mirrors the interactive defaults.
func DefaultPersonalization() Personalization {
	return Personalization{
		AddCallToAction:        true,
		IncludeCompanyResearch: true,
	}
}

// EmailRequest is everything the composer needs for one email.
type EmailRequest struct {
	Job             JobRecord
	Links           []string
	Style           Style
	Personalization Personalization
	Research        *CompanyResearch
}

type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

type Extractor interface {
	ExtractJobs(ctx context.Context, pageText string) ([]JobRecord, error)
}

// Researcher never fails; it returns EmptyResearch when nothing is known.
type Researcher interface {
	Research(ctx context.Context, companyURL, companyName string) CompanyResearch
}

type Composer interface {
	WriteEmail(ctx context.Context, req EmailRequest) (string, error)
	FollowUp(ctx context.Context, email string, days int) (string, error)
}
