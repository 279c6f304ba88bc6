// Package outreach runs the end-to-end flow from a job posting URL to a
// personalized email and keeps the email history.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/history"
	"github.com/spigell/cold-mailer/internal/logger"
	"github.com/spigell/cold-mailer/internal/portfolio"
	"github.com/spigell/cold-mailer/internal/webpage"
)

const (
	DefaultLinks = 2
	MinLinks     = 1
	MaxLinks     = 5
)

var (
	// ErrNoJobs is returned when the page yields no job postings.
	ErrNoJobs = errors.New("no job postings found on the page")
	// ErrInvalidRequest marks input validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

type pageFetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

type historyStore interface {
	Load() []history.Entry
	Append(entry history.Entry) error
}

type Deps struct {
	Fetcher    pageFetcher
	Extractor  ai.Extractor
	Matcher    portfolio.Matcher
	Researcher ai.Researcher
	Composer   ai.Composer
	History    historyStore
	Logger     *zap.Logger
}

type Request struct {
	URL             string             `json:"url"`
	Style           ai.Style           `json:"style"`
	Links           int                `json:"links"`
	Personalization ai.Personalization `json:"personalization"`
}

// Step records one stage of a generation run.
type Step struct {
	Name    string            `json:"name"`
	Elapsed time.Duration     `json:"elapsed"`
	Details map[string]string `json:"details,omitempty"`
}

type Result struct {
	URL      string              `json:"url"`
	Style    ai.Style            `json:"style"`
	Job      ai.JobRecord        `json:"job"`
	JobCount int                 `json:"job_count"`
	Links    []string            `json:"links"`
	Research *ai.CompanyResearch `json:"research,omitempty"`
	Email    string              `json:"email"`
	Steps    []Step              `json:"steps"`
}

type Service struct {
	deps Deps
	now  func() time.Time
}

func New(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{deps: deps, now: time.Now}
}

// Normalize validates req and fills defaults.
func Normalize(req Request) (Request, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return req, fmt.Errorf("%w: url is required", ErrInvalidRequest)
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return req, fmt.Errorf("%w: url %q must be an absolute http(s) url", ErrInvalidRequest, req.URL)
	}

	style, err := ai.ParseStyle(string(req.Style))
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Style = style

	if req.Links == 0 {
		req.Links = DefaultLinks
	}
	if req.Links < MinLinks || req.Links > MaxLinks {
		return req, fmt.Errorf("%w: links must be between %d and %d, got %d", ErrInvalidRequest, MinLinks, MaxLinks, req.Links)
	}

	return req, nil
}

// Generate fetches the posting at req.URL and writes an email for its first job.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}

	log := logger.WithJob(s.deps.Logger, req.URL, string(req.Style))
	result := &Result{URL: req.URL, Style: req.Style}

	var pageText string
	err = s.step(result, log, "fetch", func(details map[string]string) error {
		text, err := s.deps.Fetcher.FetchText(ctx, req.URL)
		if err != nil {
			return err
		}
		pageText = webpage.CleanText(text)
		details["text_length"] = strconv.Itoa(utf8.RuneCountInString(pageText))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var jobs []ai.JobRecord
	err = s.step(result, log, "extract", func(details map[string]string) error {
		jobs, err = s.deps.Extractor.ExtractJobs(ctx, pageText)
		if err != nil {
			return err
		}
		details["jobs"] = strconv.Itoa(len(jobs))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		log.Info("no jobs extracted")
		return nil, ErrNoJobs
	}
	result.Job = jobs[0]
	result.JobCount = len(jobs)

	s.track(result, log, "match", func(details map[string]string) {
		skills := portfolio.NormalizeSkills(result.Job.Skills)
		matches := s.deps.Matcher.Rank(ctx, skills, req.Links)

		result.Links = make([]string, 0, len(matches))
		for _, m := range matches {
			result.Links = append(result.Links, m.Link)
		}
		details["skills"] = strings.Join(skills, ", ")
		details["links"] = strconv.Itoa(len(result.Links))
	})

	if req.Personalization.IncludeCompanyResearch && s.deps.Researcher != nil {
		s.track(result, log, "research", func(details map[string]string) {
			companyURL := strings.TrimSpace(req.Personalization.CompanyURL)
			if companyURL == "" {
				companyURL = req.URL
			}
			research := s.deps.Researcher.Research(ctx, companyURL, result.Job.CompanyName)
			result.Research = &research
			details["company_url"] = companyURL
			details["empty"] = strconv.FormatBool(research.IsEmpty())
		})
	}

	err = s.step(result, log, "compose", func(details map[string]string) error {
		email, err := s.deps.Composer.WriteEmail(ctx, ai.EmailRequest{
			Job:             result.Job,
			Links:           result.Links,
			Style:           req.Style,
			Personalization: req.Personalization,
			Research:        result.Research,
		})
		if err != nil {
			return err
		}
		result.Email = email
		details["email_length"] = strconv.Itoa(utf8.RuneCountInString(email))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// step runs fn, records it in result and wraps its error with the step name.
func (s *Service) step(result *Result, log *zap.Logger, name string, fn func(details map[string]string) error) error {
	started := s.now()
	details := map[string]string{}

	if err := fn(details); err != nil {
		log.Debug("step failed", zap.String("name", name), zap.Duration("elapsed", s.now().Sub(started)), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}

	s.record(result, log, name, started, details)
	return nil
}

// track runs a step that cannot fail.
func (s *Service) track(result *Result, log *zap.Logger, name string, fn func(details map[string]string)) {
	started := s.now()
	details := map[string]string{}

	fn(details)
	s.record(result, log, name, started, details)
}

func (s *Service) record(result *Result, log *zap.Logger, name string, started time.Time, details map[string]string) {
	elapsed := s.now().Sub(started)
	result.Steps = append(result.Steps, Step{Name: name, Elapsed: elapsed, Details: details})

	fields := []zap.Field{zap.String("name", name), zap.Duration("elapsed", elapsed)}
	for key, value := range details {
		fields = append(fields, zap.String(key, value))
	}
	log.Info("step finished", fields...)
}

// FollowUp writes a reminder for an email sent days ago.
func (s *Service) FollowUp(ctx context.Context, email string, days int) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	if days < 0 {
		return "", fmt.Errorf("%w: days must not be negative", ErrInvalidRequest)
	}

	followUp, err := s.deps.Composer.FollowUp(ctx, email, days)
	if err != nil {
		return "", fmt.Errorf("follow-up: %w", err)
	}
	return followUp, nil
}

// SaveHistory appends the generated email to the history file.
func (s *Service) SaveHistory(result *Result) (history.Entry, error) {
	if result == nil {
		return history.Entry{}, fmt.Errorf("%w: result is required", ErrInvalidRequest)
	}
	return s.RecordHistory(result.Email, result.Job.Role, result.Job.CompanyName, result.URL, string(result.Style))
}

// RecordHistory appends an email that was produced elsewhere.
func (s *Service) RecordHistory(email, role, company, jobURL, style string) (history.Entry, error) {
	if strings.TrimSpace(email) == "" {
		return history.Entry{}, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	if s.deps.History == nil {
		return history.Entry{}, errors.New("history store is not configured")
	}

	entry := history.NewEntry(s.now(), email, role, company, jobURL, style)
	if err := s.deps.History.Append(entry); err != nil {
		return history.Entry{}, err
	}

	s.deps.Logger.Info("email saved to history",
		zap.String("job_title", entry.JobTitle),
		zap.String("company", entry.Company),
	)
	return entry, nil
}

func (s *Service) History() []history.Entry {
	if s.deps.History == nil {
		return []history.Entry{}
	}
	return s.deps.History.Load()
}

func (s *Service) Matcher() portfolio.Matcher {
	return s.deps.Matcher
}
