// Package history keeps generated emails in a JSON array file.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DateLayout     = "2006-01-02 15:04:05"
	UnknownRole    = "Unknown Role"
	UnknownCompany = "Unknown Company"
)

type Entry struct {
	Date          string `json:"date"`
	JobTitle      string `json:"job_title"`
	Company       string `json:"company"`
	URL           string `json:"url"`
	TemplateStyle string `json:"template_style"`
	Email         string `json:"email"`
}

// NewEntry stamps an entry with the local time at now and fills missing job
// details with placeholders.
func NewEntry(now time.Time, email, role, company, url, style string) Entry {
	if strings.TrimSpace(role) == "" {
		role = UnknownRole
	}
	if strings.TrimSpace(company) == "" {
		company = UnknownCompany
	}

	return Entry{
		Date:          now.Format(DateLayout),
		JobTitle:      role,
		Company:       company,
		URL:           url,
		TemplateStyle: style,
		Email:         email,
	}
}

type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns every stored entry in insertion order. A missing or unreadable
// file is treated as an empty history.
func (s *Store) Load() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Append adds entry to the end of the history and rewrites the file.
func (s *Store) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.load(), entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing history file %q: %w", s.path, err)
	}
	return nil
}

func (s *Store) load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("history file is unreadable, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("history file is corrupt, starting empty", zap.String("path", s.path), zap.Error(err))
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}
