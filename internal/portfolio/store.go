package portfolio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	headerTechStack = "Techstack"
	headerLinks     = "Links"
)

// Store persists the entry table as a two-column CSV file with a header row.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads every row of the CSV file. Columns are located by header name so
// files written by other tools keep working as long as both columns exist.
func (s *Store) Load() ([]Entry, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries, err := decodeCSV(file)
	if err != nil {
		return nil, fmt.Errorf("reading portfolio file %q: %w", s.path, err)
	}
	return entries, nil
}

// LoadOrSeed loads the table from disk. When the file does not exist yet the
// seed table is written to it and returned.
func (s *Store) LoadOrSeed(seed []Entry) ([]Entry, error) {
	entries, err := s.Load()
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := s.Save(seed); err != nil {
		return nil, err
	}
	return append([]Entry(nil), seed...), nil
}

// Save overwrites the file with the full table.
func (s *Store) Save(entries []Entry) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{headerTechStack, headerLinks}); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := w.Write([]string{entry.TechStack, entry.Link}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding portfolio: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing portfolio file %q: %w", s.path, err)
	}
	return nil
}

func decodeCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}

	techIdx, linkIdx := -1, -1
	for i, column := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))) {
		case "techstack", "tech_stack":
			techIdx = i
		case "links", "link":
			linkIdx = i
		}
	}
	if techIdx == -1 || linkIdx == -1 {
		return nil, fmt.Errorf("header must contain %q and %q columns, got %v", headerTechStack, headerLinks, header)
	}

	entries := make([]Entry, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		entry := Entry{}
		if techIdx < len(record) {
			entry.TechStack = record[techIdx]
		}
		if linkIdx < len(record) {
			entry.Link = record[linkIdx]
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
