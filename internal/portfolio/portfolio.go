// Package portfolio ranks stored portfolio samples against the skills of a job
// posting. Two scoring backends share the same Matcher contract: a lexical
// keyword-overlap scorer and an embedding index.
package portfolio

import (
	"context"
	"fmt"
	"strings"
)

const (
	BackendLexical  = "lexical"
	BackendSemantic = "semantic"
)

// Entry is a stored technology description paired with a sample link.
type Entry struct {
	TechStack string `json:"tech_stack"`
	Link      string `json:"link"`
}

// Match is a single ranked portfolio link. Only the rank order is exposed.
type Match struct {
	Link string `json:"link"`
}

// Matcher ranks portfolio entries against requested skills.
//
// Rank returns min(n, len(Entries())) matches and never fails; when no entry is
// relevant the first n entries are returned in insertion order. Add appends an
// entry and persists the whole table before returning.
type Matcher interface {
	Rank(ctx context.Context, skills []string, n int) []Match
	Add(ctx context.Context, techStack, link string) error
	Entries() []Entry
}

// NormalizeSkills flattens the skills shapes produced upstream into an ordered
// set of lower-cased tokens. A single string is one token and is never split.
func NormalizeSkills(skills any) []string {
	var raw []string
	switch v := skills.(type) {
	case nil:
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				raw = append(raw, s)
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(v)}
	}

	seen := make(map[string]struct{}, len(raw))
	tokens := make([]string, 0, len(raw))
	for _, s := range raw {
		token := strings.ToLower(strings.TrimSpace(s))
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	return tokens
}

func firstN(entries []Entry, n int) []Match {
	if n > len(entries) {
		n = len(entries)
	}
	if n <= 0 {
		return []Match{}
	}

	matches := make([]Match, 0, n)
	for _, entry := range entries[:n] {
		matches = append(matches, Match{Link: entry.Link})
	}
	return matches
}
