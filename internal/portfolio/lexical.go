package portfolio

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Bias adds Weight to an entry's score for every occurrence of any of Terms in
// its tech stack, independently of the requested skills.
type Bias struct {
	Terms  []string
	Weight float64
}

func (b Bias) normalized() Bias {
	if b.Weight == 0 {
		return Bias{}
	}

	terms := make([]string, 0, len(b.Terms))
	for _, term := range b.Terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return Bias{}
	}
	return Bias{Terms: terms, Weight: b.Weight}
}

// Lexical scores entries by counting requested skills that occur as substrings
// of the lower-cased tech stack.
type Lexical struct {
	*table
	bias   Bias
	logger *zap.Logger
}

var _ Matcher = (*Lexical)(nil)

func NewLexical(store *Store, entries []Entry, bias Bias, logger *zap.Logger) *Lexical {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lexical{
		table:  newTable(store, entries),
		bias:   bias.normalized(),
		logger: logger,
	}
}

type scoredEntry struct {
	entry Entry
	score float64
}

func (l *Lexical) Rank(_ context.Context, skills []string, n int) []Match {
	entries := l.snapshot()
	tokens := NormalizeSkills(skills)

	scored := make([]scoredEntry, 0, len(entries))
	relevant := false
	for _, entry := range entries {
		score := l.score(entry.TechStack, tokens)
		if score > 0 {
			relevant = true
		}
		scored = append(scored, scoredEntry{entry: entry, score: score})
	}

	if !relevant {
		l.logger.Debug("no portfolio entry matched the skills, using insertion order",
			zap.Strings("skills", tokens),
			zap.Int("entries", len(entries)),
		)
		return firstN(entries, n)
	}

	slices.SortStableFunc(scored, func(a, b scoredEntry) int {
		return cmp.Compare(b.score, a.score)
	})

	ranked := make([]Entry, 0, len(scored))
	for _, s := range scored {
		ranked = append(ranked, s.entry)
	}
	return firstN(ranked, n)
}

func (l *Lexical) score(techStack string, skills []string) float64 {
	stack := strings.ToLower(techStack)

	var score float64
	for _, skill := range skills {
		if strings.Contains(stack, skill) {
			score++
		}
	}
	for _, term := range l.bias.Terms {
		score += l.bias.Weight * float64(strings.Count(stack, term))
	}
	return score
}

func (l *Lexical) Add(_ context.Context, techStack, link string) error {
	if _, err := l.add(Entry{TechStack: techStack, Link: link}); err != nil {
		return err
	}
	l.logger.Info("portfolio entry added", zap.String("tech_stack", techStack), zap.String("link", link))
	return nil
}

func (l *Lexical) Entries() []Entry {
	return l.snapshot()
}
