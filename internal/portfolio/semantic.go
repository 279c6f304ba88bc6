package portfolio

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cold-mailer/internal/vectorindex"
)

const (
	metadataLinks     = "links"
	metadataTechStack = "techstack"
)

var entryNamespace = uuid.MustParse("8d6f5a0e-4c1b-4f7e-9a35-2b7c1e9d0f42")

// Index is the vector search collaborator used by Semantic.
type Index interface {
	Add(ctx context.Context, document string, metadata map[string]string, id string) error
	Contains(ctx context.Context, id string) (bool, error)
	IDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, ids ...string) error
	Query(ctx context.Context, queryTexts []string, n int, only ...string) ([][]vectorindex.Hit, error)
}

// Semantic ranks entries by nearest-neighbour search over tech stack
// embeddings. It keeps the CSV table as the source of truth and mirrors every
// row into the index.
type Semantic struct {
	*table
	index  Index
	logger *zap.Logger

	mu        sync.RWMutex
	positions map[string]int
}

var _ Matcher = (*Semantic)(nil)

// NewSemantic builds the matcher and adds every table row missing from the index.
func NewSemantic(ctx context.Context, store *Store, entries []Entry, index Index, logger *zap.Logger) (*Semantic, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Semantic{
		table:     newTable(store, entries),
		index:     index,
		logger:    logger,
		positions: make(map[string]int, len(entries)),
	}

	if err := s.Sync(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Sync makes the index mirror the table: rows missing from the index are
// added and documents of rows that no longer exist at their position are
// removed.
func (s *Semantic) Sync(ctx context.Context) error {
	entries := s.snapshot()
	positions := make(map[string]int, len(entries))
	for position, entry := range entries {
		positions[entryID(position, entry)] = position
	}

	s.mu.Lock()
	s.positions = positions
	s.mu.Unlock()

	indexed, err := s.index.IDs(ctx)
	if err != nil {
		return fmt.Errorf("listing portfolio index: %w", err)
	}
	var stale []string
	for _, id := range indexed {
		if _, ok := positions[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.index.Delete(ctx, stale...); err != nil {
			return fmt.Errorf("pruning portfolio index: %w", err)
		}
	}

	added := 0
	for position, entry := range entries {
		id := entryID(position, entry)

		exists, err := s.index.Contains(ctx, id)
		if err != nil {
			return fmt.Errorf("checking portfolio index: %w", err)
		}
		if exists {
			continue
		}

		if err := s.index.Add(ctx, entry.TechStack, entryMetadata(entry), id); err != nil {
			return fmt.Errorf("indexing portfolio entry %d: %w", position, err)
		}
		added++
	}

	s.logger.Info("portfolio index synchronised", zap.Int("added", added), zap.Int("removed", len(stale)))
	return nil
}

func (s *Semantic) Rank(ctx context.Context, skills []string, n int) []Match {
	entries := s.snapshot()
	if n > len(entries) {
		n = len(entries)
	}
	if n <= 0 {
		return []Match{}
	}

	tokens := NormalizeSkills(skills)
	if len(tokens) == 0 {
		return firstN(entries, n)
	}

	results, err := s.index.Query(ctx, tokens, n, s.knownIDs()...)
	if err != nil {
		s.logger.Warn("portfolio index query failed, using insertion order", zap.Error(err))
		return firstN(entries, n)
	}

	chosen := s.merge(results, n, len(entries))

	matches := make([]Match, 0, n)
	for _, position := range chosen {
		matches = append(matches, Match{Link: entries[position].Link})
	}
	return matches
}

// merge interleaves the per-query rankings by rank, skips duplicates and fills
// the remaining slots with unused entries in insertion order.
func (s *Semantic) merge(results [][]vectorindex.Hit, n, total int) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chosen := make([]int, 0, n)
	used := make(map[int]bool, n)

	for rank := 0; len(chosen) < n; rank++ {
		progressed := false
		for _, hits := range results {
			if rank >= len(hits) {
				continue
			}
			progressed = true

			position, ok := s.positions[hits[rank].ID]
			if !ok || position >= total || used[position] {
				continue
			}
			used[position] = true
			chosen = append(chosen, position)
			if len(chosen) == n {
				break
			}
		}
		if !progressed {
			break
		}
	}

	for position := 0; position < total && len(chosen) < n; position++ {
		if !used[position] {
			used[position] = true
			chosen = append(chosen, position)
		}
	}

	return chosen
}

func (s *Semantic) Add(ctx context.Context, techStack, link string) error {
	entry := Entry{TechStack: techStack, Link: link}

	position, err := s.add(entry)
	if err != nil {
		return err
	}

	id := entryID(position, entry)
	s.remember(id, position)

	if err := s.index.Add(ctx, entry.TechStack, entryMetadata(entry), id); err != nil {
		return fmt.Errorf("indexing portfolio entry: %w", err)
	}

	s.logger.Info("portfolio entry added", zap.String("tech_stack", techStack), zap.String("link", link))
	return nil
}

func (s *Semantic) Entries() []Entry {
	return s.snapshot()
}

func (s *Semantic) knownIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.positions))
	for id := range s.positions {
		ids = append(ids, id)
	}
	return ids
}

func (s *Semantic) remember(id string, position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[id] = position
}

func entryID(position int, entry Entry) string {
	name := fmt.Sprintf("%d\x00%s\x00%s", position, entry.TechStack, entry.Link)
	return uuid.NewSHA1(entryNamespace, []byte(name)).String()
}

func entryMetadata(entry Entry) map[string]string {
	return map[string]string{
		metadataLinks:     entry.Link,
		metadataTechStack: entry.TechStack,
	}
}
