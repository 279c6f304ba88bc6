package portfolio

import "sync"

// table is the in-memory entry list shared by both backends. Every append is
// followed by a full rewrite of the backing file.
type table struct {
	mu      sync.RWMutex
	store   *Store
	entries []Entry
}

func newTable(store *Store, entries []Entry) *table {
	return &table{
		store:   store,
		entries: append([]Entry(nil), entries...),
	}
}

func (t *table) snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

// add appends the entry, persists the table and returns the entry position.
// The in-memory table is left unchanged when the write fails.
func (t *table) add(entry Entry) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := append(append([]Entry(nil), t.entries...), entry)
	if err := t.store.Save(next); err != nil {
		return 0, err
	}

	t.entries = next
	return len(next) - 1, nil
}
