// Package vectorindex is a small persistent nearest-neighbour index backed by
// SQLite. Documents are embedded on insert and ranked by cosine similarity.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	_ "modernc.org/sqlite"
)

// Embedder turns texts into vectors, one per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is a single nearest-neighbour result.
type Hit struct {
	ID       string
	Document string
	Score    float32
	Meta     map[string]string
}

// Index stores documents together with their embeddings.
type Index struct {
	db       *sql.DB
	embedder Embedder
}

// Open opens (or creates) the index database at path.
func Open(path string, embedder Embedder) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("vector index requires an embedder")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS documents (
		seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		id       TEXT NOT NULL UNIQUE,
		document TEXT NOT NULL,
		metadata TEXT NOT NULL,
		vector   BLOB NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	return &Index{db: db, embedder: embedder}, nil
}

// Add embeds the document and stores it under id. An existing id is replaced in
// place and keeps its original position.
func (i *Index) Add(ctx context.Context, document string, metadata map[string]string, id string) error {
	vectors, err := i.embedder.Embed(ctx, []string{document})
	if err != nil {
		return fmt.Errorf("embedding document %s: %w", id, err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embedding document %s: expected 1 vector, got %d", id, len(vectors))
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", id, err)
	}

	_, err = i.db.ExecContext(ctx,
		`INSERT INTO documents (id, document, metadata, vector) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, metadata = excluded.metadata, vector = excluded.vector`,
		id, document, string(meta), encodeVector(vectors[0]),
	)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", id, err)
	}
	return nil
}

// Contains reports whether a document with id is stored.
func (i *Index) Contains(ctx context.Context, id string) (bool, error) {
	var exists int
	err := i.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking document %s: %w", id, err)
	}
	return true, nil
}

// IDs lists stored document ids in insertion order.
func (i *Index) IDs(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, "SELECT id FROM documents ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("listing document ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes the documents with the given ids. Unknown ids are ignored.
func (i *Index) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := i.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
	}
	return nil
}

// Count returns the number of stored documents.
func (i *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Query returns, for every query text, up to n documents ordered by descending
// cosine similarity. Equal scores keep insertion order. When only is not empty
// the search is restricted to those ids.
func (i *Index) Query(ctx context.Context, queryTexts []string, n int, only ...string) ([][]Hit, error) {
	results := make([][]Hit, len(queryTexts))
	if len(queryTexts) == 0 || n <= 0 {
		return results, nil
	}

	queries, err := i.embedder.Embed(ctx, queryTexts)
	if err != nil {
		return nil, fmt.Errorf("embedding queries: %w", err)
	}
	if len(queries) != len(queryTexts) {
		return nil, fmt.Errorf("embedding queries: expected %d vectors, got %d", len(queryTexts), len(queries))
	}

	docs, err := i.documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(only) > 0 {
		allowed := make(map[string]bool, len(only))
		for _, id := range only {
			allowed[id] = true
		}
		docs = slices.DeleteFunc(docs, func(doc storedDocument) bool { return !allowed[doc.hit.ID] })
	}

	for q, query := range queries {
		hits := make([]Hit, 0, len(docs))
		for _, doc := range docs {
			hit := doc.hit
			hit.Score = cosine(query, doc.vector)
			hits = append(hits, hit)
		}

		slices.SortStableFunc(hits, func(a, b Hit) int {
			switch {
			case a.Score > b.Score:
				return -1
			case a.Score < b.Score:
				return 1
			default:
				return 0
			}
		})

		if len(hits) > n {
			hits = hits[:n]
		}
		results[q] = hits
	}

	return results, nil
}

// Close closes the underlying database connection.
func (i *Index) Close() error {
	return i.db.Close()
}

type storedDocument struct {
	hit    Hit
	vector []float32
}

func (i *Index) documents(ctx context.Context) ([]storedDocument, error) {
	rows, err := i.db.QueryContext(ctx, "SELECT id, document, metadata, vector FROM documents ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []storedDocument
	for rows.Next() {
		var (
			doc  storedDocument
			meta string
			blob []byte
		)
		if err := rows.Scan(&doc.hit.ID, &doc.hit.Document, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &doc.hit.Meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", doc.hit.ID, err)
		}
		doc.vector = decodeVector(blob)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for idx, f := range v {
		binary.LittleEndian.PutUint32(buf[4*idx:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for idx := range v {
		v[idx] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*idx:]))
	}
	return v
}

// cosine returns 0 when either vector has zero length or the dimensions differ.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for idx := range a {
		x, y := float64(a[idx]), float64(b[idx])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
