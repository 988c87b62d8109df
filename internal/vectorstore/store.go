// Package vectorstore implements a brute-force cosine-similarity vector
// store over SQLite, adapted from the teacher's sqlite-vec backend to the
// assistant runtime's exact contract: dimension checks, a migration flag
// when the stored embedding model changes, and upsert-by-id.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/corewire/assistant/internal/chatmodel"
)

// ErrDimensionMismatch is returned by Store when an entry's embedding
// length does not equal the store's configured dimension.
type ErrDimensionMismatch struct {
	Expected, Got int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrMigrationRequired is returned by Search while the store's sample
// entry disagrees with the configured model/dimension.
var ErrMigrationRequired = errors.New("vectorstore: migration required: stored embedding model does not match current embedder")

// Store is a SQLite-backed vector store. Store/Delete/Clear share a
// write-mutex that is also held for the duration of a migration replay,
// so concurrent writes during migration are blocked rather than
// interleaved (the spec's recommended resolution for that open question).
type Store struct {
	db         *sql.DB
	modelName  string
	dimensions int

	mu             sync.Mutex
	needsMigration bool
}

// Config configures a new Store.
type Config struct {
	Path       string
	ModelName  string
	Dimensions int
}

// Open opens or creates the vector database at cfg.Path, then checks any
// existing sample row's (model_name, dimensions) against cfg for a
// migration mismatch.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open %q: %w", cfg.Path, err)
	}
	s := &Store{db: db, modelName: cfg.ModelName, dimensions: cfg.Dimensions}
	if err := s.migrateSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.detectMigrationNeed(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vector_entries (
			id TEXT PRIMARY KEY,
			embedding BLOB NOT NULL,
			source_text TEXT NOT NULL,
			metadata TEXT,
			model_name TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("vectorstore: migrate: %w", err)
	}
	return nil
}

func (s *Store) detectMigrationNeed(ctx context.Context) error {
	var modelName string
	var dims int
	row := s.db.QueryRowContext(ctx, `SELECT model_name, dimensions FROM vector_entries LIMIT 1`)
	switch err := row.Scan(&modelName, &dims); {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("vectorstore: detect migration: %w", err)
	}
	if modelName != s.modelName || dims != s.dimensions {
		s.needsMigration = true
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NeedsMigration reports whether the store was opened against a
// different embedding model/dimension than its existing contents.
func (s *Store) NeedsMigration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsMigration
}

// Store upserts entry by id. Fails with ErrDimensionMismatch if the
// embedding's length disagrees with the store's configured dimension.
func (s *Store) Store(ctx context.Context, entry chatmodel.VectorEntry) error {
	if len(entry.Embedding) != s.dimensions {
		return &ErrDimensionMismatch{Expected: s.dimensions, Got: len(entry.Embedding)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ModelName = s.modelName
	entry.Dimensions = s.dimensions

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("vectorstore: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vector_entries (id, embedding, source_text, metadata, model_name, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding = excluded.embedding,
			source_text = excluded.source_text,
			metadata = excluded.metadata,
			model_name = excluded.model_name,
			dimensions = excluded.dimensions,
			created_at = excluded.created_at`,
		entry.ID, encodeEmbedding(entry.Embedding), entry.SourceText, string(metadataJSON),
		entry.ModelName, entry.Dimensions, entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("vectorstore: store: %w", err)
	}
	return nil
}

// Search returns the top `limit` entries by descending cosine similarity
// to query. Fails with ErrMigrationRequired if the store is in
// migration-required state.
func (s *Store) Search(ctx context.Context, query []float32, limit int) ([]chatmodel.SearchHit, error) {
	s.mu.Lock()
	migrating := s.needsMigration
	s.mu.Unlock()
	if migrating {
		return nil, ErrMigrationRequired
	}
	if limit <= 0 {
		limit = 10
	}

	entries, err := s.listAllLocked(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]chatmodel.SearchHit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, chatmodel.SearchHit{Entry: e, Score: cosineSimilarity(query, e.Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Delete removes entries by id.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM vector_entries WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("vectorstore: delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Clear removes every entry and resets the migration flag.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM vector_entries`); err != nil {
		return fmt.Errorf("vectorstore: clear: %w", err)
	}
	s.needsMigration = false
	return nil
}

// ListAll returns every stored entry.
func (s *Store) ListAll(ctx context.Context) ([]chatmodel.VectorEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAllLocked(ctx)
}

func (s *Store) listAllLocked(ctx context.Context) ([]chatmodel.VectorEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding, source_text, metadata, model_name, dimensions, created_at FROM vector_entries`)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list all: %w", err)
	}
	defer rows.Close()

	var out []chatmodel.VectorEntry
	for rows.Next() {
		var e chatmodel.VectorEntry
		var blob []byte
		var metadataJSON, createdAt string
		if err := rows.Scan(&e.ID, &blob, &e.SourceText, &metadataJSON, &e.ModelName, &e.Dimensions, &createdAt); err != nil {
			return nil, fmt.Errorf("vectorstore: scan entry: %w", err)
		}
		e.Embedding = decodeEmbedding(blob)
		if metadataJSON != "" {
			_ = json.Unmarshal([]byte(metadataJSON), &e.Metadata)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Migrate re-embeds every stored entry with reembed and replaces the
// store's contents in place, holding the same write-mutex Store/Delete/
// Clear use for its entire duration so no concurrent write interleaves
// with the replay. newModelName/newDimensions become the store's
// configured model identity once the replay commits; the migration flag
// is cleared. Returns the number of entries migrated.
func (s *Store) Migrate(ctx context.Context, newModelName string, newDimensions int, reembed func(ctx context.Context, texts []string) ([][]float32, error)) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.listAllLocked(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		s.modelName = newModelName
		s.dimensions = newDimensions
		s.needsMigration = false
		return 0, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.SourceText
	}
	vectors, err := reembed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: migrate: re-embed: %w", err)
	}
	if len(vectors) != len(entries) {
		return 0, fmt.Errorf("vectorstore: migrate: embedder returned %d vectors for %d entries", len(vectors), len(entries))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_entries`); err != nil {
		return 0, fmt.Errorf("vectorstore: migrate: clear: %w", err)
	}

	for i, e := range entries {
		metadataJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return 0, fmt.Errorf("vectorstore: migrate: marshal metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vector_entries (id, embedding, source_text, metadata, model_name, dimensions, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, encodeEmbedding(vectors[i]), e.SourceText, string(metadataJSON),
			newModelName, newDimensions, e.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return 0, fmt.Errorf("vectorstore: migrate: re-store %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("vectorstore: migrate: commit: %w", err)
	}

	s.modelName = newModelName
	s.dimensions = newDimensions
	s.needsMigration = false
	return len(entries), nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_entries`).Scan(&n)
	return n, err
}

// StoredModelInfo returns (model_name, dimensions) derived from a sample
// entry, or ok=false if the store is empty.
func (s *Store) StoredModelInfo(ctx context.Context) (modelName string, dimensions int, ok bool) {
	row := s.db.QueryRowContext(ctx, `SELECT model_name, dimensions FROM vector_entries LIMIT 1`)
	if err := row.Scan(&modelName, &dimensions); err != nil {
		return "", 0, false
	}
	return modelName, dimensions, true
}

// Metadata returns the store's configured model name and dimension.
func (s *Store) Metadata() (modelName string, dimensions int) {
	return s.modelName, s.dimensions
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// cosineSimilarity returns 0 for mismatched lengths or a zero-norm
// vector, rather than dividing by zero.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
