package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/moodify/internal/metadata"
	"github.com/hyperjump/moodify/internal/models"
	"github.com/hyperjump/moodify/internal/vector"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		dimensions INTEGER NOT NULL,
		model TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

func (s *SQLiteStorage) EnsureCollection(ctx context.Context, name string, dimensions int, model string) (*CollectionInfo, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimensions, model, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, dimensions, model, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	var info CollectionInfo
	err = s.db.QueryRowContext(ctx,
		`SELECT name, dimensions, model, created_at FROM collections WHERE name = ?`, name,
	).Scan(&info.Name, &info.Dimensions, &info.Model, &info.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	return &info, nil
}

func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name, c.dimensions, c.model, c.created_at, COUNT(d.id)
		 FROM collections c LEFT JOIN documents d ON d.collection = c.name
		 GROUP BY c.name ORDER BY c.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []*CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Dimensions, &info.Model, &info.CreatedAt, &info.Documents); err != nil {
			return nil, err
		}
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

// UpsertDocuments writes all batches atomically; an existing (collection, id)
// row is overwritten.
func (s *SQLiteStorage) UpsertDocuments(ctx context.Context, writes ...Write) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (collection, id, content, metadata, embedding, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, w := range writes {
		for _, rec := range w.Records {
			metadataJSON, err := json.Marshal(rec.Document.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata for %s: %w", rec.Document.ID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				w.Collection, rec.Document.ID, rec.Document.Content, string(metadataJSON), vector.Encode(rec.Embedding), now,
			); err != nil {
				return fmt.Errorf("failed to upsert %s into %s: %w", rec.Document.ID, w.Collection, err)
			}
			rec.Document.UpdatedAt = now
		}
	}

	return tx.Commit()
}

// GetDocuments returns the documents found for ids, in the order of ids.
// Missing ids are skipped.
func (s *SQLiteStorage) GetDocuments(ctx context.Context, collection string, ids []string) ([]*models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, content, metadata, updated_at FROM documents
		WHERE collection = ? AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.QueryContext(ctx, query, append([]any{collection}, stringArgs(ids)...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]*models.Document, len(ids))
	for rows.Next() {
		var doc models.Document
		var metadataJSON sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doc.Metadata = metadata.Map{}
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", doc.ID, err)
			}
		}
		found[doc.ID] = &doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	docs := make([]*models.Document, 0, len(found))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if doc, ok := found[id]; ok && !seen[id] {
			docs = append(docs, doc)
			seen[id] = true
		}
	}
	return docs, nil
}

func (s *SQLiteStorage) ExistingIDs(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT id FROM documents WHERE collection = ? AND id IN (` + placeholders(len(ids)) + `)`
	rows, err := s.db.QueryContext(ctx, query, append([]any{collection}, stringArgs(ids)...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) CountDocuments(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

func (s *SQLiteStorage) ScanEmbeddings(ctx context.Context, collection string, fn func(id string, vec []float32) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		vec, err := vector.Decode(blob)
		if err != nil {
			return fmt.Errorf("corrupt embedding for %s in %s: %w", id, collection, err)
		}
		if err := fn(id, vec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
