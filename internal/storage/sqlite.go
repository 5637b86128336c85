package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/tsrag/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, dimensions int) (*SQLiteStorage, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite storage needs a database path")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, dimensions: dimensions}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		data TEXT,
		metadata TEXT,
		embedding BLOB NOT NULL,
		fingerprint TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_seq ON documents(seq);
	`
	_, err := db.Exec(schema)
	return err
}

// Put inserts or replaces a document. A replaced document gets a new sequence number.
func (s *SQLiteStorage) Put(ctx context.Context, doc *models.Document) error {
	if err := validateDocument(doc, s.dimensions); err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	var dataJSON []byte
	if doc.Data != nil {
		if dataJSON, err = json.Marshal(doc.Data); err != nil {
			return fmt.Errorf("failed to marshal data: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, seq, data, metadata, embedding, fingerprint, created_at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents), ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   seq = (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents),
		   data = excluded.data,
		   metadata = excluded.metadata,
		   embedding = excluded.embedding,
		   fingerprint = excluded.fingerprint,
		   created_at = excluded.created_at`,
		doc.ID, nullableString(dataJSON), string(metadataJSON), float32SliceToBytes(doc.Embedding), doc.Fingerprint, doc.CreatedAt,
	)
	return err
}

func nullableString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// Get returns a document by ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var dataJSON, metadataJSON, fingerprint sql.NullString
	var blob []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT id, data, metadata, embedding, fingerprint, created_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &dataJSON, &metadataJSON, &blob, &fingerprint, &doc.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundError(id)
	}
	if err != nil {
		return nil, err
	}

	if dataJSON.Valid {
		if err := json.Unmarshal([]byte(dataJSON.String), &doc.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if doc.Embedding, err = bytesToFloat32Slice(blob); err != nil {
		return nil, err
	}
	doc.Fingerprint = fingerprint.String
	return &doc, nil
}

// Delete removes a document by ID.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListIDs reads all ids ordered by sequence number.
func (s *SQLiteStorage) ListIDs(ctx context.Context) (iter.Seq[string], error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sliceSeq(ids), nil
}

// Count returns the total number of documents.
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Dimensions returns the embedding dimension the store accepts.
func (s *SQLiteStorage) Dimensions() int {
	return s.dimensions
}

// Persistent is true for SQLite.
func (s *SQLiteStorage) Persistent() bool {
	return true
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
