// Package store is the content-addressed persistence layer: schema and
// migrations, the provenance ledger, and CRUD for every entity
// family, all backed by a single SQLite file with WAL journaling, FK
// enforcement, a sqlite-vec virtual table for cosine search, and an FTS5
// index synced by triggers.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/danvers-labs/provkg/errs"
)

func init() {
	sqlite_vec.Auto()
}

// Store wraps a single SQLite database file implementing the full data
// model: documents, provenance, entities, knowledge nodes/edges, chunks,
// embeddings, clusters, and narratives.
type Store struct {
	db           *sql.DB
	embeddingDim int
	log          *slog.Logger
}

// New opens (creating if necessary) the database at dbPath, applies the
// base schema and all pending migrations, and returns a ready Store.
// embeddingDim sizes the vec0 virtual tables.
func New(dbPath string, embeddingDim int) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create parent dir: %w", err)
			}
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, embeddingDim: embeddingDim, log: slog.Default().With("component", "store")}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply base schema: %w", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	if err := s.integrityCheck(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for packages that need to run ad hoc
// read queries (e.g. retrieval's concurrent fan-out).
func (s *Store) DB() *sql.DB { return s.db }

// EmbeddingDim returns the vector dimension this store was opened with.
func (s *Store) EmbeddingDim() int { return s.embeddingDim }

func (s *Store) integrityCheck() error {
	rows, err := s.db.Query("PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("store: integrity check: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		return errs.Integrity("schema", fmt.Errorf("foreign_key_check reported violations after migration"))
	}
	return rows.Err()
}

// inTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

// serializeFloat32 encodes a vector as a little-endian float32 blob, the
// format sqlite-vec's vec0 tables expect.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// repeatPlaceholders builds "?,?,?" for n placeholders, used to build IN
// clauses for variable-length id lists.
func repeatPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ",")
}

func stringsToArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
