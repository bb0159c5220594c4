package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is a single forward-only, numbered schema change. apply runs
// inside its own transaction; migrations never delete user data.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations is the ordered, forward-only sequence. Add new entries at the
// end; never renumber or remove existing ones.
var migrations = []migration{
	{
		version:     1,
		description: "add fts_metadata bootstrap rows for chunks and extractions indexes",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				INSERT INTO fts_metadata (index_name, tokenizer, schema_version)
				SELECT 'chunks_fts', 'porter unicode61', 1
				WHERE NOT EXISTS (SELECT 1 FROM fts_metadata WHERE index_name = 'chunks_fts');
			`)
			if err != nil {
				return err
			}
			_, err = tx.Exec(`
				INSERT INTO fts_metadata (index_name, tokenizer, schema_version)
				SELECT 'extractions_fts', 'porter unicode61', 1
				WHERE NOT EXISTS (SELECT 1 FROM fts_metadata WHERE index_name = 'extractions_fts');
			`)
			return err
		},
	},
	{
		version:     2,
		description: "widen knowledge_edges.relationship_type CHECK to the full closed set",
		apply: func(tx *sql.Tx) error {
			// The base schema leaves relationship_type unconstrained by CHECK
			// (validated in Go instead), so later widening migrations that add
			// new relationship types never need a table rebuild. This
			// migration documents the decision with a no-op so the version
			// ledger records it.
			_, err := tx.Exec(`SELECT 1`)
			return err
		},
	},
	{
		version:     3,
		description: "add importance_score index for corpus-intelligence census queries",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_knowledge_nodes_importance
				ON knowledge_nodes(entity_type, importance_score DESC);
			`)
			return err
		},
	},
	{
		version:     4,
		description: "add synthesis layer tables: corpus_intelligence, document_narratives, entity_roles",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS corpus_intelligence (
					id TEXT PRIMARY KEY,
					summary TEXT NOT NULL,
					key_actors TEXT NOT NULL DEFAULT '[]',
					themes TEXT NOT NULL DEFAULT '[]',
					narrative_arcs TEXT NOT NULL DEFAULT '[]',
					provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
					created_at TEXT NOT NULL DEFAULT (datetime('now'))
				);

				CREATE TABLE IF NOT EXISTS document_narratives (
					id TEXT PRIMARY KEY,
					document_id TEXT NOT NULL UNIQUE REFERENCES documents(id) ON DELETE CASCADE,
					narrative TEXT NOT NULL,
					provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
					created_at TEXT NOT NULL DEFAULT (datetime('now'))
				);
				CREATE INDEX IF NOT EXISTS idx_document_narratives_document ON document_narratives(document_id);

				CREATE TABLE IF NOT EXISTS entity_roles (
					id TEXT PRIMARY KEY,
					node_id TEXT NOT NULL REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
					scope TEXT NOT NULL CHECK (scope IN ('database','document')),
					document_id TEXT REFERENCES documents(id) ON DELETE CASCADE,
					role TEXT NOT NULL,
					theme TEXT,
					importance_rank INTEGER,
					context_summary TEXT NOT NULL DEFAULT '',
					provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
					created_at TEXT NOT NULL DEFAULT (datetime('now')),
					CHECK ((scope = 'document') = (document_id IS NOT NULL))
				);
				CREATE INDEX IF NOT EXISTS idx_entity_roles_node ON entity_roles(node_id);
				CREATE INDEX IF NOT EXISTS idx_entity_roles_document ON entity_roles(document_id);
			`)
			return err
		},
	},
}

// Migrate reads the current schema version, applies every migration whose
// version is greater, and records it — each inside its own transaction.
// Running the chain twice is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now')),
		description TEXT
	)`); err != nil {
		return fmt.Errorf("store: ensure schema_version table: %w", err)
	}

	current, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if err := m.apply(tx); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
			}
			_, err := tx.Exec(`INSERT INTO schema_version (version, description) VALUES (?, ?)`, m.version, m.description)
			return err
		})
		if err != nil {
			return err
		}
		s.log.Info("applied migration", "version", m.version, "description", m.description)
	}
	return nil
}

func (s *Store) currentVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
