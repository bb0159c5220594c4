package store

import "fmt"

// schemaSQL returns the base DDL for every table, plus the vec0 vector
// index and FTS5 full-text indexes with their sync triggers. embeddingDim
// sizes the vec0 virtual tables. Migrations (migrations.go) evolve this
// schema forward from here.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT NOT NULL DEFAULT (datetime('now')),
	description TEXT
);

CREATE TABLE IF NOT EXISTS provenance (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL CHECK (kind IN (
		'DOCUMENT','OCR_RESULT','CHUNK','IMAGE','VLM_DESCRIPTION','EMBEDDING',
		'EXTRACTION','FORM_FILL','ENTITY_EXTRACTION','COMPARISON','CLUSTERING',
		'KNOWLEDGE_GRAPH','CORPUS_INTELLIGENCE')),
	source_kind TEXT CHECK (source_kind IS NULL OR source_kind IN (
		'DOCUMENT','OCR_RESULT','CHUNK','IMAGE','VLM_DESCRIPTION','EMBEDDING',
		'EXTRACTION','FORM_FILL','ENTITY_EXTRACTION','COMPARISON','CLUSTERING',
		'KNOWLEDGE_GRAPH','CORPUS_INTELLIGENCE')),
	source_path TEXT,
	source_id TEXT,
	root_document_id TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	input_hash TEXT,
	file_hash TEXT,
	processor TEXT NOT NULL,
	processor_version TEXT NOT NULL DEFAULT '',
	processing_params TEXT NOT NULL DEFAULT '{}',
	parent_id TEXT REFERENCES provenance(id),
	parent_ids TEXT NOT NULL DEFAULT '[]',
	chain_depth INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_provenance_root ON provenance(root_document_id);
CREATE INDEX IF NOT EXISTS idx_provenance_parent ON provenance(parent_id);
CREATE INDEX IF NOT EXISTS idx_provenance_kind ON provenance(kind);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	file_name TEXT NOT NULL,
	file_hash TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	file_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','processing','complete','failed')),
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	title TEXT,
	author TEXT,
	subject TEXT,
	page_count INTEGER,
	error_message TEXT,
	ocr_completed_at TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_file_path ON documents(file_path);
CREATE INDEX IF NOT EXISTS idx_documents_file_hash ON documents(file_hash);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS ocr_results (
	id TEXT PRIMARY KEY,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	extracted_text TEXT NOT NULL,
	text_length INTEGER NOT NULL,
	mode TEXT NOT NULL DEFAULT 'balanced' CHECK (mode IN ('fast','balanced','accurate')),
	page_count INTEGER NOT NULL DEFAULT 0,
	processing_duration_ms INTEGER NOT NULL DEFAULT 0,
	block_layout TEXT,
	extras TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_ocr_results_document ON ocr_results(document_id);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	ocr_result_id TEXT NOT NULL REFERENCES ocr_results(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	text_hash TEXT NOT NULL,
	chunk_index INTEGER NOT NULL CHECK (chunk_index >= 0),
	character_start INTEGER NOT NULL,
	character_end INTEGER NOT NULL CHECK (character_end >= character_start),
	page_number INTEGER,
	overlap_previous INTEGER NOT NULL DEFAULT 0,
	overlap_next INTEGER NOT NULL DEFAULT 0,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	embedding_status TEXT NOT NULL DEFAULT 'pending' CHECK (embedding_status IN ('pending','complete','failed')),
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_ocr_result ON chunks(ocr_result_id);

CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	page_number INTEGER,
	file_path TEXT NOT NULL,
	bounding_box TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_images_document ON images(document_id);

CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	extractor_name TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_extractions_document ON extractions(document_id);

CREATE TABLE IF NOT EXISTS embeddings (
	id TEXT PRIMARY KEY,
	chunk_id TEXT REFERENCES chunks(id) ON DELETE CASCADE,
	image_id TEXT REFERENCES images(id) ON DELETE CASCADE,
	extraction_id TEXT REFERENCES extractions(id) ON DELETE CASCADE,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	CHECK (
		(chunk_id IS NOT NULL AND image_id IS NULL AND extraction_id IS NULL) OR
		(chunk_id IS NULL AND image_id IS NOT NULL AND extraction_id IS NULL) OR
		(chunk_id IS NULL AND image_id IS NULL AND extraction_id IS NOT NULL)
	)
);
CREATE INDEX IF NOT EXISTS idx_embeddings_chunk ON embeddings(chunk_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_image ON embeddings(image_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_extraction ON embeddings(extraction_id);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
	embedding_id TEXT PRIMARY KEY,
	embedding FLOAT[%d] distance_metric=cosine
);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	entity_type TEXT NOT NULL CHECK (entity_type IN (
		'person','organization','date','amount','case_number','location',
		'statute','exhibit','medication','diagnosis','medical_device','other')),
	raw_text TEXT NOT NULL,
	normalized_text TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 1.0 CHECK (confidence >= 0.0 AND confidence <= 1.0),
	metadata TEXT,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_entities_document ON entities(document_id);
CREATE INDEX IF NOT EXISTS idx_entities_type_norm ON entities(entity_type, normalized_text);

CREATE TABLE IF NOT EXISTS entity_mentions (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	chunk_id TEXT REFERENCES chunks(id) ON DELETE SET NULL,
	page_number INTEGER,
	character_start INTEGER,
	character_end INTEGER,
	context_text TEXT NOT NULL DEFAULT '',
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_entity_mentions_entity ON entity_mentions(entity_id);
CREATE INDEX IF NOT EXISTS idx_entity_mentions_chunk ON entity_mentions(chunk_id);

CREATE TABLE IF NOT EXISTS knowledge_nodes (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	canonical_name TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	aliases TEXT NOT NULL DEFAULT '[]',
	document_count INTEGER NOT NULL DEFAULT 0,
	mention_count INTEGER NOT NULL DEFAULT 0,
	edge_count INTEGER NOT NULL DEFAULT 0,
	avg_confidence REAL NOT NULL DEFAULT 0.0,
	importance_score REAL,
	resolution_type TEXT,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_knowledge_nodes_type_norm ON knowledge_nodes(entity_type, normalized_name);

CREATE TABLE IF NOT EXISTS knowledge_edges (
	id TEXT PRIMARY KEY,
	source_node_id TEXT NOT NULL REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
	target_node_id TEXT NOT NULL REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
	relationship_type TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 0.0 CHECK (weight >= 0.0 AND weight <= 1.0),
	evidence_count INTEGER NOT NULL DEFAULT 0,
	document_ids TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}',
	valid_from TEXT,
	valid_until TEXT,
	normalized_weight REAL,
	contradiction_count INTEGER,
	provenance_id TEXT NOT NULL UNIQUE REFERENCES provenance(id),
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE (source_node_id, target_node_id, relationship_type)
);
CREATE INDEX IF NOT EXISTS idx_knowledge_edges_source ON knowledge_edges(source_node_id);
CREATE INDEX IF NOT EXISTS idx_knowledge_edges_target ON knowledge_edges(target_node_id);

CREATE TABLE IF NOT EXISTS node_entity_links (
	id TEXT PRIMARY KEY,
	node_id TEXT NOT NULL REFERENCES knowledge_nodes(id) ON DELETE CASCADE,
	entity_id TEXT NOT NULL UNIQUE REFERENCES entities(id) ON DELETE CASCADE,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	similarity_score REAL NOT NULL DEFAULT 1.0,
	resolution_method TEXT NOT NULL DEFAULT 'exact',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_node_entity_links_node ON node_entity_links(node_id);
CREATE INDEX IF NOT EXISTS idx_node_entity_links_document ON node_entity_links(document_id);

CREATE TABLE IF NOT EXISTS clusters (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	cluster_index INTEGER NOT NULL,
	centroid TEXT,
	label TEXT,
	coherence REAL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_clusters_run ON clusters(run_id);

CREATE TABLE IF NOT EXISTS document_clusters (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	cluster_id TEXT NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	overlap REAL,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE (run_id, document_id)
);
CREATE INDEX IF NOT EXISTS idx_document_clusters_run ON document_clusters(run_id);

CREATE TABLE IF NOT EXISTS query_log (
	id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	search_type TEXT NOT NULL,
	result_count INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fts_metadata (
	index_name TEXT PRIMARY KEY,
	last_rebuild_at TEXT,
	rows_indexed INTEGER NOT NULL DEFAULT 0,
	tokenizer TEXT NOT NULL DEFAULT '',
	schema_version INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	text, content='chunks', content_rowid='rowid', tokenize='porter unicode61'
);
CREATE TRIGGER IF NOT EXISTS chunks_fts_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_fts_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
END;
CREATE TRIGGER IF NOT EXISTS chunks_fts_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
	INSERT INTO chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE VIRTUAL TABLE IF NOT EXISTS extractions_fts USING fts5(
	data, content='extractions', content_rowid='rowid', tokenize='porter unicode61'
);
CREATE TRIGGER IF NOT EXISTS extractions_fts_ai AFTER INSERT ON extractions BEGIN
	INSERT INTO extractions_fts(rowid, data) VALUES (new.rowid, new.data);
END;
CREATE TRIGGER IF NOT EXISTS extractions_fts_ad AFTER DELETE ON extractions BEGIN
	INSERT INTO extractions_fts(extractions_fts, rowid, data) VALUES ('delete', old.rowid, old.data);
END;
CREATE TRIGGER IF NOT EXISTS extractions_fts_au AFTER UPDATE ON extractions BEGIN
	INSERT INTO extractions_fts(extractions_fts, rowid, data) VALUES ('delete', old.rowid, old.data);
	INSERT INTO extractions_fts(rowid, data) VALUES (new.rowid, new.data);
END;
`, embeddingDim)
}
