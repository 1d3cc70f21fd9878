package ledger

import "fmt"

// schemaSQL returns the base DDL. The embedding dimension is baked into
// the vec0 virtual table definition.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Ingest runs: one row per batch
CREATE TABLE IF NOT EXISTS ingest_runs (
    id TEXT PRIMARY KEY,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME,
    succeeded INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0
);

-- Tracked source documents
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    error TEXT DEFAULT '',
    run_id TEXT REFERENCES ingest_runs(id),
    chunk_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

-- Embedding cache keys: one row per distinct chunk content hash
CREATE TABLE IF NOT EXISTS embedding_keys (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content_hash TEXT NOT NULL UNIQUE
);

-- Cached embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
    key_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);
`, embeddingDim)
}
