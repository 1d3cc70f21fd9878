// Package ledger keeps local ingest bookkeeping in SQLite: which
// documents have been processed, the outcome of each ingest run, and
// an embedding cache so re-ingesting unchanged text never re-calls the
// embedding API.
package ledger

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Document is one tracked source file.
type Document struct {
	ID                   int64
	Path                 string
	Filename             string
	Format               string
	ContentHash          string
	Status               string
	Error                string
	RunID                string
	ChunkCount           int
	DroppedEntities      int
	DroppedRelationships int
	CreatedAt            string
	UpdatedAt            string
}

// Run is one ingest batch.
type Run struct {
	ID         string
	StartedAt  string
	FinishedAt string
	Succeeded  int
	Failed     int
}

// Ledger wraps the SQLite database.
type Ledger struct {
	db  *sql.DB
	dim int
}

// New opens (or creates) the ledger database and initialises the
// schema including the sqlite-vec embedding cache table.
func New(dbPath string, embeddingDim int) (*Ledger, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	l := &Ledger{db: db, dim: embeddingDim}

	if err := l.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// --- Run operations ---

// BeginRun records the start of an ingest batch and returns its id.
func (l *Ledger) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO ingest_runs (id) VALUES (?)", id)
	if err != nil {
		return "", fmt.Errorf("starting ingest run: %w", err)
	}
	return id, nil
}

// FinishRun records the batch outcome.
func (l *Ledger) FinishRun(ctx context.Context, runID string, succeeded, failed int) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET finished_at = CURRENT_TIMESTAMP, succeeded = ?, failed = ?
		WHERE id = ?`, succeeded, failed, runID)
	if err != nil {
		return fmt.Errorf("finishing ingest run %s: %w", runID, err)
	}
	return nil
}

// GetRun retrieves one ingest run.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*Run, error) {
	r := &Run{}
	var finished sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, succeeded, failed
		FROM ingest_runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.StartedAt, &finished, &r.Succeeded, &r.Failed)
	if err != nil {
		return nil, err
	}
	r.FinishedAt = finished.String
	return r, nil
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record keyed by path.
// Returns the document ID.
func (l *Ledger) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	// run_id references ingest_runs; a direct (non-batch) ingest has no
	// run, so an empty RunID must bind as NULL to satisfy the FK.
	runID := sql.NullString{String: doc.RunID, Valid: doc.RunID != ""}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO documents (path, filename, format, content_hash, status, run_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			content_hash = excluded.content_hash,
			status = excluded.status,
			run_id = excluded.run_id,
			error = '',
			updated_at = CURRENT_TIMESTAMP
	`, doc.Path, doc.Filename, doc.Format, doc.ContentHash, doc.Status, runID)
	if err != nil {
		return 0, err
	}

	var id int64
	row := l.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetDocumentByPath retrieves a document by its file path.
func (l *Ledger) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	doc := &Document{}
	var errText, runID sql.NullString
	err := l.db.QueryRowContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, error, run_id,
		       chunk_count, dropped_entities, dropped_relationships, created_at, updated_at
		FROM documents WHERE path = ?
	`, path).Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format,
		&doc.ContentHash, &doc.Status, &errText, &runID,
		&doc.ChunkCount, &doc.DroppedEntities, &doc.DroppedRelationships,
		&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Error = errText.String
	doc.RunID = runID.String
	return doc, nil
}

// IsUnchanged reports whether the path was already ingested
// successfully with the same content hash.
func (l *Ledger) IsUnchanged(ctx context.Context, path, contentHash string) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents
		WHERE path = ? AND content_hash = ? AND status = ?`,
		path, contentHash, StatusReady).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkReady records a successful ingest with its counters.
func (l *Ledger) MarkReady(ctx context.Context, id int64, chunkCount, droppedEntities, droppedRelationships int) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, chunk_count = ?, dropped_entities = ?, dropped_relationships = ?,
		    error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		StatusReady, chunkCount, droppedEntities, droppedRelationships, id)
	return err
}

// MarkError records a per-document failure without aborting the batch.
func (l *Ledger) MarkError(ctx context.Context, id int64, errText string) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		StatusError, errText, id)
	return err
}

// ListDocuments returns all documents ordered by creation time.
func (l *Ledger) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, error, run_id,
		       chunk_count, dropped_entities, dropped_relationships, created_at, updated_at
		FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var errText, runID sql.NullString
		if err := rows.Scan(&d.ID, &d.Path, &d.Filename, &d.Format,
			&d.ContentHash, &d.Status, &errText, &runID,
			&d.ChunkCount, &d.DroppedEntities, &d.DroppedRelationships,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Error = errText.String
		d.RunID = runID.String
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// --- Embedding cache ---

// CacheEmbedding stores the embedding for a chunk content hash.
func (l *Ledger) CacheEmbedding(ctx context.Context, contentHash string, embedding []float32) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO embedding_keys (content_hash) VALUES (?)", contentHash)
	if err != nil {
		return err
	}

	var id int64
	if n, _ := res.RowsAffected(); n > 0 {
		id, err = res.LastInsertId()
	} else {
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM embedding_keys WHERE content_hash = ?", contentHash).Scan(&id)
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_embeddings (key_id, embedding) VALUES (?, ?)",
		id, serializeFloat32(embedding)); err != nil {
		return err
	}
	return tx.Commit()
}

// CachedEmbedding returns the stored embedding for a content hash, if any.
func (l *Ledger) CachedEmbedding(ctx context.Context, contentHash string) ([]float32, bool, error) {
	var blob []byte
	err := l.db.QueryRowContext(ctx, `
		SELECT v.embedding
		FROM vec_embeddings v
		JOIN embedding_keys k ON k.id = v.key_id
		WHERE k.content_hash = ?`, contentHash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return deserializeFloat32(blob), true, nil
}

// NearestCachedDistance runs a k=1 KNN over the cache and returns the
// cosine distance to the closest stored embedding. ok is false when the
// cache is empty.
func (l *Ledger) NearestCachedDistance(ctx context.Context, embedding []float32) (float64, bool, error) {
	var distance float64
	err := l.db.QueryRowContext(ctx, `
		SELECT distance FROM vec_embeddings
		WHERE embedding MATCH ? AND k = 1
		ORDER BY distance`, serializeFloat32(embedding)).Scan(&distance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return distance, true, nil
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 is the inverse of serializeFloat32.
func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
