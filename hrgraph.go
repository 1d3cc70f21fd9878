// Package hrgraph is a knowledge-graph RAG engine for a résumé corpus:
// documents are parsed, chunked, embedded, and distilled into a Neo4j
// graph constrained by a closed HR schema; questions are answered
// through vector or hybrid retrieval with graph context expansion.
package hrgraph

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/talentbase/hrgraph/chunker"
	"github.com/talentbase/hrgraph/extract"
	"github.com/talentbase/hrgraph/graphstore"
	"github.com/talentbase/hrgraph/ledger"
	"github.com/talentbase/hrgraph/llm"
	"github.com/talentbase/hrgraph/parser"
	"github.com/talentbase/hrgraph/retrieval"
	"github.com/talentbase/hrgraph/schema"
)

// Mode selects the retrieval path for a question.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeHybrid Mode = "hybrid"
)

// nearDupThreshold is the cosine distance below which a new chunk is
// flagged as a near duplicate of previously ingested text, the usual
// sign of the same résumé arriving under a second filename.
const nearDupThreshold = 0.02

// Engine is the main entry point.
type Engine interface {
	// Ingest runs the full pipeline for one document. The document is
	// fully durable in the graph when Ingest returns nil. Unchanged
	// documents are skipped unless WithForce is given.
	Ingest(ctx context.Context, path string, opts ...IngestOption) error

	// IngestDir processes every supported document under dir, one at a
	// time. A failed document is recorded and the batch continues.
	IngestDir(ctx context.Context, dir string, opts ...IngestOption) (*BatchResult, error)

	// Ask answers a question over the candidate graph.
	Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error)

	// InitIndexes creates the vector and full-text indexes. One-time
	// administrative call.
	InitIndexes(ctx context.Context) error

	// ListDocuments returns the ledger's view of ingested documents.
	ListDocuments(ctx context.Context) ([]ledger.Document, error)

	// GetDocument returns the ledger record for one previously seen
	// path, or ErrDocumentNotFound.
	GetDocument(ctx context.Context, path string) (*ledger.Document, error)

	// Close shuts down the graph driver and the ledger.
	Close(ctx context.Context) error
}

// Answer is the result of Ask.
type Answer struct {
	Text    string   `json:"text"`
	Mode    Mode     `json:"mode"`
	Sources []Source `json:"sources"`
}

// Source is one piece of context the answer drew on.
type Source struct {
	Candidate string  `json:"candidate,omitempty"`
	ChunkText string  `json:"chunk_text"`
	Score     float64 `json:"score"`
}

// BatchResult summarises an IngestDir run.
type BatchResult struct {
	RunID     string
	Succeeded int
	Failed    int
	Errors    map[string]error
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	force bool
	runID string
}

// WithForce re-ingests even when the content hash is unchanged.
func WithForce() IngestOption {
	return func(o *ingestOptions) { o.force = true }
}

func withRun(runID string) IngestOption {
	return func(o *ingestOptions) { o.runID = runID }
}

// AskOption configures query behavior.
type AskOption func(*askOptions)

type askOptions struct {
	mode Mode
	topK int
}

// WithMode selects the retrieval path. Default is hybrid.
func WithMode(m Mode) AskOption {
	return func(o *askOptions) { o.mode = m }
}

// WithTopK overrides the configured result count.
func WithTopK(k int) AskOption {
	return func(o *askOptions) { o.topK = k }
}

// graphStore is the slice of graphstore the engine depends on.
type graphStore interface {
	retrieval.GraphSearcher
	UpsertEntity(ctx context.Context, label schema.NodeType, name string, props map[string]any) error
	UpsertRelationship(ctx context.Context, srcLabel schema.NodeType, srcName string, rel schema.RelType, dstLabel schema.NodeType, dstName string, props map[string]any) error
	CreateChunk(ctx context.Context, c graphstore.Chunk) error
	LinkChunk(ctx context.Context, label schema.NodeType, name string, chunkUID string) error
	EnsureVectorIndex(ctx context.Context) error
	EnsureFulltextIndex(ctx context.Context) error
	Close(ctx context.Context) error
}

type engine struct {
	cfg       Config
	closed    bool
	catalog   *schema.Catalog
	graph     graphStore
	ledger    *ledger.Ledger
	chatLLM   llm.Provider
	embedLLM  llm.Provider
	parsers   *parser.Registry
	chunkr    *chunker.Chunker
	extractor *extract.Extractor
	rag       *retrieval.RAG
}

// New validates the configuration, connects to Neo4j, opens the local
// ledger, and wires the pipeline.
func New(ctx context.Context, cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalog := schema.Default()

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}
	embedLLM, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	graph, err := graphstore.New(ctx, graphstore.Config{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	}, catalog)
	if err != nil {
		return nil, fmt.Errorf("connecting to graph store: %w", err)
	}

	led, err := ledger.New(cfg.resolveLedgerPath(), cfg.EmbeddingDim)
	if err != nil {
		graph.Close(ctx)
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	return &engine{
		cfg:      cfg,
		catalog:  catalog,
		graph:    graph,
		ledger:   led,
		chatLLM:  chatLLM,
		embedLLM: embedLLM,
		parsers:  parser.NewRegistry(),
		chunkr: chunker.New(chunker.Config{
			MaxTokens: cfg.MaxChunkTokens,
			Overlap:   cfg.ChunkOverlap,
		}),
		extractor: extract.New(chatLLM, catalog),
		rag:       retrieval.NewRAG(chatLLM),
	}, nil
}

func (e *engine) Close(ctx context.Context) error {
	if e.closed {
		return ErrStoreClosed
	}
	e.closed = true
	var firstErr error
	if err := e.graph.Close(ctx); err != nil {
		firstErr = err
	}
	if err := e.ledger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Ingest runs parse → chunk → embed → extract → persist for one file.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) error {
	if e.closed {
		return ErrStoreClosed
	}
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return fmt.Errorf("%w: hashing %s: %v", ErrIngestionFailed, absPath, err)
	}

	unchanged, err := e.ledger.IsUnchanged(ctx, absPath, hash)
	if err != nil {
		return fmt.Errorf("%w: checking ledger: %v", ErrIngestionFailed, err)
	}
	if unchanged && !options.force {
		slog.Info("ingest: unchanged, skipping", "file", filepath.Base(absPath))
		return nil
	}

	filename := filepath.Base(absPath)
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(absPath)), ".")

	docID, err := e.ledger.UpsertDocument(ctx, ledger.Document{
		Path:        absPath,
		Filename:    filename,
		Format:      format,
		ContentHash: hash,
		Status:      ledger.StatusProcessing,
		RunID:       options.runID,
	})
	if err != nil {
		return fmt.Errorf("%w: recording document: %v", ErrIngestionFailed, err)
	}

	// Parse.
	p, err := e.parsers.Get(format)
	if err != nil {
		e.ledger.MarkError(ctx, docID, err.Error())
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	slog.Info("ingest: parsing", "file", filename, "format", format)
	parseStart := time.Now()
	parsed, err := p.Parse(ctx, absPath)
	if err != nil {
		e.ledger.MarkError(ctx, docID, err.Error())
		return fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	// Chunk.
	chunks := e.chunkr.Chunk(parsed.Sections)
	if len(chunks) == 0 {
		e.ledger.MarkError(ctx, docID, "no extractable text")
		return fmt.Errorf("%w: no extractable text in %s", ErrParsingFailed, filename)
	}
	slog.Info("ingest: parsed and chunked",
		"file", filename, "sections", len(parsed.Sections), "chunks", len(chunks),
		"elapsed", time.Since(parseStart).Round(time.Millisecond))

	// Embed, with the ledger cache short-circuiting repeated text.
	embeddings, skipExtract, err := e.embedChunks(ctx, chunks, unchanged)
	if err != nil {
		e.ledger.MarkError(ctx, docID, err.Error())
		return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	// Persist chunk nodes. The UID is derived from source and content
	// so a re-ingest MERGEs onto the existing nodes instead of piling
	// up duplicates.
	uids := make([]string, len(chunks))
	for i, c := range chunks {
		uids[i] = chunkUID(absPath, c.Hash)
		err := e.graph.CreateChunk(ctx, graphstore.Chunk{
			UID:       uids[i],
			Text:      c.Text,
			Index:     c.Index,
			Source:    absPath,
			Embedding: embeddings[i],
		})
		if err != nil {
			e.ledger.MarkError(ctx, docID, err.Error())
			return fmt.Errorf("%w: persisting chunk: %v", ErrIngestionFailed, err)
		}
	}

	// Extract and persist graph elements, chunk by chunk. Schema
	// violations drop element-by-element; a failed chunk loses only its
	// own elements.
	var droppedEnts, droppedRels, failedChunks int
	for i, c := range chunks {
		if skipExtract[i] {
			slog.Debug("ingest: chunk unchanged, skipping extraction", "chunk", uids[i])
			continue
		}
		res, err := e.extractor.Extract(ctx, c.Text)
		if err != nil {
			slog.Warn("ingest: chunk extraction failed", "chunk", uids[i], "error", err)
			failedChunks++
			continue
		}
		droppedEnts += res.DroppedEntities
		droppedRels += res.DroppedRelationships

		if err := e.persistExtraction(ctx, uids[i], res); err != nil {
			e.ledger.MarkError(ctx, docID, err.Error())
			return fmt.Errorf("%w: persisting extraction: %v", ErrIngestionFailed, err)
		}
	}
	if failedChunks == len(chunks) {
		e.ledger.MarkError(ctx, docID, "extraction failed for every chunk")
		return fmt.Errorf("%w: extraction failed for every chunk of %s", ErrIngestionFailed, filename)
	}

	if err := e.ledger.MarkReady(ctx, docID, len(chunks), droppedEnts, droppedRels); err != nil {
		return fmt.Errorf("%w: finalising ledger: %v", ErrIngestionFailed, err)
	}

	slog.Info("ingest: document ready",
		"file", filename, "chunks", len(chunks),
		"dropped_entities", droppedEnts, "dropped_relationships", droppedRels,
		"total_elapsed", time.Since(parseStart).Round(time.Millisecond))
	return nil
}

// persistExtraction writes one chunk's validated elements to the graph.
// The extractor already validated every element against the catalog, so
// a pattern rejection here means the catalog drifted between the two
// layers and is surfaced as a schema violation.
func (e *engine) persistExtraction(ctx context.Context, uid string, res *extract.Result) error {
	for _, ent := range res.Entities {
		if err := e.graph.UpsertEntity(ctx, ent.Label, ent.Name, ent.Properties); err != nil {
			return mapGraphErr(err)
		}
		if err := e.graph.LinkChunk(ctx, ent.Label, ent.Name, uid); err != nil {
			return mapGraphErr(err)
		}
	}

	byName := make(map[string]extract.Entity, len(res.Entities))
	for _, ent := range res.Entities {
		byName[ent.Name] = ent
	}
	for _, rel := range res.Relationships {
		src, dst := byName[rel.Source], byName[rel.Target]
		if err := e.graph.UpsertRelationship(ctx, src.Label, src.Name, rel.Type, dst.Label, dst.Name, rel.Properties); err != nil {
			return mapGraphErr(err)
		}
	}
	return nil
}

func mapGraphErr(err error) error {
	if errors.Is(err, graphstore.ErrPatternViolation) {
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return err
}

// embedChunks resolves an embedding per chunk, reading the cache first
// and batching the misses into one API call. The returned skip mask is
// set only for a forced re-ingest of unchanged content: those chunks
// already have their graph elements and links, so only extraction may
// be skipped. A cache hit for a new or modified document still goes
// through extraction, because this document's entities have not been
// linked yet even if the same text appeared elsewhere.
func (e *engine) embedChunks(ctx context.Context, chunks []chunker.Chunk, unchanged bool) ([][]float32, []bool, error) {
	embeddings := make([][]float32, len(chunks))
	skipExtract := make([]bool, len(chunks))

	var missTexts []string
	var missIdx []int
	for i, c := range chunks {
		cached, ok, err := e.ledger.CachedEmbedding(ctx, c.Hash)
		if err != nil {
			return nil, nil, fmt.Errorf("reading embedding cache: %w", err)
		}
		if ok {
			embeddings[i] = cached
			skipExtract[i] = unchanged
			continue
		}
		missTexts = append(missTexts, c.Text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vectors, err := e.embedLLM.Embed(ctx, missTexts)
		if err != nil {
			return nil, nil, err
		}
		if len(vectors) != len(missTexts) {
			return nil, nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(missTexts), len(vectors))
		}
		for j, i := range missIdx {
			emb := vectors[j]
			// Near-duplicate probe runs before the new vector lands in
			// the cache, so a chunk never matches itself. A close match
			// usually means the same résumé arrived under another name.
			dist, found, err := e.ledger.NearestCachedDistance(ctx, emb)
			if err == nil && found && dist < nearDupThreshold {
				slog.Warn("ingest: chunk closely matches previously ingested text",
					"chunk_index", chunks[i].Index, "distance", dist)
			}
			if err := e.ledger.CacheEmbedding(ctx, chunks[i].Hash, emb); err != nil {
				slog.Warn("ingest: caching embedding failed", "error", err)
			}
			embeddings[i] = emb
		}
	}

	slog.Debug("ingest: embeddings resolved",
		"total", len(chunks), "cache_hits", len(chunks)-len(missTexts))
	return embeddings, skipExtract, nil
}

// IngestDir processes every supported file under dir sequentially.
func (e *engine) IngestDir(ctx context.Context, dir string, opts ...IngestOption) (*BatchResult, error) {
	var paths []string
	supported := make(map[string]bool)
	for _, f := range e.parsers.Formats() {
		supported[f] = true
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if supported[ext] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking %s: %v", ErrIngestionFailed, dir, err)
	}
	sort.Strings(paths)

	runID, err := e.ledger.BeginRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}

	result := &BatchResult{RunID: runID, Errors: make(map[string]error)}
	slog.Info("ingest: batch starting", "dir", dir, "documents", len(paths), "run", runID)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.Ingest(ctx, path, append(opts, withRun(runID))...); err != nil {
			slog.Warn("ingest: document failed", "file", filepath.Base(path), "error", err)
			result.Failed++
			result.Errors[path] = err
			continue
		}
		result.Succeeded++
	}

	if err := e.ledger.FinishRun(ctx, runID, result.Succeeded, result.Failed); err != nil {
		slog.Warn("ingest: finishing run failed", "run", runID, "error", err)
	}
	slog.Info("ingest: batch complete",
		"run", runID, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// Ask answers one question through the selected retrieval path.
func (e *engine) Ask(ctx context.Context, question string, opts ...AskOption) (*Answer, error) {
	if e.closed {
		return nil, ErrStoreClosed
	}
	options := &askOptions{mode: ModeHybrid, topK: e.cfg.TopK}
	for _, o := range opts {
		o(options)
	}
	if options.topK <= 0 {
		options.topK = 5
	}

	var retriever retrieval.Retriever
	switch options.mode {
	case ModeVector:
		retriever = retrieval.NewVector(e.graph, e.embedLLM)
	case ModeHybrid:
		retriever = retrieval.NewHybrid(e.graph, e.embedLLM)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrRetrievalFailed, options.mode)
	}

	items, err := retriever.Retrieve(ctx, question, options.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	text, err := e.rag.AnswerWith(ctx, question, items)
	if err != nil {
		if errors.Is(err, retrieval.ErrNoContext) {
			return nil, fmt.Errorf("%w: %v", ErrNoResults, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	answer := &Answer{Text: text, Mode: options.mode}
	for _, item := range items {
		src := Source{ChunkText: item.Text, Score: item.Score}
		if item.Profile != nil {
			src.Candidate = item.Profile.Name
		}
		answer.Sources = append(answer.Sources, src)
	}
	return answer, nil
}

// InitIndexes creates the vector and full-text indexes.
func (e *engine) InitIndexes(ctx context.Context) error {
	if err := e.graph.EnsureVectorIndex(ctx); err != nil {
		return err
	}
	return e.graph.EnsureFulltextIndex(ctx)
}

// ListDocuments returns the ledger's document records.
func (e *engine) ListDocuments(ctx context.Context) ([]ledger.Document, error) {
	return e.ledger.ListDocuments(ctx)
}

// GetDocument returns the ledger record for one path.
func (e *engine) GetDocument(ctx context.Context, path string) (*ledger.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	doc, err := e.ledger.GetDocumentByPath(ctx, absPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return nil, err
	}
	return doc, nil
}

// chunkUID derives the stable :Chunk node identity from the source
// path and the chunk's content hash. Identical text re-ingested from
// the same document maps to the same node; the same text in another
// document gets its own node with its own provenance.
func chunkUID(source, contentHash string) string {
	h := sha256.Sum256([]byte(source + "\x00" + contentHash))
	return hex.EncodeToString(h[:])
}

// fileHash returns the SHA-256 hex digest of a file's contents.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
