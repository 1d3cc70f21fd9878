// Package graphstore binds the HR knowledge graph to Neo4j: entity and
// relationship upserts gated by the schema catalog, chunk persistence
// with embeddings, index lifecycle, and the search and expansion
// queries used at retrieval time.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/talentbase/hrgraph/schema"
)

// Index names match the ones created against the production database;
// both searches and DDL refer to them by name.
const (
	VectorIndexName   = "chunkEmbeddings"
	FulltextIndexName = "candidateFulltext"
	EmbeddingDims     = 1536
)

// ErrPatternViolation is returned when a relationship upsert names a
// (source, relation, target) triple the catalog does not declare.
var ErrPatternViolation = errors.New("graphstore: relationship pattern not declared in schema")

// runner executes one Cypher statement and returns its rows as
// key-value maps. Keeping it this narrow lets tests drive the store
// without a live database.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// Config holds Neo4j connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string // empty means the server default
}

// Store is the graph storage service binding.
type Store struct {
	driver  neo4j.DriverWithContext
	run     runner
	catalog *schema.Catalog
}

// New connects to Neo4j and verifies connectivity before returning.
func New(ctx context.Context, cfg Config, catalog *schema.Catalog) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}
	return &Store{
		driver:  driver,
		run:     &sessionRunner{driver: driver, database: cfg.Database},
		catalog: catalog,
	}, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// sessionRunner executes Cypher through a short-lived session per call.
// The driver pools connections underneath.
type sessionRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *sessionRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for result.Next(ctx) {
		rec := result.Record()
		row := make(map[string]any, len(rec.Keys))
		for i, k := range rec.Keys {
			row[k] = rec.Values[i]
		}
		rows = append(rows, row)
	}
	return rows, result.Err()
}

// labelChain renders a node's full label set: the concrete label plus
// every IS_A ancestor, so queries on abstract labels match concrete
// nodes. Labels come from the validated catalog, never from user input,
// which is why interpolating them into Cypher is safe.
func (s *Store) labelChain(label schema.NodeType) string {
	labels := append([]schema.NodeType{label}, s.catalog.Supertypes(label)...)
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ":")
}

// UpsertEntity merges an entity node by (label, name). Properties are
// additive: re-ingesting a document never clears fields set earlier.
func (s *Store) UpsertEntity(ctx context.Context, label schema.NodeType, name string, props map[string]any) error {
	if !s.catalog.HasNode(label) {
		return fmt.Errorf("%w: node type %q", ErrPatternViolation, label)
	}
	// The name lands in the property bag too; copy so the caller's map
	// stays untouched.
	merged := make(map[string]any, len(props)+1)
	for k, v := range props {
		merged[k] = v
	}
	merged["name"] = name

	cypher := fmt.Sprintf(`MERGE (n:%s {name: $name}) SET n += $props`, s.labelChain(label))
	_, err := s.run.Run(ctx, cypher, map[string]any{"name": name, "props": merged})
	if err != nil {
		return fmt.Errorf("upserting entity %s %q: %w", label, name, err)
	}
	return nil
}

// UpsertRelationship merges an edge between two existing entities. The
// triple is checked against the pattern table first; undeclared
// patterns are never written.
func (s *Store) UpsertRelationship(ctx context.Context, srcLabel schema.NodeType, srcName string, rel schema.RelType, dstLabel schema.NodeType, dstName string, props map[string]any) error {
	if !s.catalog.AllowsPattern(srcLabel, rel, dstLabel) {
		return fmt.Errorf("%w: (%s)-[%s]->(%s)", ErrPatternViolation, srcLabel, rel, dstLabel)
	}

	cypher := fmt.Sprintf(`
		MATCH (a:%s {name: $src})
		MATCH (b:%s {name: $dst})
		MERGE (a)-[r:%s]->(b)
		SET r += $props`,
		srcLabel, dstLabel, rel)

	if props == nil {
		props = map[string]any{}
	}
	_, err := s.run.Run(ctx, cypher, map[string]any{"src": srcName, "dst": dstName, "props": props})
	if err != nil {
		return fmt.Errorf("upserting relationship (%s)-[%s]->(%s): %w", srcName, rel, dstName, err)
	}
	return nil
}

// Chunk is a text chunk persisted as a :Chunk node.
type Chunk struct {
	UID       string
	Text      string
	Index     int
	Source    string // originating document path
	Embedding []float32
}

// CreateChunk persists one chunk node with its embedding property.
// Chunks are immutable; an existing UID is left untouched.
func (s *Store) CreateChunk(ctx context.Context, c Chunk) error {
	cypher := `
		MERGE (c:Chunk {uid: $uid})
		ON CREATE SET c.text = $text, c.index = $index, c.source = $source, c.embedding = $embedding`
	_, err := s.run.Run(ctx, cypher, map[string]any{
		"uid":       c.UID,
		"text":      c.Text,
		"index":     c.Index,
		"source":    c.Source,
		"embedding": c.Embedding,
	})
	if err != nil {
		return fmt.Errorf("creating chunk %s: %w", c.UID, err)
	}
	return nil
}

// LinkChunk records provenance: the entity was extracted from the
// chunk. FROM_CHUNK is infrastructure, not part of the extractable
// pattern table, so it bypasses the pattern check.
func (s *Store) LinkChunk(ctx context.Context, label schema.NodeType, name string, chunkUID string) error {
	if !s.catalog.HasNode(label) {
		return fmt.Errorf("%w: node type %q", ErrPatternViolation, label)
	}
	cypher := fmt.Sprintf(`
		MATCH (n:%s {name: $name})
		MATCH (c:Chunk {uid: $uid})
		MERGE (n)-[:FROM_CHUNK]->(c)`, label)
	_, err := s.run.Run(ctx, cypher, map[string]any{"name": name, "uid": chunkUID})
	if err != nil {
		return fmt.Errorf("linking %s %q to chunk %s: %w", label, name, chunkUID, err)
	}
	return nil
}

// EnsureVectorIndex creates the chunk embedding index if it does not
// exist. One-time administrative call; dimension and similarity
// function are fixed for the corpus.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	cypher := fmt.Sprintf(`
		CREATE VECTOR INDEX %s IF NOT EXISTS
		FOR (c:Chunk) ON (c.embedding)
		OPTIONS {indexConfig: {
			`+"`vector.dimensions`"+`: %d,
			`+"`vector.similarity_function`"+`: 'cosine'
		}}`, VectorIndexName, EmbeddingDims)
	if _, err := s.run.Run(ctx, cypher, nil); err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	slog.Info("graphstore: vector index ready", "name", VectorIndexName, "dimensions", EmbeddingDims)
	return nil
}

// EnsureFulltextIndex creates the full-text index over chunk text.
func (s *Store) EnsureFulltextIndex(ctx context.Context) error {
	cypher := fmt.Sprintf(`
		CREATE FULLTEXT INDEX %s IF NOT EXISTS
		FOR (c:Chunk) ON EACH [c.text]`, FulltextIndexName)
	if _, err := s.run.Run(ctx, cypher, nil); err != nil {
		return fmt.Errorf("creating fulltext index: %w", err)
	}
	slog.Info("graphstore: fulltext index ready", "name", FulltextIndexName)
	return nil
}

// ChunkRef is a search hit: a chunk's identity, text, and score.
type ChunkRef struct {
	UID   string
	Text  string
	Score float64
}

// VectorSearch returns the top-k chunks nearest to the query embedding.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, k int) ([]ChunkRef, error) {
	cypher := `
		CALL db.index.vector.queryNodes($index, $k, $embedding)
		YIELD node, score
		RETURN node.uid AS uid, node.text AS text, score`
	rows, err := s.run.Run(ctx, cypher, map[string]any{
		"index":     VectorIndexName,
		"k":         k,
		"embedding": embedding,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return rowsToRefs(rows), nil
}

// FulltextSearch returns the top-k chunks matching the query text.
func (s *Store) FulltextSearch(ctx context.Context, query string, k int) ([]ChunkRef, error) {
	cypher := `
		CALL db.index.fulltext.queryNodes($index, $query)
		YIELD node, score
		RETURN node.uid AS uid, node.text AS text, score
		LIMIT $k`
	rows, err := s.run.Run(ctx, cypher, map[string]any{
		"index": FulltextIndexName,
		"query": query,
		"k":     k,
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return rowsToRefs(rows), nil
}

func rowsToRefs(rows []map[string]any) []ChunkRef {
	refs := make([]ChunkRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, ChunkRef{
			UID:   asString(row["uid"]),
			Text:  asString(row["text"]),
			Score: asFloat(row["score"]),
		})
	}
	return refs
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
