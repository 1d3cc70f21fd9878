// Package retrieval implements the two question-answering paths over
// the candidate graph: plain vector similarity and hybrid
// vector+full-text search with graph context expansion.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talentbase/hrgraph/graphstore"
	"github.com/talentbase/hrgraph/llm"
)

// ErrNoContext is returned when a retriever finds nothing to answer from.
var ErrNoContext = errors.New("retrieval: no context retrieved")

// GraphSearcher is the slice of the graph store the retrievers need.
type GraphSearcher interface {
	VectorSearch(ctx context.Context, embedding []float32, k int) ([]graphstore.ChunkRef, error)
	FulltextSearch(ctx context.Context, query string, k int) ([]graphstore.ChunkRef, error)
	ExpandChunk(ctx context.Context, ref graphstore.ChunkRef) (*graphstore.CandidateProfile, error)
}

// ContextItem is one unit of retrieved context. Profile is nil on the
// plain vector path; Text always carries the raw chunk.
type ContextItem struct {
	Profile *graphstore.CandidateProfile
	Text    string
	Score   float64
}

// Retriever produces context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]ContextItem, error)
}

// VectorRetriever answers from raw chunk text ranked by embedding
// similarity alone. No graph traversal.
type VectorRetriever struct {
	store    GraphSearcher
	embedder llm.Provider
}

// NewVector returns the plain vector retriever.
func NewVector(store GraphSearcher, embedder llm.Provider) *VectorRetriever {
	return &VectorRetriever{store: store, embedder: embedder}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, question string, k int) ([]ContextItem, error) {
	embedding, err := embedQuery(ctx, r.embedder, question)
	if err != nil {
		return nil, err
	}

	refs, err := r.store.VectorSearch(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	items := make([]ContextItem, 0, len(refs))
	for _, ref := range refs {
		items = append(items, ContextItem{Text: ref.Text, Score: ref.Score})
	}
	slog.Debug("retrieval: vector path complete", "question_len", len(question), "results", len(items))
	return items, nil
}

// HybridRetriever runs vector and full-text search concurrently, fuses
// the rankings with RRF, then expands each surviving chunk into a
// candidate profile. A chunk whose expansion fails degrades to its raw
// text instead of failing the request.
type HybridRetriever struct {
	store     GraphSearcher
	embedder  llm.Provider
	weightVec float64
	weightFTS float64
}

// NewHybrid returns the hybrid retriever with equal fusion weights.
func NewHybrid(store GraphSearcher, embedder llm.Provider) *HybridRetriever {
	return &HybridRetriever{store: store, embedder: embedder, weightVec: 1.0, weightFTS: 1.0}
}

func (r *HybridRetriever) Retrieve(ctx context.Context, question string, k int) ([]ContextItem, error) {
	embedding, err := embedQuery(ctx, r.embedder, question)
	if err != nil {
		return nil, err
	}

	type result struct {
		refs []graphstore.ChunkRef
		err  error
	}

	searchStart := time.Now()
	vecCh := make(chan result, 1)
	ftsCh := make(chan result, 1)

	go func() {
		refs, err := r.store.VectorSearch(ctx, embedding, k)
		vecCh <- result{refs, err}
	}()
	go func() {
		refs, err := r.store.FulltextSearch(ctx, question, k)
		ftsCh <- result{refs, err}
	}()

	vecRes := <-vecCh
	ftsRes := <-ftsCh

	// Similarity search carries the semantic half of the fusion; its
	// failure is fatal per request. A failed full-text leg only costs
	// exact-term recall, so the request degrades to vector results.
	if vecRes.err != nil {
		return nil, fmt.Errorf("hybrid search: %w", vecRes.err)
	}
	if ftsRes.err != nil {
		slog.Warn("retrieval: fulltext search failed, continuing on vector results", "error", ftsRes.err)
	}

	fused := fuseRRF(vecRes.refs, ftsRes.refs, r.weightVec, r.weightFTS, k)
	slog.Debug("retrieval: hybrid fusion complete",
		"vec_results", len(vecRes.refs), "fts_results", len(ftsRes.refs),
		"fused", len(fused),
		"elapsed", time.Since(searchStart).Round(time.Millisecond))

	items := make([]ContextItem, 0, len(fused))
	for _, ref := range fused {
		profile, err := r.store.ExpandChunk(ctx, ref)
		if err != nil {
			slog.Warn("retrieval: chunk expansion failed, falling back to raw text",
				"chunk", ref.UID, "error", err)
			items = append(items, ContextItem{Text: ref.Text, Score: ref.Score})
			continue
		}
		items = append(items, ContextItem{Profile: profile, Text: ref.Text, Score: ref.Score})
	}
	return items, nil
}

func embedQuery(ctx context.Context, embedder llm.Provider, question string) ([]float32, error) {
	vectors, err := embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding question: empty response")
	}
	return vectors[0], nil
}
