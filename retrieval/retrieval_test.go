package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/talentbase/hrgraph/graphstore"
	"github.com/talentbase/hrgraph/llm"
)

// fakeStore serves canned search results and expansions.
type fakeStore struct {
	vecRefs   []graphstore.ChunkRef
	ftsRefs   []graphstore.ChunkRef
	vecErr    error
	ftsErr    error
	profiles  map[string]*graphstore.CandidateProfile
	expandErr map[string]error
}

func (f *fakeStore) VectorSearch(ctx context.Context, embedding []float32, k int) ([]graphstore.ChunkRef, error) {
	if f.vecErr != nil {
		return nil, f.vecErr
	}
	if k < len(f.vecRefs) {
		return f.vecRefs[:k], nil
	}
	return f.vecRefs, nil
}

func (f *fakeStore) FulltextSearch(ctx context.Context, query string, k int) ([]graphstore.ChunkRef, error) {
	if f.ftsErr != nil {
		return nil, f.ftsErr
	}
	return f.ftsRefs, nil
}

func (f *fakeStore) ExpandChunk(ctx context.Context, ref graphstore.ChunkRef) (*graphstore.CandidateProfile, error) {
	if err := f.expandErr[ref.UID]; err != nil {
		return nil, err
	}
	if p, ok := f.profiles[ref.UID]; ok {
		return p, nil
	}
	return &graphstore.CandidateProfile{ChunkText: ref.Text, Score: ref.Score}, nil
}

// fakeEmbedder returns a constant vector for any input.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeChat records the prompt and returns a fixed answer.
type fakeChat struct {
	prompt string
	answer string
	err    error
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prompt = req.Messages[len(req.Messages)-1].Content
	return &llm.ChatResponse{Content: f.answer}, nil
}

func (f *fakeChat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func TestVectorRetrieverTopResult(t *testing.T) {
	store := &fakeStore{vecRefs: []graphstore.ChunkRef{
		{UID: "u1", Text: "nearest chunk", Score: 0.95},
		{UID: "u2", Text: "second chunk", Score: 0.80},
	}}
	r := NewVector(store, &fakeEmbedder{})

	items, err := r.Retrieve(context.Background(), "who knows Python?", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Text != "nearest chunk" || items[0].Score != 0.95 {
		t.Errorf("top item = %+v", items[0])
	}
	if items[0].Profile != nil {
		t.Error("vector path must not carry profiles")
	}
}

func TestVectorRetrieverEmbedFailure(t *testing.T) {
	r := NewVector(&fakeStore{}, &fakeEmbedder{err: errors.New("quota exceeded")})
	if _, err := r.Retrieve(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestHybridRetrieverFusesAndExpands(t *testing.T) {
	store := &fakeStore{
		vecRefs: []graphstore.ChunkRef{
			{UID: "u1", Text: "chunk one", Score: 0.9},
			{UID: "u2", Text: "chunk two", Score: 0.8},
		},
		ftsRefs: []graphstore.ChunkRef{
			{UID: "u2", Text: "chunk two", Score: 3.1},
			{UID: "u3", Text: "chunk three", Score: 2.0},
		},
		profiles: map[string]*graphstore.CandidateProfile{
			"u2": {Name: "Maria Silva", ChunkText: "chunk two", Score: 0.8},
		},
	}
	r := NewHybrid(store, &fakeEmbedder{})

	items, err := r.Retrieve(context.Background(), "arquitetura", 10)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	// u2 appears in both rankings, so fusion puts it first.
	if items[0].Profile == nil || items[0].Profile.Name != "Maria Silva" {
		t.Errorf("top item should be the doubly-ranked chunk with its profile: %+v", items[0])
	}
}

func TestHybridRetrieverExpansionFallback(t *testing.T) {
	store := &fakeStore{
		vecRefs: []graphstore.ChunkRef{
			{UID: "u1", Text: "good chunk", Score: 0.9},
			{UID: "u2", Text: "broken chunk", Score: 0.8},
		},
		expandErr: map[string]error{"u2": errors.New("traversal timeout")},
	}
	r := NewHybrid(store, &fakeEmbedder{})

	items, err := r.Retrieve(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("one failed expansion must not fail the request: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	var broken *ContextItem
	for i := range items {
		if items[i].Text == "broken chunk" {
			broken = &items[i]
		}
	}
	if broken == nil {
		t.Fatal("chunk with failed expansion missing from results")
	}
	if broken.Profile != nil {
		t.Error("failed expansion should fall back to raw text without a profile")
	}
}

// A failed vector search is fatal to the request even when the
// full-text leg returned results.
func TestHybridRetrieverVectorFailureFatal(t *testing.T) {
	store := &fakeStore{
		vecErr:  errors.New("vector index missing"),
		ftsRefs: []graphstore.ChunkRef{{UID: "u1", Text: "only fulltext", Score: 0.9}},
	}
	r := NewHybrid(store, &fakeEmbedder{})

	if _, err := r.Retrieve(context.Background(), "q", 10); err == nil {
		t.Fatal("expected error when vector search fails")
	}
}

func TestHybridRetrieverFulltextFailureDegrades(t *testing.T) {
	store := &fakeStore{
		vecRefs: []graphstore.ChunkRef{{UID: "u1", Text: "only vector", Score: 0.9}},
		ftsErr:  errors.New("index not online"),
	}
	r := NewHybrid(store, &fakeEmbedder{})

	items, err := r.Retrieve(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Retrieve with fulltext down: %v", err)
	}
	if len(items) != 1 || items[0].Text != "only vector" {
		t.Errorf("items = %+v", items)
	}
}

func TestFuseRRFOrdering(t *testing.T) {
	vec := []graphstore.ChunkRef{
		{UID: "a", Text: "A"},
		{UID: "b", Text: "B"},
	}
	fts := []graphstore.ChunkRef{
		{UID: "b", Text: "B"},
		{UID: "c", Text: "C"},
	}

	fused := fuseRRF(vec, fts, 1.0, 1.0, 0)
	if len(fused) != 3 {
		t.Fatalf("got %d fused, want 3", len(fused))
	}
	if fused[0].UID != "b" {
		t.Errorf("doubly-ranked chunk should fuse first, got %s", fused[0].UID)
	}

	limited := fuseRRF(vec, fts, 1.0, 1.0, 2)
	if len(limited) != 2 {
		t.Errorf("maxResults not applied: %d", len(limited))
	}
}

// The prompt context always contains raw chunk text, with or without an
// expanded profile.
func TestBuildContextAlwaysCarriesChunkText(t *testing.T) {
	items := []ContextItem{
		{
			Profile: &graphstore.CandidateProfile{
				Name: "Maria Silva",
				WorkHistory: []graphstore.WorkHistoryEntry{
					{Organization: "Acme Corp", StartDate: "2019-01", EndDate: "2021-12"},
				},
				Competencies: []graphstore.CompetencyEntry{
					{Name: "Python", Years: 5},
				},
			},
			Text: "maria's resume chunk",
		},
		{
			// all-null profile from an orphan chunk
			Profile: &graphstore.CandidateProfile{ChunkText: "orphan text"},
			Text:    "orphan text",
		},
		{Text: "plain text item"},
	}

	got := BuildContext(items)

	for _, want := range []string{
		"Candidate: Maria Silva",
		"Acme Corp (2019-01 to 2021-12)",
		"Python (5 years)",
		"maria's resume chunk",
		"orphan text",
		"plain text item",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Candidate: \n") {
		t.Error("empty candidate name should not be rendered")
	}
}

func TestRAGAnswer(t *testing.T) {
	store := &fakeStore{vecRefs: []graphstore.ChunkRef{{UID: "u1", Text: "context chunk", Score: 0.9}}}
	chat := &fakeChat{answer: "Maria Silva seems the strongest fit."}
	rag := NewRAG(chat)

	answer, err := rag.Answer(context.Background(), "who fits?", NewVector(store, &fakeEmbedder{}), 5)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "Maria Silva seems the strongest fit." {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(chat.prompt, "context chunk") {
		t.Error("prompt should embed the retrieved context")
	}
	if !strings.Contains(chat.prompt, "who fits?") {
		t.Error("prompt should embed the question")
	}
}

func TestRAGAnswerNoContext(t *testing.T) {
	rag := NewRAG(&fakeChat{answer: "x"})
	_, err := rag.Answer(context.Background(), "q", NewVector(&fakeStore{}, &fakeEmbedder{}), 5)
	if !errors.Is(err, ErrNoContext) {
		t.Fatalf("error = %v, want ErrNoContext", err)
	}
}

func TestRAGAnswerCompletionFailureIsFatal(t *testing.T) {
	store := &fakeStore{vecRefs: []graphstore.ChunkRef{{UID: "u1", Text: "t", Score: 0.9}}}
	rag := NewRAG(&fakeChat{err: errors.New("model down")})

	if _, err := rag.Answer(context.Background(), "q", NewVector(store, &fakeEmbedder{}), 5); err == nil {
		t.Fatal("expected completion failure to surface as an error")
	}
}
