//go:build cgo

package ledger

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	l, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func sampleDoc(path string) Document {
	return Document{
		Path:        path,
		Filename:    "cv.pdf",
		Format:      "pdf",
		ContentHash: "abc123",
		Status:      StatusPending,
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	l, err := New(filepath.Join(dir, "test.db"), 4)
	if err != nil {
		t.Fatalf("creating ledger in nested dir: %v", err)
	}
	l.Close()
}

func TestRunLifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	runID, err := l.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if runID == "" {
		t.Fatal("run id should not be empty")
	}

	if err := l.FinishRun(ctx, runID, 3, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := l.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Succeeded != 3 || run.Failed != 1 {
		t.Errorf("run counters = %d/%d, want 3/1", run.Succeeded, run.Failed)
	}
	if run.FinishedAt == "" {
		t.Error("FinishedAt should be set")
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.UpsertDocument(ctx, sampleDoc("/data/cv.pdf"))
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	doc, err := l.GetDocumentByPath(ctx, "/data/cv.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.Status != StatusPending || doc.ContentHash != "abc123" {
		t.Errorf("doc = %+v", doc)
	}

	// Upsert again with a new hash keeps the same row.
	d2 := sampleDoc("/data/cv.pdf")
	d2.ContentHash = "def456"
	id2, err := l.UpsertDocument(ctx, d2)
	if err != nil {
		t.Fatalf("second UpsertDocument: %v", err)
	}
	if id2 != id {
		t.Errorf("upsert created a new row: %d != %d", id2, id)
	}
}

func TestUpsertDocumentWithoutRun(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// A direct ingest carries no run id; the FK on run_id must not
	// reject the empty value.
	doc := sampleDoc("/data/solo.pdf")
	doc.RunID = ""
	if _, err := l.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument without run: %v", err)
	}

	got, err := l.GetDocumentByPath(ctx, "/data/solo.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if got.RunID != "" {
		t.Errorf("RunID = %q, want empty", got.RunID)
	}

	// A batch ingest references a real run row.
	runID, err := l.BeginRun(ctx)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	doc.RunID = runID
	if _, err := l.UpsertDocument(ctx, doc); err != nil {
		t.Fatalf("UpsertDocument with run: %v", err)
	}
	got, err = l.GetDocumentByPath(ctx, "/data/solo.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if got.RunID != runID {
		t.Errorf("RunID = %q, want %q", got.RunID, runID)
	}
}

func TestMarkReadyAndUnchanged(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.UpsertDocument(ctx, sampleDoc("/data/cv.pdf"))
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	unchanged, err := l.IsUnchanged(ctx, "/data/cv.pdf", "abc123")
	if err != nil {
		t.Fatalf("IsUnchanged: %v", err)
	}
	if unchanged {
		t.Error("pending document must not count as unchanged")
	}

	if err := l.MarkReady(ctx, id, 12, 2, 1); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	unchanged, err = l.IsUnchanged(ctx, "/data/cv.pdf", "abc123")
	if err != nil {
		t.Fatalf("IsUnchanged: %v", err)
	}
	if !unchanged {
		t.Error("ready document with same hash should be unchanged")
	}

	unchanged, _ = l.IsUnchanged(ctx, "/data/cv.pdf", "different")
	if unchanged {
		t.Error("different hash must not count as unchanged")
	}

	doc, err := l.GetDocumentByPath(ctx, "/data/cv.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.ChunkCount != 12 || doc.DroppedEntities != 2 || doc.DroppedRelationships != 1 {
		t.Errorf("counters = %+v", doc)
	}
}

func TestMarkError(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id, err := l.UpsertDocument(ctx, sampleDoc("/data/bad.pdf"))
	if err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if err := l.MarkError(ctx, id, "no extractable text"); err != nil {
		t.Fatalf("MarkError: %v", err)
	}

	doc, err := l.GetDocumentByPath(ctx, "/data/bad.pdf")
	if err != nil {
		t.Fatalf("GetDocumentByPath: %v", err)
	}
	if doc.Status != StatusError || doc.Error != "no extractable text" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestListDocuments(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for _, p := range []string{"/a.pdf", "/b.pdf", "/c.txt"} {
		if _, err := l.UpsertDocument(ctx, sampleDoc(p)); err != nil {
			t.Fatalf("UpsertDocument(%s): %v", p, err)
		}
	}

	docs, err := l.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d documents, want 3", len(docs))
	}
}

func TestEmbeddingCacheRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	emb := []float32{0.1, 0.2, 0.3, 0.4}
	if err := l.CacheEmbedding(ctx, "hash1", emb); err != nil {
		t.Fatalf("CacheEmbedding: %v", err)
	}

	got, ok, err := l.CachedEmbedding(ctx, "hash1")
	if err != nil {
		t.Fatalf("CachedEmbedding: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 4 || got[0] != emb[0] || got[3] != emb[3] {
		t.Errorf("round trip = %v, want %v", got, emb)
	}

	_, ok, err = l.CachedEmbedding(ctx, "missing")
	if err != nil {
		t.Fatalf("CachedEmbedding(missing): %v", err)
	}
	if ok {
		t.Error("expected cache miss for unknown hash")
	}
}

func TestNearestCachedDistance(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, ok, err := l.NearestCachedDistance(ctx, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("NearestCachedDistance on empty cache: %v", err)
	}
	if ok {
		t.Error("empty cache should report no neighbour")
	}

	if err := l.CacheEmbedding(ctx, "h1", []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("CacheEmbedding: %v", err)
	}

	dist, ok, err := l.NearestCachedDistance(ctx, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("NearestCachedDistance: %v", err)
	}
	if !ok {
		t.Fatal("expected a neighbour")
	}
	if dist > 1e-5 {
		t.Errorf("distance to identical vector = %f, want ~0", dist)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	v := []float32{-1.5, 0, 3.25, 1e-9}
	got := deserializeFloat32(serializeFloat32(v))
	if len(got) != len(v) {
		t.Fatalf("length %d, want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: %v != %v", i, got[i], v[i])
		}
	}
}
