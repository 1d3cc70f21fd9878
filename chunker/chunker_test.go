package chunker

import (
	"strings"
	"testing"

	"github.com/talentbase/hrgraph/parser"
)

func TestChunkSimple(t *testing.T) {
	c := New(Config{MaxTokens: 512, Overlap: 64})
	sections := []parser.Section{
		{
			Heading:    "Experiência Profissional",
			Content:    "Desenvolvedora na Acme Corp de 2019 a 2021.",
			PageNumber: 1,
			Type:       "experience",
		},
	}

	chunks := c.Chunk(sections)

	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	ch := chunks[0]
	if ch.Index != 0 {
		t.Errorf("Index = %d, want 0", ch.Index)
	}
	if !strings.HasPrefix(ch.Text, "Experiência Profissional") {
		t.Errorf("chunk text should start with the section heading, got %q", ch.Text)
	}
	if !strings.Contains(ch.Text, "Acme Corp") {
		t.Errorf("chunk text should contain the section body, got %q", ch.Text)
	}
	if ch.Section != "experience" {
		t.Errorf("Section = %q, want experience", ch.Section)
	}
	if ch.Hash == "" {
		t.Error("Hash should not be empty")
	}
	if ch.TokenCount <= 0 {
		t.Error("TokenCount should be > 0")
	}
}

func TestChunkSkipsEmptySections(t *testing.T) {
	c := New(Config{})
	sections := []parser.Section{
		{Heading: "", Content: "", Type: "paragraph"},
		{Heading: "Skills", Content: "Go, Python", Type: "skills"},
	}

	chunks := c.Chunk(sections)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Section != "skills" {
		t.Errorf("Section = %q, want skills", chunks[0].Section)
	}
}

func TestChunkLongContentSplits(t *testing.T) {
	c := New(Config{MaxTokens: 50, Overlap: 10})

	// ~40 words per paragraph, 5 paragraphs: must split.
	para := strings.Repeat("worked on distributed systems and backend services ", 8)
	content := strings.TrimSpace(strings.Repeat(para+"\n\n", 5))

	chunks := c.Chunk([]parser.Section{{Heading: "Experience", Content: content, Type: "experience"}})

	if len(chunks) < 2 {
		t.Fatalf("expected content to split into multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has Index %d", i, ch.Index)
		}
		if ch.Text == "" {
			t.Errorf("chunk %d has empty text", i)
		}
	}
}

func TestChunkIndicesContinueAcrossSections(t *testing.T) {
	c := New(Config{})
	sections := []parser.Section{
		{Heading: "Experience", Content: "Backend work.", Type: "experience"},
		{Heading: "Education", Content: "BSc Computer Science.", Type: "education"},
	}

	chunks := c.Chunk(sections)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Index != 0 || chunks[1].Index != 1 {
		t.Errorf("indices = %d, %d; want 0, 1", chunks[0].Index, chunks[1].Index)
	}
	if chunks[0].Hash == chunks[1].Hash {
		t.Error("distinct chunk texts must hash differently")
	}
}

func TestChunkHashesAreDeterministic(t *testing.T) {
	c := New(Config{})
	sections := []parser.Section{
		{Heading: "Skills", Content: "Go, Python", Type: "skills"},
	}

	first := c.Chunk(sections)
	second := c.Chunk(sections)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d and %d chunks, want 1 each", len(first), len(second))
	}
	if first[0].Hash != second[0].Hash {
		t.Errorf("same text hashed differently: %s vs %s", first[0].Hash, second[0].Hash)
	}
}

func TestSplitContentOverlap(t *testing.T) {
	c := New(Config{MaxTokens: 30, Overlap: 8})
	para1 := strings.Repeat("alpha beta gamma delta ", 5)
	para2 := strings.Repeat("epsilon zeta eta theta ", 5)
	frags := c.splitContent(para1 + "\n\n" + para2)

	if len(frags) < 2 {
		t.Fatalf("expected at least 2 fragments, got %d", len(frags))
	}
	// Second fragment starts with the overlap carried from the first.
	tail := extractOverlap(frags[0], 8)
	if tail == "" {
		t.Fatal("extractOverlap returned empty overlap")
	}
	if !strings.HasPrefix(frags[1], tail) {
		t.Errorf("fragment 2 should start with overlap %q, got %q", tail, frags[1][:min(len(frags[1]), 60)])
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 2},              // ceil(1 * 1.3)
		{"one two three", 4},    // ceil(3 * 1.3)
		{"a b c d e f g h", 11}, // ceil(8 * 1.3)
	}
	for _, tt := range tests {
		if got := estimateTokens(tt.text); got != tt.want {
			t.Errorf("estimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First sentence. Second one! Third?")
	if len(got) != 3 {
		t.Fatalf("got %d sentences, want 3: %v", len(got), got)
	}
	if got[0] != "First sentence." {
		t.Errorf("first sentence = %q", got[0])
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
