package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func TestPageChunkerFromPageList(t *testing.T) {
	c := &PageChunker{}
	chunks := c.Chunk(Input{Pages: []string{"First slide text.", "", "Third slide text."}}, "deck.pptx")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (empty page skipped)", len(chunks))
	}
	if chunks[0].Section != "Page 1" || chunks[1].Section != "Page 3" {
		t.Errorf("sections: got %q, %q", chunks[0].Section, chunks[1].Section)
	}
	if chunks[1].Metadata["page_number"] != 3 {
		t.Errorf("page_number: got %v, want 3", chunks[1].Metadata["page_number"])
	}
}

func TestPageChunkerFormFeed(t *testing.T) {
	c := &PageChunker{}
	chunks := c.Chunk(Input{Text: "page one text\fpage two text"}, "doc.txt")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Content != "page one text" {
		t.Errorf("first page: got %q", chunks[0].Content)
	}
}

func TestPageChunkerExplicitMarkers(t *testing.T) {
	text := "intro text\n---PAGE---\nsecond part\n---PAGE---\nthird part"
	c := &PageChunker{}
	chunks := c.Chunk(Input{Text: text}, "doc.txt")
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
}

func TestPageChunkerPageNumberLines(t *testing.T) {
	text := "before\nPage 1\nafter page one\nPage 2\nafter page two"
	c := &PageChunker{}
	chunks := c.Chunk(Input{Text: text}, "doc.txt")
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
}

func TestPageChunkerSyntheticPartition(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	c := &PageChunker{}
	chunks := c.Chunk(Input{Text: strings.Join(words, " ")}, "doc.txt")
	if len(chunks) != 10 {
		t.Fatalf("got %d chunks, want 10", len(chunks))
	}
	for i, ch := range chunks {
		if n := len(strings.Fields(ch.Content)); n != 10 {
			t.Errorf("page %d: got %d words, want 10", i+1, n)
		}
	}
}

// stubEmbedder maps sentences to axis vectors by topic words.
type stubEmbedder struct {
	fail bool
}

func (s *stubEmbedder) Embed(text string) ([]float32, error) {
	if s.fail {
		return nil, fmt.Errorf("embedder offline")
	}
	if strings.Contains(text, "cat") || strings.Contains(text, "dog") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func TestSemanticChunkerCutsOnTopicShift(t *testing.T) {
	text := "The cat sleeps all day. A dog barks at the cat. Stocks rose sharply today. Markets closed higher than expected."
	c := &SemanticChunker{Threshold: 0.5, Embedder: &stubEmbedder{},
		fallback: &SentenceChunker{}}
	chunks := c.Chunk(Input{Text: text}, "doc.txt")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "dog barks") {
		t.Errorf("first chunk should hold the animal sentences: %q", chunks[0].Content)
	}
	if !strings.Contains(chunks[1].Content, "Stocks rose") {
		t.Errorf("second chunk should hold the finance sentences: %q", chunks[1].Content)
	}
	if chunks[0].Metadata["chunk_method"] != MethodSemantic {
		t.Errorf("method: got %v", chunks[0].Metadata["chunk_method"])
	}
}

func TestSemanticChunkerMergesSingleFragment(t *testing.T) {
	// The final finance sentence would form a 1-sentence chunk; it must merge
	// into the previous one instead.
	text := "The cat sleeps. The dog barks. Stocks rose sharply."
	c := &SemanticChunker{Threshold: 0.5, Embedder: &stubEmbedder{},
		fallback: &SentenceChunker{}}
	chunks := c.Chunk(Input{Text: text}, "doc.txt")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "Stocks rose sharply.") {
		t.Errorf("fragment not merged: %q", chunks[0].Content)
	}
}

func TestSemanticChunkerFallsBackWithoutEmbedder(t *testing.T) {
	c := &SemanticChunker{Threshold: 0.5, fallback: &SentenceChunker{MaxSentences: 5}}
	chunks := c.Chunk(Input{Text: "One sentence. Two sentences."}, "doc.txt")
	if len(chunks) == 0 {
		t.Fatal("fallback produced no chunks")
	}
	if chunks[0].Metadata["chunk_method"] != MethodSentence {
		t.Errorf("expected sentence fallback, got %v", chunks[0].Metadata["chunk_method"])
	}
}

func TestSemanticChunkerFallsBackOnEmbedError(t *testing.T) {
	c := &SemanticChunker{Threshold: 0.5, Embedder: &stubEmbedder{fail: true},
		fallback: &SentenceChunker{MaxSentences: 5}}
	chunks := c.Chunk(Input{Text: "One sentence. Two sentences."}, "doc.txt")
	if len(chunks) == 0 {
		t.Fatal("fallback produced no chunks")
	}
	if chunks[0].Metadata["chunk_method"] != MethodSentence {
		t.Errorf("expected sentence fallback, got %v", chunks[0].Metadata["chunk_method"])
	}
}

func TestTopicChunkerSplitsOnKeywordShift(t *testing.T) {
	text := "Baking bread requires yeast. Bread baking needs yeast patience. Telescopes observe distant galaxies."
	c := &TopicChunker{Threshold: 0.3}
	chunks := c.Chunk(Input{Text: text}, "doc.txt")
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "yeast patience") {
		t.Errorf("first chunk: %q", chunks[0].Content)
	}
	if !strings.Contains(chunks[1].Content, "Telescopes") {
		t.Errorf("second chunk: %q", chunks[1].Content)
	}
	if chunks[0].Metadata["chunk_method"] != MethodTopic {
		t.Errorf("method: got %v", chunks[0].Metadata["chunk_method"])
	}
}

func TestTopicChunkerKeepsShortRunsTogether(t *testing.T) {
	// A topic shift after a single sentence must not split: chunks need at
	// least two sentences before a boundary is allowed.
	text := "Baking bread requires yeast. Telescopes observe distant galaxies."
	c := &TopicChunker{Threshold: 0.3}
	chunks := c.Chunk(Input{Text: text}, "doc.txt")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestQAChunkerGroupsQuestionWithContext(t *testing.T) {
	text := "The system works well. How do I install the agent? Download the installer from the portal. Run it with admin rights."
	c := &QAChunker{}
	chunks := c.Chunk(Input{Text: text}, "faq.txt")
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	first := chunks[0].Content
	if !strings.Contains(first, "How do I install the agent?") {
		t.Errorf("question missing from first chunk: %q", first)
	}
	if !strings.Contains(first, "Download the installer") {
		t.Errorf("answer context missing from first chunk: %q", first)
	}
	if chunks[0].Metadata["chunk_method"] != MethodQA {
		t.Errorf("method: got %v", chunks[0].Metadata["chunk_method"])
	}
}

func TestQAChunkerHardFlush(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&sb, "Plain statement number %d here. ", i)
	}
	c := &QAChunker{}
	chunks := c.Chunk(Input{Text: sb.String()}, "doc.txt")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := len(SplitSentences(ch.Content)); n > 5 {
			t.Errorf("chunk %d holds %d sentences, max is 5", i, n)
		}
	}
}

func TestQARelevanceHeuristics(t *testing.T) {
	tests := []struct {
		sentence string
		want     bool
	}{
		{"How do I reset my password?", true},
		{"Can the service run offline", true},
		{"Follow these steps to configure the device.", true},
		{"An index means a prebuilt search artifact.", true},
		{"The sky was clear yesterday.", false},
	}
	for _, tt := range tests {
		if got := isQARelevant(tt.sentence); got != tt.want {
			t.Errorf("isQARelevant(%q): got %v, want %v", tt.sentence, got, tt.want)
		}
	}
}
