// Package chunker splits extracted document text into retrievable chunks.
// Seven strategies are available (sentence, sliding window, paragraph, page,
// semantic, topic, QA-optimized), each implementing the Strategy interface
// and selected once at index-builder construction. Every strategy degrades to
// sentence chunking on an internal failure: chunking never hard-fails a
// build.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"docsearch/internal/config"
)

// Chunk method names recorded in chunk metadata.
const (
	MethodSentence  = "sentence_based"
	MethodSliding   = "sliding_window"
	MethodParagraph = "paragraph_based"
	MethodPage      = "page_based"
	MethodSemantic  = "semantic"
	MethodTopic     = "topic_based"
	MethodQA        = "qa_optimized"
)

// Chunk is the atomic retrievable unit: a span of document text plus the
// enrichment attached during a build (enhanced text, keywords, embedding,
// tags). Content is never empty after creation and is trimmed.
type Chunk struct {
	Content          string
	ProcessedContent string
	Keywords         []string
	Language         string
	Embedding        []float32
	Filename         string
	Section          string
	StartLine        int // 1-based; 0 means unknown
	EndLine          int // 1-based; 0 means unknown
	Tags             []string
	Metadata         map[string]interface{}
}

// Hash returns the chunk's dedup identity: a SHA-256 over filename, section,
// line range, and content. Rebuilding unchanged sources with unchanged
// parameters reproduces the same hashes, so repeated inserts are no-ops.
func (c *Chunk) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%s", c.Filename, c.Section, c.StartLine, c.EndLine, c.Content)
	return hex.EncodeToString(h.Sum(nil))
}

// Input is the chunker's view of an extracted document: either flat text or
// an ordered page/slide list from a page-oriented extractor.
type Input struct {
	Text  string
	Pages []string
}

// Plain returns the full text regardless of representation.
func (in Input) Plain() string {
	if in.Pages != nil {
		return strings.Join(in.Pages, "\n\n")
	}
	return in.Text
}

// SentenceEmbedder is the minimal embedding surface the semantic strategy
// needs. A nil embedder downgrades semantic chunking to sentence chunking.
type SentenceEmbedder interface {
	Embed(text string) ([]float32, error)
}

// Strategy produces chunks from one document. Implementations must not
// return an error: on failure they fall back to sentence chunking.
type Strategy interface {
	Name() string
	Chunk(in Input, filename string) []Chunk
}

// ForConfig builds the Strategy selected by cfg. Unknown strategy names fall
// back to sentence chunking. The embedder is only used by the semantic
// strategy and may be nil.
func ForConfig(cfg config.ChunkingConfig, embedder SentenceEmbedder) Strategy {
	sentence := &SentenceChunker{
		MaxSentences:  cfg.MaxSentencesPerChunk,
		SplitNewlines: cfg.SplitNewlines,
	}
	switch cfg.Strategy {
	case "sentence", "":
		return sentence
	case "sliding", "sliding_window":
		return &SlidingWindowChunker{ChunkSize: cfg.ChunkSize, OverlapSize: cfg.OverlapSize, fallback: sentence}
	case "paragraph":
		return &ParagraphChunker{}
	case "page":
		return &PageChunker{}
	case "semantic":
		return &SemanticChunker{Threshold: cfg.SemanticThreshold, Embedder: embedder, fallback: sentence}
	case "topic":
		return &TopicChunker{Threshold: cfg.TopicThreshold}
	case "qa", "qa_optimized":
		return &QAChunker{}
	default:
		return sentence
	}
}

// sentenceEndRe matches a sentence together with its terminating punctuation.
var sentenceEndRe = regexp.MustCompile(`(?s)[^.!?]+[.!?]+["')\]]*`)

// SplitSentences splits text into trimmed sentences. Text with no
// sentence-ending punctuation yields the whole text as one sentence.
func SplitSentences(text string) []string {
	matches := sentenceEndRe.FindAllString(text, -1)
	var sentences []string
	consumed := 0
	for _, m := range matches {
		consumed += len(m)
		s := strings.TrimSpace(m)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	// Trailing fragment without closing punctuation.
	if rest := strings.TrimSpace(text[minInt(consumed, len(text)):]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// newChunk assembles a chunk with trimmed content, skipping empties.
func newChunk(content, filename, section string, meta map[string]interface{}) *Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	return &Chunk{
		Content:  content,
		Filename: filename,
		Section:  section,
		Language: "en",
		Metadata: meta,
	}
}
