package chunker

import (
	"fmt"
	"strings"

	"docsearch/internal/config"
	"docsearch/internal/errlog"
	"docsearch/internal/vec"
)

// SemanticChunker cuts chunk boundaries where the cosine similarity between
// adjacent sentence embeddings drops below Threshold. Single-sentence
// fragments merge into the previous chunk (minimum chunk size is two
// sentences except at the very start). Without an embedder, or on any
// embedding failure, it degrades to sentence chunking.
type SemanticChunker struct {
	Threshold float64
	Embedder  SentenceEmbedder
	fallback  *SentenceChunker
}

func (c *SemanticChunker) Name() string { return MethodSemantic }

func (c *SemanticChunker) Chunk(in Input, filename string) []Chunk {
	if c.Embedder == nil {
		errlog.WarnOnce("semantic-no-embedder", "semantic chunking requires an embedder, falling back to sentence chunking")
		return c.fallback.Chunk(in, filename)
	}

	threshold := c.Threshold
	if threshold <= 0 {
		threshold = config.DefaultSemanticThreshold
	}

	sentences := SplitSentences(in.Plain())
	if len(sentences) == 0 {
		return nil
	}
	if len(sentences) == 1 {
		return c.emit([][]string{sentences}, filename, threshold)
	}

	embeddings := make([][]float32, len(sentences))
	for i, s := range sentences {
		e, err := c.Embedder.Embed(s)
		if err != nil {
			errlog.Logf("semantic chunking: embed sentence %d of %s: %v", i, filename, err)
			return c.fallback.Chunk(in, filename)
		}
		embeddings[i] = e
	}

	// Cut where adjacent similarity drops below the threshold.
	var groups [][]string
	current := []string{sentences[0]}
	for i := 1; i < len(sentences); i++ {
		sim := float64(vec.Cosine(embeddings[i-1], embeddings[i]))
		if sim < threshold && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, sentences[i])
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	// Merge 1-sentence fragments into the previous group.
	merged := groups[:0]
	for _, g := range groups {
		if len(g) == 1 && len(merged) > 0 {
			merged[len(merged)-1] = append(merged[len(merged)-1], g...)
			continue
		}
		merged = append(merged, g)
	}

	return c.emit(merged, filename, threshold)
}

func (c *SemanticChunker) emit(groups [][]string, filename string, threshold float64) []Chunk {
	var chunks []Chunk
	index := 0
	for _, g := range groups {
		ch := newChunk(strings.Join(g, " "), filename,
			fmt.Sprintf("Chunk %d", index+1), map[string]interface{}{
				"chunk_method":       MethodSemantic,
				"chunk_index":        index,
				"semantic_threshold": threshold,
			})
		if ch != nil {
			chunks = append(chunks, *ch)
			index++
		}
	}
	return chunks
}
