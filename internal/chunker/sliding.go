package chunker

import (
	"fmt"
	"strings"

	"docsearch/internal/config"
)

// SlidingWindowChunker produces word-level windows of ChunkSize words
// advancing by ChunkSize−OverlapSize words per step. Consecutive chunks share
// exactly OverlapSize words at the boundary; only the final chunk may be
// shorter than ChunkSize.
type SlidingWindowChunker struct {
	ChunkSize   int // words per window; default 50
	OverlapSize int // shared words between adjacent windows; default 10
	fallback    *SentenceChunker
}

func (c *SlidingWindowChunker) Name() string { return MethodSliding }

func (c *SlidingWindowChunker) Chunk(in Input, filename string) []Chunk {
	size := c.ChunkSize
	if size <= 0 {
		size = config.DefaultChunkSize
	}
	overlap := c.OverlapSize
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		// Window would never advance; fall back rather than loop forever.
		return c.fallback.Chunk(in, filename)
	}

	words := strings.Fields(in.Plain())
	if len(words) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []Chunk
	index := 0
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		ch := newChunk(strings.Join(words[start:end], " "), filename,
			fmt.Sprintf("Chunk %d", index+1), map[string]interface{}{
				"chunk_method": MethodSliding,
				"chunk_index":  index,
				"chunk_size":   size,
				"overlap_size": overlap,
			})
		if ch != nil {
			chunks = append(chunks, *ch)
			index++
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}
