package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"docsearch/internal/config"
)

// SentenceChunker groups sentences into fixed-size chunks with a 25% sentence
// overlap between consecutive chunks. It is also the universal fallback for
// every other strategy.
type SentenceChunker struct {
	MaxSentences  int // sentences per chunk; default 5
	SplitNewlines int // pre-split on runs of >= N newlines; 0 disables
}

func (c *SentenceChunker) Name() string { return MethodSentence }

// Chunk splits the input into sentence groups. Overlap is
// max(1, MaxSentences/4) so adjacent chunks share context without doubling
// the index size.
func (c *SentenceChunker) Chunk(in Input, filename string) []Chunk {
	maxSentences := c.MaxSentences
	if maxSentences <= 0 {
		maxSentences = config.DefaultMaxSentencesPerChunk
	}
	overlap := maxSentences / 4
	if overlap < 1 {
		overlap = 1
	}

	blocks := []string{in.Plain()}
	if c.SplitNewlines > 0 {
		blocks = splitOnNewlineRuns(in.Plain(), c.SplitNewlines)
	}

	var chunks []Chunk
	index := 0
	for _, block := range blocks {
		sentences := SplitSentences(block)
		if len(sentences) == 0 {
			continue
		}
		step := maxSentences - overlap
		if step < 1 {
			step = 1
		}
		for start := 0; start < len(sentences); start += step {
			end := start + maxSentences
			if end > len(sentences) {
				end = len(sentences)
			}
			ch := newChunk(strings.Join(sentences[start:end], " "), filename,
				fmt.Sprintf("Chunk %d", index+1), map[string]interface{}{
					"chunk_method":            MethodSentence,
					"chunk_index":             index,
					"max_sentences_per_chunk": maxSentences,
					"overlap":                 overlap,
				})
			if ch != nil {
				chunks = append(chunks, *ch)
				index++
			}
			if end == len(sentences) {
				break
			}
		}
	}
	return chunks
}

// splitOnNewlineRuns splits text on runs of at least n consecutive newlines.
func splitOnNewlineRuns(text string, n int) []string {
	re := regexp.MustCompile(fmt.Sprintf(`\n{%d,}`, n))
	parts := re.Split(text, -1)
	var blocks []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			blocks = append(blocks, p)
		}
	}
	if len(blocks) == 0 {
		return []string{text}
	}
	return blocks
}
