package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// paragraphSplitRe matches blank-line paragraph boundaries.
var paragraphSplitRe = regexp.MustCompile(`\n\s*\n`)

// ParagraphChunker emits one chunk per non-empty paragraph, split on
// blank-line boundaries. Line numbers are tracked so chunk hashes stay
// stable across rebuilds.
type ParagraphChunker struct{}

func (c *ParagraphChunker) Name() string { return MethodParagraph }

func (c *ParagraphChunker) Chunk(in Input, filename string) []Chunk {
	text := in.Plain()
	paragraphs := paragraphSplitRe.Split(text, -1)

	var chunks []Chunk
	line := 1
	index := 0
	offset := 0
	for _, para := range paragraphs {
		// Locate the paragraph in the original text to count lines.
		rel := strings.Index(text[offset:], para)
		if rel >= 0 {
			line += strings.Count(text[offset:offset+rel], "\n")
			offset += rel + len(para)
		}
		startLine := line
		endLine := line + strings.Count(para, "\n")
		line = endLine

		ch := newChunk(para, filename, fmt.Sprintf("Paragraph %d", index+1),
			map[string]interface{}{
				"chunk_method": MethodParagraph,
				"chunk_index":  index,
			})
		if ch == nil {
			continue
		}
		ch.StartLine = startLine
		ch.EndLine = endLine
		chunks = append(chunks, *ch)
		index++
	}
	return chunks
}
