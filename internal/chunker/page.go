package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// Explicit page markers recognized in flat text.
var pageMarkerRe = regexp.MustCompile(`(?m)^---PAGE---\s*$`)
var pageNumberRe = regexp.MustCompile(`(?m)^\s*Page \d+\s*$`)

// syntheticPages is the partition count when no page boundaries exist.
const syntheticPages = 10

// PageChunker emits one chunk per page. Page-oriented extractions (PDF,
// PPTX) arrive as a page list; flat text is split on form feeds, explicit
// ---PAGE--- markers, or "Page N" lines, falling back to an equal word-count
// partition of ~10 synthetic pages.
type PageChunker struct{}

func (c *PageChunker) Name() string { return MethodPage }

func (c *PageChunker) Chunk(in Input, filename string) []Chunk {
	pages := in.Pages
	if pages == nil {
		pages = splitIntoPages(in.Text)
	}

	var chunks []Chunk
	index := 0
	for pageNo, page := range pages {
		ch := newChunk(page, filename, fmt.Sprintf("Page %d", pageNo+1),
			map[string]interface{}{
				"chunk_method": MethodPage,
				"chunk_index":  index,
				"page_number":  pageNo + 1,
			})
		if ch != nil {
			chunks = append(chunks, *ch)
			index++
		}
	}
	return chunks
}

// splitIntoPages finds page boundaries in flat text.
func splitIntoPages(text string) []string {
	if strings.Contains(text, "\f") {
		return strings.Split(text, "\f")
	}
	if pageMarkerRe.MatchString(text) {
		return pageMarkerRe.Split(text, -1)
	}
	if pageNumberRe.MatchString(text) {
		return pageNumberRe.Split(text, -1)
	}

	// No markers: partition into roughly equal word-count pages.
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	perPage := (len(words) + syntheticPages - 1) / syntheticPages
	if perPage < 1 {
		perPage = 1
	}
	var pages []string
	for start := 0; start < len(words); start += perPage {
		end := start + perPage
		if end > len(words) {
			end = len(words)
		}
		pages = append(pages, strings.Join(words[start:end], " "))
	}
	return pages
}
