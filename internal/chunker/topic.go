package chunker

import (
	"fmt"
	"strings"

	"docsearch/internal/config"
)

// topicStopwords is a minimal English stop list for topic keyword extraction;
// topic shift detection only needs content words filtered, not full stopword
// coverage.
var topicStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "this": true,
	"that": true, "with": true, "from": true, "have": true, "has": true,
	"was": true, "were": true, "will": true, "would": true, "there": true,
	"their": true, "they": true, "them": true, "then": true, "than": true,
	"what": true, "when": true, "where": true, "which": true, "into": true,
	"your": true, "some": true, "also": true, "been": true, "more": true,
	"about": true, "other": true, "these": true, "those": true,
}

// TopicChunker starts a new chunk when the keyword overlap between the
// running chunk and the next sentence drops below Threshold and the current
// chunk already holds at least two sentences.
type TopicChunker struct {
	Threshold float64
}

func (c *TopicChunker) Name() string { return MethodTopic }

func (c *TopicChunker) Chunk(in Input, filename string) []Chunk {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = config.DefaultTopicThreshold
	}

	sentences := SplitSentences(in.Plain())
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	index := 0
	var current []string
	currentKeywords := map[string]bool{}

	flush := func() {
		if len(current) == 0 {
			return
		}
		topics := make([]string, 0, len(currentKeywords))
		for kw := range currentKeywords {
			topics = append(topics, kw)
		}
		ch := newChunk(strings.Join(current, " "), filename,
			fmt.Sprintf("Chunk %d", index+1), map[string]interface{}{
				"chunk_method":    MethodTopic,
				"chunk_index":     index,
				"topic_threshold": threshold,
				"topic_keywords":  topics,
			})
		if ch != nil {
			chunks = append(chunks, *ch)
			index++
		}
		current = nil
		currentKeywords = map[string]bool{}
	}

	for _, sentence := range sentences {
		kws := topicKeywords(sentence)
		if len(current) >= 2 && keywordOverlap(currentKeywords, kws) < threshold {
			flush()
		}
		current = append(current, sentence)
		for kw := range kws {
			currentKeywords[kw] = true
		}
	}
	flush()
	return chunks
}

// topicKeywords extracts lowercase alphabetic keywords longer than 3 runes.
func topicKeywords(sentence string) map[string]bool {
	kws := map[string]bool{}
	for _, field := range strings.Fields(strings.ToLower(sentence)) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return r < 'a' || r > 'z'
		})
		if len(word) <= 3 || topicStopwords[word] {
			continue
		}
		alpha := true
		for _, r := range word {
			if r < 'a' || r > 'z' {
				alpha = false
				break
			}
		}
		if alpha {
			kws[word] = true
		}
	}
	return kws
}

// keywordOverlap computes the share of the sentence's keywords already seen
// in the running chunk. A sentence with no keywords counts as full overlap
// so it never forces a boundary on its own.
func keywordOverlap(current map[string]bool, next map[string]bool) float64 {
	if len(next) == 0 {
		return 1
	}
	if len(current) == 0 {
		return 0
	}
	matched := 0
	for kw := range next {
		if current[kw] {
			matched++
		}
	}
	return float64(matched) / float64(len(next))
}
