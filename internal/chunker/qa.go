package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// qaLeadRe matches sentences opening with an interrogative or modal word.
var qaLeadRe = regexp.MustCompile(`(?i)^\s*(how|what|why|when|where|who|which|can|could|should|would|will|do|does|did|is|are|may|might|must)\b`)

// qaTopicRe matches sentences about procedures and definitions, which answer
// questions even when not phrased as one.
var qaTopicRe = regexp.MustCompile(`(?i)\b(steps?|process|procedure|examples?|definitions?|means|defined)\b`)

// QAChunker groups question-relevant sentences with their surrounding
// context so retrieval for question-style queries lands on self-contained
// answer spans. A chunk flushes once it holds at least three sentences and
// the current sentence ends on closing punctuation, or unconditionally at
// five sentences.
type QAChunker struct{}

func (c *QAChunker) Name() string { return MethodQA }

const (
	qaFlushMin  = 3
	qaFlushHard = 5
)

func (c *QAChunker) Chunk(in Input, filename string) []Chunk {
	sentences := SplitSentences(in.Plain())
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	index := 0
	var current []string
	inCurrent := map[int]bool{}

	flush := func() {
		if len(current) == 0 {
			return
		}
		ch := newChunk(strings.Join(current, " "), filename,
			fmt.Sprintf("Chunk %d", index+1), map[string]interface{}{
				"chunk_method": MethodQA,
				"chunk_index":  index,
			})
		if ch != nil {
			chunks = append(chunks, *ch)
			index++
		}
		current = nil
		inCurrent = map[int]bool{}
	}

	appendSentence := func(i int) {
		if i < 0 || i >= len(sentences) || inCurrent[i] {
			return
		}
		inCurrent[i] = true
		current = append(current, sentences[i])
	}

	for i, sentence := range sentences {
		if isQARelevant(sentence) {
			// Pull in surrounding context: previous and next sentence.
			appendSentence(i - 1)
			appendSentence(i)
			appendSentence(i + 1)
		} else {
			appendSentence(i)
		}

		if len(current) >= qaFlushHard ||
			(len(current) >= qaFlushMin && endsNaturally(sentence)) {
			flush()
		}
	}
	flush()
	return chunks
}

// isQARelevant reports whether a sentence looks like a question or an
// answer-bearing statement.
func isQARelevant(sentence string) bool {
	if strings.Contains(sentence, "?") {
		return true
	}
	return qaLeadRe.MatchString(sentence) || qaTopicRe.MatchString(sentence)
}

// endsNaturally reports whether the sentence ends with closing punctuation.
func endsNaturally(sentence string) bool {
	s := strings.TrimRight(strings.TrimSpace(sentence), `"')]`)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}
