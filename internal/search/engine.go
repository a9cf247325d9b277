// Package search fuses the store's two retrieval primitives into hybrid
// ranked results. Vector similarity dominates the blend; keyword relevance
// breaks ties and catches exact terms embeddings miss. Without a working
// embedder the engine degrades to keyword-only ranking instead of failing.
package search

import (
	"fmt"
	"sort"
	"strings"

	"docsearch/internal/capability"
	"docsearch/internal/embedding"
	"docsearch/internal/enhancer"
	"docsearch/internal/errlog"
	"docsearch/internal/store"
)

// Score fusion weights. A hit found by only one side keeps that side's
// weighted score, so hybrid hits always outrank single-side hits of equal
// strength.
const (
	VectorWeight  = 0.7
	KeywordWeight = 0.3
)

// Query is one search request.
type Query struct {
	Text              string
	Count             int
	DistanceThreshold float64 // minimum fused score a result must reach; 0 disables
	Tags              []string
	Language          string // "auto" or a language code, used for query enhancement
}

// Result is a fused hit.
type Result struct {
	store.Candidate
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
}

// Engine runs hybrid queries against one index. Without an embedder, or with
// vector math flagged unavailable, every query runs keyword-only.
type Engine struct {
	store    store.Backend
	embedder embedding.Embedder
	caps     capability.Capabilities
}

// New creates an Engine over an open store.
func New(st store.Backend, embedder embedding.Embedder, caps capability.Capabilities) *Engine {
	return &Engine{store: st, embedder: embedder, caps: caps}
}

// Search executes one hybrid query. Candidate pools are fetched at twice the
// requested count so fusion has enough overlap to rank meaningfully.
func (e *Engine) Search(q Query) ([]Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("empty query")
	}
	count := q.Count
	if count <= 0 {
		count = 5
	}
	pool := count * 2

	// Both the vector and the keyword side search over the enhanced query,
	// matching what was enhanced and embedded at index time.
	enhanced := e.enhanceQuery(text, q.Language)

	queryVec := e.embedQuery(enhanced)

	var vecHits []store.Candidate
	if queryVec != nil {
		var err error
		vecHits, err = e.store.VectorSearch(queryVec, pool, q.Tags)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
	}

	kwHits, err := e.store.KeywordSearch(enhanced, pool, q.Tags)
	if err != nil {
		// Keyword failure is survivable as long as the vector side ran.
		if queryVec == nil {
			return nil, fmt.Errorf("keyword search: %w", err)
		}
		errlog.Logf("keyword search failed, using vector results only: %v", err)
		kwHits = nil
	}

	results := fuse(vecHits, kwHits)
	if q.DistanceThreshold > 0 {
		kept := results[:0]
		for _, r := range results {
			if r.Score >= q.DistanceThreshold {
				kept = append(kept, r)
			}
		}
		results = kept
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

// enhanceQuery expands the query with stems and synonyms for the keyword
// side. Enhancement never fails; at worst the raw text is returned.
func (e *Engine) enhanceQuery(text, language string) string {
	res := enhancer.Enhance(text, enhancer.Options{Language: language, MaxSynonyms: 2})
	if res.EnhancedText == "" {
		return text
	}
	return res.EnhancedText
}

// embedQuery returns nil when no vector search is possible, switching the
// engine into keyword-only mode.
func (e *Engine) embedQuery(text string) []float32 {
	if e.embedder == nil || !e.caps.VectorMath {
		errlog.WarnOnce("search-no-embedder", "vector search unavailable, searches run keyword-only")
		return nil
	}
	v, err := e.embedder.Embed(text)
	if err != nil {
		errlog.Logf("query embedding failed, falling back to keyword-only search: %v", err)
		return nil
	}
	return v
}

// fuse blends the two candidate pools by chunk ID.
func fuse(vecHits, kwHits []store.Candidate) []Result {
	merged := make(map[string]*Result, len(vecHits)+len(kwHits))
	var order []string

	for _, h := range vecHits {
		r := &Result{Candidate: h, VectorScore: h.Score}
		r.Score = VectorWeight * h.Score
		merged[h.ID] = r
		order = append(order, h.ID)
	}
	for _, h := range kwHits {
		if r, ok := merged[h.ID]; ok {
			r.KeywordScore = h.Score
			r.Score = VectorWeight*r.VectorScore + KeywordWeight*h.Score
			continue
		}
		r := &Result{Candidate: h, KeywordScore: h.Score}
		r.Score = KeywordWeight * h.Score
		merged[h.ID] = r
		order = append(order, h.ID)
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		results = append(results, *merged[id])
	}
	return results
}
