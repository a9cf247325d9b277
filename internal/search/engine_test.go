package search

import (
	"fmt"
	"math"
	"testing"

	"docsearch/internal/capability"
	"docsearch/internal/chunker"
	"docsearch/internal/store"
)

// fakeBackend serves canned candidates and records how it was called.
type fakeBackend struct {
	vecHits []store.Candidate
	kwHits  []store.Candidate
	vecErr  error
	kwErr   error

	vecCalls  int
	kwCalls   int
	lastTags  []string
	lastQuery string
}

func (f *fakeBackend) VectorSearch(query []float32, limit int, tags []string) ([]store.Candidate, error) {
	f.vecCalls++
	f.lastTags = tags
	return f.vecHits, f.vecErr
}

func (f *fakeBackend) KeywordSearch(query string, limit int, tags []string) ([]store.Candidate, error) {
	f.kwCalls++
	f.lastTags = tags
	f.lastQuery = query
	return f.kwHits, f.kwErr
}

func (f *fakeBackend) CreateSchema(int, bool) error                    { return nil }
func (f *fakeBackend) StoreChunks([]chunker.Chunk) (int, error)        { return 0, nil }
func (f *fakeBackend) SetConfig(map[string]string) error               { return nil }
func (f *fakeBackend) GetConfig() (map[string]string, error)           { return nil, nil }
func (f *fakeBackend) Stats() (store.Stats, error)                     { return store.Stats{}, nil }
func (f *fakeBackend) Validate() (*store.ValidationReport, error)      { return &store.ValidationReport{}, nil }
func (f *fakeBackend) Close() error                                    { return nil }

// fixedEmbedder always returns the same vector and records the last text it
// was asked to embed.
type fixedEmbedder struct {
	err      error
	lastText string
}

func (e *fixedEmbedder) Embed(text string) ([]float32, error) {
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0}, nil
}
func (e *fixedEmbedder) EmbedBatch(texts []string) ([][]float32, error) { return nil, nil }
func (e *fixedEmbedder) Dimension() int                                 { return 2 }

func cand(id string, score float64) store.Candidate {
	return store.Candidate{ID: id, Content: "content " + id, Filename: id + ".txt", Score: score}
}

func TestFusionWeightsExact(t *testing.T) {
	fb := &fakeBackend{
		vecHits: []store.Candidate{cand("both", 1.0), cand("veconly", 1.0)},
		kwHits:  []store.Candidate{cand("both", 1.0), cand("kwonly", 1.0)},
	}
	e := New(fb, &fixedEmbedder{}, capability.Detect())
	results, err := e.Search(Query{Text: "install", Count: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.ID] = r
	}
	tests := []struct {
		id   string
		want float64
	}{
		{"both", 1.0},     // 0.7*1 + 0.3*1
		{"veconly", 0.7},  // vector side only
		{"kwonly", 0.3},   // keyword side only
	}
	for _, tt := range tests {
		r, ok := byID[tt.id]
		if !ok {
			t.Fatalf("result %q missing", tt.id)
		}
		if math.Abs(r.Score-tt.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tt.id, r.Score, tt.want)
		}
	}
	if results[0].ID != "both" {
		t.Errorf("hybrid hit must rank first, got %q", results[0].ID)
	}
}

func TestSearchCountCut(t *testing.T) {
	fb := &fakeBackend{}
	for i := 0; i < 8; i++ {
		fb.vecHits = append(fb.vecHits, cand(fmt.Sprintf("c%d", i), 1.0-float64(i)*0.1))
	}
	e := New(fb, &fixedEmbedder{}, capability.Detect())
	results, err := e.Search(Query{Text: "q", Count: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Score < results[1].Score || results[1].Score < results[2].Score {
		t.Error("results not sorted by descending score")
	}
}

func TestKeywordOnlyWithoutEmbedder(t *testing.T) {
	fb := &fakeBackend{kwHits: []store.Candidate{cand("a", 0.8)}}
	e := New(fb, nil, capability.Detect())
	results, err := e.Search(Query{Text: "find me"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if fb.vecCalls != 0 {
		t.Errorf("vector search ran %d times without an embedder", fb.vecCalls)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if math.Abs(results[0].Score-0.3*0.8) > 1e-9 {
		t.Errorf("keyword-only score: got %v, want %v", results[0].Score, 0.3*0.8)
	}
}

func TestKeywordOnlyOnEmbedError(t *testing.T) {
	fb := &fakeBackend{kwHits: []store.Candidate{cand("a", 1.0)}}
	e := New(fb, &fixedEmbedder{err: fmt.Errorf("api down")}, capability.Detect())
	results, err := e.Search(Query{Text: "find me"})
	if err != nil {
		t.Fatalf("search must degrade, not fail: %v", err)
	}
	if fb.vecCalls != 0 {
		t.Error("vector search ran despite embed failure")
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestDistanceThresholdFiltersFusedScores(t *testing.T) {
	fb := &fakeBackend{
		vecHits: []store.Candidate{cand("near", 0.9), cand("far", 0.4)},
		kwHits:  []store.Candidate{cand("kw", 1.0)},
	}
	e := New(fb, &fixedEmbedder{}, capability.Detect())
	// The threshold applies to the fused score: "near" fuses to 0.63,
	// "far" to 0.28, and the keyword-only "kw" to 0.3.
	results, err := e.Search(Query{Text: "q", DistanceThreshold: 0.5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "near" {
		t.Fatalf("threshold filter failed: %v", results)
	}
}

func TestDistanceThresholdAppliesToKeywordOnlyHits(t *testing.T) {
	// A perfect keyword-only hit fuses to 0.3 and must not survive a
	// higher minimum score.
	fb := &fakeBackend{kwHits: []store.Candidate{cand("kw", 1.0)}}
	e := New(fb, &fixedEmbedder{}, capability.Detect())
	results, err := e.Search(Query{Text: "q", DistanceThreshold: 0.5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("keyword-only hit below threshold returned: %v", results)
	}

	results, err = e.Search(Query{Text: "q", DistanceThreshold: 0.2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("keyword-only hit above threshold dropped: %v", results)
	}
}

func TestTagsForwardedToBackend(t *testing.T) {
	fb := &fakeBackend{}
	e := New(fb, &fixedEmbedder{}, capability.Detect())
	if _, err := e.Search(Query{Text: "q", Tags: []string{"v2", "beta"}}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(fb.lastTags) != 2 || fb.lastTags[0] != "v2" {
		t.Errorf("tags not forwarded: %v", fb.lastTags)
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	e := New(&fakeBackend{}, nil, capability.Detect())
	if _, err := e.Search(Query{Text: "   "}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestVectorErrorPropagates(t *testing.T) {
	fb := &fakeBackend{vecErr: fmt.Errorf("dimension mismatch")}
	e := New(fb, &fixedEmbedder{}, capability.Detect())
	if _, err := e.Search(Query{Text: "q"}); err == nil {
		t.Fatal("expected vector search error to propagate")
	}
}

func TestQueryEmbedsEnhancedText(t *testing.T) {
	fb := &fakeBackend{}
	emb := &fixedEmbedder{}
	e := New(fb, emb, capability.Detect())
	if _, err := e.Search(Query{Text: "installing the agents", Language: "en"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if emb.lastText != fb.lastQuery {
		t.Errorf("embedded %q but keyword-searched %q; both sides must use the enhanced query",
			emb.lastText, fb.lastQuery)
	}
	if emb.lastText == "installing the agents" {
		t.Error("query was embedded raw, not enhanced")
	}
}

func TestKeywordOnlyWithoutVectorMath(t *testing.T) {
	fb := &fakeBackend{kwHits: []store.Candidate{cand("a", 0.8)}}
	caps := capability.Detect()
	caps.VectorMath = false
	e := New(fb, &fixedEmbedder{}, caps)
	results, err := e.Search(Query{Text: "find me"})
	if err != nil {
		t.Fatalf("search must degrade, not fail: %v", err)
	}
	if fb.vecCalls != 0 {
		t.Errorf("vector search ran %d times without vector math", fb.vecCalls)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestKeywordErrorSurvivableWithVectors(t *testing.T) {
	fb := &fakeBackend{
		vecHits: []store.Candidate{cand("a", 0.9)},
		kwErr:   fmt.Errorf("fts broken"),
	}
	e := New(fb, &fixedEmbedder{}, capability.Detect())
	results, err := e.Search(Query{Text: "q"})
	if err != nil {
		t.Fatalf("search should survive keyword failure: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}
