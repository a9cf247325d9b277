package builder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docsearch/internal/capability"
	"docsearch/internal/chunker"
	"docsearch/internal/config"
	"docsearch/internal/embedding"
	"docsearch/internal/enhancer"
	"docsearch/internal/search"
	"docsearch/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testBuildConfig(t *testing.T, sources ...string) config.BuildConfig {
	t.Helper()
	cfg := config.DefaultBuildConfig()
	cfg.Sources = sources
	cfg.Output = filepath.Join(t.TempDir(), "index.swsearch")
	cfg.Embedding = config.EmbeddingConfig{Provider: "hash", ModelName: "hash-64", Dimensions: 64}
	return cfg
}

func TestDiscoverFiltersAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.md", "beta")
	writeFile(t, dir, "skip.log", "ignored type")
	writeFile(t, dir, "draft.txt", "excluded by pattern")
	writeFile(t, dir, "sub/nested.txt", "nested")
	wrongType := writeFile(t, dir, "explicit.log", "explicit but wrong type")
	noExt := writeFile(t, dir, "NOTES", "no extension")

	// dir plus an explicit duplicate, an explicit wrong-type file, and an
	// explicit extension-less file.
	cfg := testBuildConfig(t, dir, a, wrongType, noExt)
	cfg.FileTypes = []string{"txt", "md"}
	cfg.Exclude = []string{"draft.*"}

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	files, err := b.Discover()
	if err != nil {
		t.Fatalf("discover: %v", err)
	}

	if len(files) != 4 {
		t.Fatalf("got %d files %v, want 4", len(files), files)
	}
	seen := map[string]int{}
	for _, f := range files {
		seen[filepath.Base(f)]++
	}
	if seen["a.txt"] != 1 {
		t.Errorf("a.txt discovered %d times, want 1", seen["a.txt"])
	}
	if seen["nested.txt"] != 1 {
		t.Error("nested file not discovered")
	}
	if seen["NOTES"] != 1 {
		t.Error("explicit extension-less file not accepted")
	}
	if seen["skip.log"] != 0 || seen["draft.txt"] != 0 {
		t.Errorf("filtered files leaked: %v", files)
	}
	if seen["explicit.log"] != 0 {
		t.Error("explicit file bypassed the type filter")
	}
}

func TestBuildFailsWithoutSources(t *testing.T) {
	cfg := testBuildConfig(t, filepath.Join(t.TempDir(), "empty-dir-missing"))
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if _, err := b.Build(); err != ErrNoSources {
		t.Fatalf("got %v, want ErrNoSources", err)
	}
}

func TestBuildSkipsBrokenFilesAndContinues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "Readable content that chunks fine.")
	// A .pdf without PDF magic bytes fails extraction but must not kill the build.
	writeFile(t, dir, "broken.pdf", "this is not a pdf")

	cfg := testBuildConfig(t, dir)
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	summary, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if summary.Files != 1 {
		t.Errorf("processed files: got %d, want 1", summary.Files)
	}
	if summary.SkippedFiles != 1 {
		t.Errorf("skipped files: got %d, want 1", summary.SkippedFiles)
	}
	if summary.Inserted == 0 {
		t.Error("no chunks stored from the good file")
	}
}

func TestBuildThenSearchEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "install.md",
		"# Installation\n\nTo install the agent, download the installer and run it. "+
			"The install completes in about a minute.")
	writeFile(t, dir, "recipes.txt",
		"Pancakes need flour, milk, and eggs. Cook them on a hot griddle.")

	cfg := testBuildConfig(t, dir)
	cfg.Tags = []string{"docs"}
	cfg.Validate = true

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	summary, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if summary.Files != 2 || summary.Inserted == 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Validation == nil || !summary.Validation.OK() {
		t.Fatalf("validation failed: %+v", summary.Validation)
	}

	st, err := store.Open(cfg.Backend, cfg.Output, "")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer st.Close()

	engine := search.New(st, embedding.NewHashEmbedder(64), capability.Detect())
	results, err := engine.Search(search.Query{Text: "How do I install the agent?", Count: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for install question")
	}
	if !strings.Contains(results[0].Filename, "install.md") {
		t.Errorf("top result: got %q, want the install doc", results[0].Filename)
	}
	if len(results[0].Tags) != 1 || results[0].Tags[0] != "docs" {
		t.Errorf("build tags not attached: %v", results[0].Tags)
	}
}

func TestMarkdownHeadingSectionLabels(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guide.md",
		"# Guide\n\nIntro paragraph.\n\n## Install\n\nRun the installer now.\n")

	cfg := testBuildConfig(t, dir)
	cfg.Chunking.Strategy = "paragraph"

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	st, err := store.Open(cfg.Backend, cfg.Output, "")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer st.Close()

	hits, err := st.KeywordSearch("installer", 10, nil)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hit for installer paragraph")
	}
	if hits[0].Section != "Guide > Install" {
		t.Errorf("section: got %q, want %q", hits[0].Section, "Guide > Install")
	}
}

func TestBuildIdempotentReruns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "Stable content. It does not change between runs.")

	cfg := testBuildConfig(t, dir)
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	first, err := b.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if first.Inserted == 0 {
		t.Fatal("first build stored nothing")
	}

	// Rebuilding over the same index without overwrite is refused.
	if _, err := b.Build(); err == nil {
		t.Fatal("expected rebuild without overwrite to fail")
	}

	// With overwrite, unchanged sources reproduce the same chunk set.
	cfg.Overwrite = true
	b2, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	second, err := b2.Build()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if second.Inserted != first.Inserted {
		t.Errorf("rebuild stored %d chunks, first stored %d", second.Inserted, first.Inserted)
	}
}

func TestValidateStandalone(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "Some content worth indexing.")
	cfg := testBuildConfig(t, dir)
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	report, err := Validate(cfg.Backend, cfg.Output, "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.OK() || report.ChunkCount == 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.FileCount != 1 {
		t.Errorf("file count: got %d, want 1", report.FileCount)
	}
	if report.Config[store.ConfigEmbeddingModel] != "hash-64" {
		t.Errorf("config round-trip: got %v", report.Config)
	}
}

func TestBuildStampsConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "Content that gives the index something to store.")

	cfg := testBuildConfig(t, dir)
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	st, err := store.Open(cfg.Backend, cfg.Output, "")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer st.Close()
	got, err := st.GetConfig()
	if err != nil {
		t.Fatalf("get config: %v", err)
	}

	if got[store.ConfigLanguages] != `["en"]` {
		t.Errorf("languages: got %q, want JSON array", got[store.ConfigLanguages])
	}
	var sources []string
	if err := json.Unmarshal([]byte(got[store.ConfigSources]), &sources); err != nil || len(sources) != 1 {
		t.Errorf("sources: got %q, want a one-element JSON array", got[store.ConfigSources])
	}
	var types []string
	if err := json.Unmarshal([]byte(got[store.ConfigFileTypes]), &types); err != nil || len(types) == 0 {
		t.Errorf("file_types: got %q, want a JSON array", got[store.ConfigFileTypes])
	}
	if got[store.ConfigChunkSize] != "50" || got[store.ConfigChunkOverlap] != "10" {
		t.Errorf("chunk params: got size %q overlap %q", got[store.ConfigChunkSize], got[store.ConfigChunkOverlap])
	}
	if got[store.ConfigPreprocessingVersion] != store.PreprocessingVersion {
		t.Errorf("preprocessing_version: got %q", got[store.ConfigPreprocessingVersion])
	}
}

func TestBuildEmbedsEnhancedContent(t *testing.T) {
	dir := t.TempDir()
	content := "Install the toolkit by running the installer."
	writeFile(t, dir, "doc.txt", content)

	cfg := testBuildConfig(t, dir)
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	st, err := store.Open(cfg.Backend, cfg.Output, "")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer st.Close()

	// The stored vector must match the enhanced text, not the raw content.
	emb := embedding.NewHashEmbedder(64)
	enhanced := enhancer.Enhance(content, enhancer.Options{Language: "en", MaxSynonyms: 1}).EnhancedText
	qv, err := emb.Embed(enhanced)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	hits, err := st.VectorSearch(qv, 1, nil)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(hits) == 0 || hits[0].Score < 0.999 {
		t.Fatalf("stored embedding does not match enhanced content: %v", hits)
	}

	raw, err := emb.Embed(content)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	rawHits, err := st.VectorSearch(raw, 1, nil)
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(rawHits) > 0 && rawHits[0].Score > 0.999 {
		t.Error("stored embedding matches the raw content exactly")
	}
}

func TestEnrichWithoutEmbeddingCapability(t *testing.T) {
	cfg := testBuildConfig(t, t.TempDir())
	b, err := New(cfg)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	b.caps.Embedding = false
	b.embedder = nil

	chunks := []chunker.Chunk{{Content: "Some content to enrich.", Filename: "a.txt"}}
	b.enrich(chunks)
	if chunks[0].ProcessedContent == "" {
		t.Error("enhancement skipped")
	}
	if len(chunks[0].Embedding) != 64 {
		t.Fatalf("embedding length: got %d, want the configured dimension", len(chunks[0].Embedding))
	}
	for _, v := range chunks[0].Embedding {
		if v != 0 {
			t.Fatal("expected a zero vector without embedding capability")
		}
	}
}
