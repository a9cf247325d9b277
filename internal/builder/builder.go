// Package builder drives the index build pipeline: discover source files,
// extract text, chunk, enhance, embed, and persist. Per-file and per-chunk
// failures are logged and skipped; the build only fails outright when it
// cannot produce a usable index at all.
package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docsearch/internal/capability"
	"docsearch/internal/chunker"
	"docsearch/internal/config"
	"docsearch/internal/embedding"
	"docsearch/internal/enhancer"
	"docsearch/internal/errlog"
	"docsearch/internal/extractor"
	"docsearch/internal/store"
	"docsearch/internal/vec"
)

// Build-fatal errors.
var (
	ErrNoSources = errors.New("no source files found")
	ErrNoChunks  = errors.New("no chunks produced from any source file")
)

// Summary reports what a build did.
type Summary struct {
	Files        int                     `json:"files"`
	SkippedFiles int                     `json:"skipped_files"`
	Chunks       int                     `json:"chunks"`
	Inserted     int                     `json:"inserted"`
	Duration     time.Duration           `json:"duration"`
	Validation   *store.ValidationReport `json:"validation,omitempty"`
}

// Builder owns one build's configured pipeline.
type Builder struct {
	cfg      config.BuildConfig
	caps     capability.Capabilities
	extract  *extractor.Extractor
	embedder embedding.Embedder
	strategy chunker.Strategy
}

// New wires a Builder from config. An embedder that cannot be constructed is
// fatal here: a build without embeddings would produce a vector index that
// can never serve vector search.
func New(cfg config.BuildConfig) (*Builder, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	caps := capability.Detect()

	emb, err := embedding.ForConfig(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("load embedder: %w", err)
	}
	caps.Embedding = true

	return &Builder{
		cfg:      cfg,
		caps:     caps,
		extract:  extractor.New(caps),
		embedder: emb,
		strategy: chunker.ForConfig(cfg.Chunking, emb),
	}, nil
}

// Build runs the full pipeline.
func (b *Builder) Build() (*Summary, error) {
	start := time.Now()

	files, err := b.Discover()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoSources
	}

	st, err := store.Create(b.cfg.Backend, b.cfg.Output, b.cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("open index target: %w", err)
	}
	defer st.Close()

	if err := st.CreateSchema(b.cfg.Embedding.Dimensions, b.cfg.Overwrite); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	summary := &Summary{}
	var pending []chunker.Chunk
	for _, path := range files {
		chunks, err := b.processFile(path)
		if err != nil {
			summary.SkippedFiles++
			errlog.Logf("skipping %s: %v", path, err)
			continue
		}
		summary.Files++
		pending = append(pending, chunks...)
	}
	if len(pending) == 0 {
		return nil, ErrNoChunks
	}
	summary.Chunks = len(pending)

	b.enrich(pending)

	inserted, err := st.StoreChunks(pending)
	if err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}
	summary.Inserted = inserted

	if err := st.SetConfig(map[string]string{
		store.ConfigEmbeddingModel:       b.cfg.Embedding.ModelName,
		store.ConfigChunkingStrategy:     b.strategy.Name(),
		store.ConfigChunkSize:            strconv.Itoa(b.cfg.Chunking.ChunkSize),
		store.ConfigChunkOverlap:         strconv.Itoa(b.cfg.Chunking.OverlapSize),
		store.ConfigPreprocessingVersion: store.PreprocessingVersion,
		store.ConfigLanguages:            jsonList(b.cfg.Languages),
		store.ConfigSources:              jsonList(b.cfg.Sources),
		store.ConfigFileTypes:            jsonList(b.cfg.FileTypes),
	}); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}

	if b.cfg.Validate {
		report, err := st.Validate()
		if err != nil {
			return nil, fmt.Errorf("validate index: %w", err)
		}
		summary.Validation = report
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// Discover resolves the configured sources into an ordered, deduplicated
// file list. Directories are walked recursively and filtered by the
// configured file types; explicit file paths are taken as-is. Exclude
// patterns match against base names.
func (b *Builder) Discover() ([]string, error) {
	wantExt := map[string]bool{}
	for _, t := range b.cfg.FileTypes {
		wantExt["."+strings.ToLower(strings.TrimPrefix(t, "."))] = true
	}

	var files []string
	seen := map[string]bool{}
	add := func(path string) {
		if b.excluded(path) || seen[path] {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, src := range b.cfg.Sources {
		info, err := os.Stat(src)
		if err != nil {
			errlog.Logf("source %s: %v", src, err)
			continue
		}
		if !info.IsDir() {
			// Explicit files still go through the type filter; files
			// without an extension are accepted.
			if ext := strings.ToLower(filepath.Ext(src)); ext == "" || wantExt[ext] {
				add(src)
			} else {
				errlog.Logf("source %s: extension not in configured file types, skipping", src)
			}
			continue
		}
		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				errlog.Logf("walking %s: %v", path, err)
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if wantExt[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", src, err)
		}
	}
	return files, nil
}

func (b *Builder) excluded(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range b.cfg.Exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// processFile extracts and chunks one source file.
func (b *Builder) processFile(path string) ([]chunker.Chunk, error) {
	res, err := b.extract.Extract(path)
	if err != nil {
		return nil, err
	}
	in := chunker.Input{Text: res.Text, Pages: res.Pages}
	chunks := b.strategy.Chunk(in, path)
	if len(res.Headings) > 0 {
		applySectionLabels(chunks, res.Headings)
	}
	for i := range chunks {
		chunks[i].Tags = b.cfg.Tags
	}
	if b.cfg.Verbose {
		log.Printf("[BUILD] %s: %d chunks (%s)", path, len(chunks), b.strategy.Name())
	}
	return chunks, nil
}

// applySectionLabels renames chunk sections to the heading hierarchy in
// effect at each chunk's first line ("Guide > Install"). Chunks without line
// tracking keep their strategy-assigned section.
func applySectionLabels(chunks []chunker.Chunk, headings []extractor.Heading) {
	for i := range chunks {
		c := &chunks[i]
		if c.StartLine == 0 {
			continue
		}
		var stack []extractor.Heading
		for _, h := range headings {
			if h.Line > c.StartLine {
				break
			}
			for len(stack) > 0 && stack[len(stack)-1].Level >= h.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, h)
		}
		if len(stack) == 0 {
			continue
		}
		parts := make([]string, len(stack))
		for j, h := range stack {
			parts[j] = h.Title
		}
		c.Section = strings.Join(parts, " > ")
	}
}

// enrich fills processed content, keywords, language, and embedding for every
// chunk. Both steps are soft: an enhancement failure keeps the raw content
// searchable, and an embedding failure stores a zero vector so the chunk
// still serves keyword search.
func (b *Builder) enrich(chunks []chunker.Chunk) {
	lang := "auto"
	if len(b.cfg.Languages) == 1 {
		lang = b.cfg.Languages[0]
	}

	for i := range chunks {
		c := &chunks[i]
		res := enhancer.Enhance(c.Content, enhancer.Options{Language: lang, MaxSynonyms: 1})
		if res.EnhancedText != "" {
			c.ProcessedContent = res.EnhancedText
		} else {
			c.ProcessedContent = c.Content
		}
		c.Keywords = res.Keywords
		if res.Language != "" {
			c.Language = res.Language
		}

		// The vector is built from the same enhanced text the keyword
		// index matches against, so both retrieval sides see one
		// representation of the chunk.
		if b.caps.Embedding {
			emb, err := b.embedder.Embed(c.ProcessedContent)
			if err != nil {
				errlog.Logf("embedding chunk %d from %s failed, storing zero vector: %v", i, c.Filename, err)
				emb = vec.Zero(b.cfg.Embedding.Dimensions)
			}
			c.Embedding = emb
		} else {
			c.Embedding = vec.Zero(b.cfg.Embedding.Dimensions)
		}

		if (i+1)%50 == 0 {
			log.Printf("[BUILD] processed %d/%d chunks", i+1, len(chunks))
		}
	}
}

// jsonList serializes a string list for the index config; nil serializes as
// an empty array.
func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Validate opens an existing index and checks its integrity.
func Validate(backend, target, connString string) (*store.ValidationReport, error) {
	st, err := store.Open(backend, target, connString)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Validate()
}
