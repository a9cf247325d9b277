// Package store persists index chunks and serves the two raw retrieval
// primitives (vector scan, keyword match) the search engine fuses. Two
// backends exist: a single-file SQLite index (.swsearch) and a shared
// Postgres database with pgvector.
package store

import (
	"fmt"

	"docsearch/internal/chunker"
	"docsearch/internal/config"
)

// Candidate is one raw retrieval hit before score fusion.
type Candidate struct {
	ID               string                 `json:"id"`
	Content          string                 `json:"content"`
	ProcessedContent string                 `json:"processed_content,omitempty"`
	Keywords         []string               `json:"keywords,omitempty"`
	Language         string                 `json:"language,omitempty"`
	Filename         string                 `json:"filename"`
	Section          string                 `json:"section,omitempty"`
	StartLine        int                    `json:"start_line,omitempty"`
	EndLine          int                    `json:"end_line,omitempty"`
	Tags             []string               `json:"tags,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Score            float64                `json:"score"`
}

// Stats summarizes an index.
type Stats struct {
	Backend    string            `json:"backend"`
	Target     string            `json:"target"`
	ChunkCount int               `json:"chunk_count"`
	FileCount  int               `json:"file_count"`
	Files      []string          `json:"files,omitempty"`
	Config     map[string]string `json:"config,omitempty"`
}

// ValidationReport lists integrity findings for an index, along with the
// round-tripped config and corpus counts. An empty Findings slice means the
// index is sound.
type ValidationReport struct {
	ChunkCount        int               `json:"chunk_count"`
	FileCount         int               `json:"file_count"`
	EmptyContent      int               `json:"empty_content"`
	MissingEmbedding  int               `json:"missing_embedding"`
	DimensionMismatch int               `json:"dimension_mismatch"`
	Config            map[string]string `json:"config,omitempty"`
	Findings          []string          `json:"findings,omitempty"`
}

// OK reports whether validation found no problems.
func (r *ValidationReport) OK() bool { return len(r.Findings) == 0 }

// Backend is the storage contract shared by the SQLite and pgvector
// implementations. CreateSchema and StoreChunks serve builds; the search
// methods serve queries. Tag filters are OR-matched: a chunk qualifies when
// it carries at least one of the requested tags.
type Backend interface {
	CreateSchema(dimensions int, overwrite bool) error
	StoreChunks(chunks []chunker.Chunk) (inserted int, err error)
	SetConfig(entries map[string]string) error
	GetConfig() (map[string]string, error)
	VectorSearch(query []float32, limit int, tags []string) ([]Candidate, error)
	KeywordSearch(query string, limit int, tags []string) ([]Candidate, error)
	Stats() (Stats, error)
	Validate() (*ValidationReport, error)
	Close() error
}

// Config keys written at build time and consulted at search time. List
// values (languages, sources, file_types) are stored as JSON arrays.
const (
	ConfigEmbeddingDimensions  = "embedding_dimensions"
	ConfigEmbeddingModel       = "embedding_model"
	ConfigChunkingStrategy     = "chunking_strategy"
	ConfigChunkSize            = "chunk_size"
	ConfigChunkOverlap         = "chunk_overlap"
	ConfigPreprocessingVersion = "preprocessing_version"
	ConfigLanguages            = "languages"
	ConfigSources              = "sources"
	ConfigFileTypes            = "file_types"
	ConfigCreatedAt            = "created_at"
)

// PreprocessingVersion identifies the enhancement pipeline revision stamped
// into every index, so a future pipeline change can detect stale indexes.
const PreprocessingVersion = "1.0"

// Open connects to an existing index for searching.
func Open(backend, target, connString string) (Backend, error) {
	switch backend {
	case config.BackendSQLite, "":
		return OpenSQLite(target)
	case config.BackendPGVector:
		return OpenPG(config.ResolveConnString(connString), target)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// Create connects to a new or rebuilt index for a build.
func Create(backend, target, connString string) (Backend, error) {
	switch backend {
	case config.BackendSQLite, "":
		return CreateSQLite(target)
	case config.BackendPGVector:
		return OpenPG(config.ResolveConnString(connString), target)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// keepByTags applies the OR tag filter.
func keepByTags(chunkTags, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		for _, have := range chunkTags {
			if have == want {
				return true
			}
		}
	}
	return false
}
