package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"docsearch/internal/chunker"
	"docsearch/internal/vec"
)

// collectionNameRe restricts collection names to safe identifier characters,
// since the collection is interpolated into table names.
var collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PGBackend stores an index as a per-collection table in a shared Postgres
// database with the pgvector extension. Vector search runs through an
// IVFFlat cosine index; keyword search through full-text ranking with a
// trigram index supporting the degraded LIKE path.
type PGBackend struct {
	db         *sql.DB
	collection string
}

// OpenPG connects to Postgres and targets the given collection. The
// connection pool is long-lived; database/sql reconnects transparently.
func OpenPG(connString, collection string) (*PGBackend, error) {
	if connString == "" {
		return nil, fmt.Errorf("pgvector backend requires a connection string")
	}
	collection = strings.ToLower(collection)
	if !collectionNameRe.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name %q (want lowercase letters, digits, underscores)", collection)
	}

	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach postgres (check connection string and that the server is running): %w", err)
	}
	return &PGBackend{db: db, collection: collection}, nil
}

func (p *PGBackend) Close() error { return p.db.Close() }

func (p *PGBackend) table() string { return "chunks_" + p.collection }

// CreateSchema provisions the extensions, the collection table, and its
// indexes. With overwrite the collection table is dropped and recreated.
func (p *PGBackend) CreateSchema(dimensions int, overwrite bool) error {
	for _, ext := range []string{"vector", "pg_trgm"} {
		if _, err := p.db.Exec("CREATE EXTENSION IF NOT EXISTS " + ext); err != nil {
			return fmt.Errorf("failed to enable extension %s (install it on the server or run as a superuser): %w", ext, err)
		}
	}

	tbl := p.table()
	if overwrite {
		if _, err := p.db.Exec("DROP TABLE IF EXISTS " + tbl); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", tbl, err)
		}
	}

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                UUID PRIMARY KEY,
			chunk_hash        TEXT NOT NULL UNIQUE,
			content           TEXT NOT NULL,
			processed_content TEXT,
			keywords          JSONB,
			language          TEXT,
			embedding         vector(%d),
			filename          TEXT NOT NULL,
			section           TEXT,
			start_line        INTEGER DEFAULT 0,
			end_line          INTEGER DEFAULT 0,
			tags              JSONB,
			metadata          JSONB,
			created_at        TIMESTAMPTZ DEFAULT now()
		)`, tbl, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`, tbl, tbl),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_content_trgm_idx ON %s
			USING gin (content gin_trgm_ops)`, tbl, tbl),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tags_idx ON %s USING gin (tags)`, tbl, tbl),
		`CREATE TABLE IF NOT EXISTS collection_config (
			collection_name      TEXT PRIMARY KEY,
			model_name           TEXT,
			embedding_dimensions INTEGER,
			chunking_strategy    TEXT,
			languages            JSONB,
			created_at           TIMESTAMPTZ DEFAULT now(),
			metadata             JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
	}
	for _, stmt := range ddl {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema for %s: %w", tbl, err)
		}
	}

	return p.SetConfig(map[string]string{
		ConfigEmbeddingDimensions: strconv.Itoa(dimensions),
		ConfigCreatedAt:           time.Now().UTC().Format(time.RFC3339),
	})
}

// StoreChunks inserts a batch in one transaction, skipping duplicate hashes.
func (p *PGBackend) StoreChunks(chunks []chunker.Chunk) (int, error) {
	tx, err := p.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s
		(id, chunk_hash, content, processed_content, keywords, language, embedding,
		 filename, section, start_line, end_line, tags, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (chunk_hash) DO NOTHING`, p.table()))
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range chunks {
		c := &chunks[i]
		var embedding interface{}
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		res, err := stmt.Exec(uuid.New().String(), c.Hash(), c.Content,
			c.ProcessedContent, marshalJSON(c.Keywords), c.Language, embedding,
			c.Filename, c.Section, c.StartLine, c.EndLine,
			marshalJSON(c.Tags), marshalJSON(c.Metadata))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert chunk from %s: %w", c.Filename, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// pgConfigRow maps flat config entries onto the collection_config columns.
// Keys without a dedicated column land in the metadata JSONB.
type pgConfigRow struct {
	Model     sql.NullString
	Dims      sql.NullInt64
	Strategy  sql.NullString
	Languages sql.NullString // JSON array text
	CreatedAt sql.NullString // RFC 3339
	Metadata  map[string]string
}

func newPGConfigRow(entries map[string]string) pgConfigRow {
	row := pgConfigRow{Metadata: map[string]string{}}
	for k, v := range entries {
		switch k {
		case ConfigEmbeddingModel:
			row.Model = sql.NullString{String: v, Valid: true}
		case ConfigEmbeddingDimensions:
			if n, err := strconv.Atoi(v); err == nil {
				row.Dims = sql.NullInt64{Int64: int64(n), Valid: true}
			}
		case ConfigChunkingStrategy:
			row.Strategy = sql.NullString{String: v, Valid: true}
		case ConfigLanguages:
			row.Languages = sql.NullString{String: v, Valid: true}
		case ConfigCreatedAt:
			row.CreatedAt = sql.NullString{String: v, Valid: true}
		default:
			row.Metadata[k] = v
		}
	}
	return row
}

// SetConfig upserts this collection's config row. Columns absent from the
// entries keep their stored values; metadata entries are merged.
func (p *PGBackend) SetConfig(entries map[string]string) error {
	row := newPGConfigRow(entries)
	meta, err := json.Marshal(row.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal config metadata: %w", err)
	}
	_, err = p.db.Exec(`INSERT INTO collection_config
		(collection_name, model_name, embedding_dimensions, chunking_strategy, languages, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb, COALESCE($6::timestamptz, now()), $7::jsonb)
		ON CONFLICT (collection_name) DO UPDATE SET
			model_name           = COALESCE(excluded.model_name, collection_config.model_name),
			embedding_dimensions = COALESCE(excluded.embedding_dimensions, collection_config.embedding_dimensions),
			chunking_strategy    = COALESCE(excluded.chunking_strategy, collection_config.chunking_strategy),
			languages            = COALESCE(excluded.languages, collection_config.languages),
			created_at           = COALESCE($6::timestamptz, collection_config.created_at),
			metadata             = collection_config.metadata || excluded.metadata`,
		p.collection, row.Model, row.Dims, row.Strategy, row.Languages, row.CreatedAt, string(meta))
	if err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}
	return nil
}

// GetConfig reads this collection's config row back into flat entries.
func (p *PGBackend) GetConfig() (map[string]string, error) {
	var model, strategy, languages, meta sql.NullString
	var dims sql.NullInt64
	var created sql.NullTime
	err := p.db.QueryRow(`SELECT model_name, embedding_dimensions, chunking_strategy,
		languages::text, created_at, metadata::text
		FROM collection_config WHERE collection_name = $1`, p.collection).
		Scan(&model, &dims, &strategy, &languages, &created, &meta)
	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}

	out := map[string]string{}
	if meta.String != "" {
		var extra map[string]string
		if json.Unmarshal([]byte(meta.String), &extra) == nil {
			for k, v := range extra {
				out[k] = v
			}
		}
	}
	if model.Valid {
		out[ConfigEmbeddingModel] = model.String
	}
	if dims.Valid {
		out[ConfigEmbeddingDimensions] = strconv.FormatInt(dims.Int64, 10)
	}
	if strategy.Valid {
		out[ConfigChunkingStrategy] = strategy.String
	}
	if languages.Valid {
		out[ConfigLanguages] = languages.String
	}
	if created.Valid {
		out[ConfigCreatedAt] = created.Time.UTC().Format(time.RFC3339)
	}
	return out, nil
}

func (p *PGBackend) dimension() int {
	var dims sql.NullInt64
	err := p.db.QueryRow(`SELECT embedding_dimensions FROM collection_config WHERE collection_name = $1`,
		p.collection).Scan(&dims)
	if err != nil || !dims.Valid {
		return 0
	}
	return int(dims.Int64)
}

// tagFilterSQL builds an OR of JSONB containment tests, one per tag.
func tagFilterSQL(tags []string, args *[]interface{}) string {
	if len(tags) == 0 {
		return ""
	}
	var conds []string
	for _, t := range tags {
		b, _ := json.Marshal([]string{t})
		*args = append(*args, string(b))
		conds = append(conds, fmt.Sprintf("tags @> $%d::jsonb", len(*args)))
	}
	return " AND (" + strings.Join(conds, " OR ") + ")"
}

const pgCandidateColumns = `id, content, processed_content, keywords, language,
	filename, section, start_line, end_line, tags, metadata`

// VectorSearch orders by cosine distance through the IVFFlat index, scoring
// as 1 - distance.
func (p *PGBackend) VectorSearch(query []float32, limit int, tags []string) ([]Candidate, error) {
	if want := p.dimension(); want > 0 && len(query) != want {
		return nil, &vec.DimensionMismatchError{Want: want, Got: len(query)}
	}

	args := []interface{}{pgvector.NewVector(query)}
	filter := tagFilterSQL(tags, &args)
	args = append(args, limit)
	q := fmt.Sprintf(`SELECT %s, 1 - (embedding <=> $1) AS score
		FROM %s WHERE embedding IS NOT NULL%s
		ORDER BY embedding <=> $1 LIMIT $%d`, pgCandidateColumns, p.table(), filter, len(args))

	rows, err := p.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()
	return p.collect(rows)
}

// KeywordSearch ranks full-text matches over content and processed content,
// normalizing the rank to (0, 1] via 1/(1+|rank|).
func (p *PGBackend) KeywordSearch(query string, limit int, tags []string) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	args := []interface{}{query}
	filter := tagFilterSQL(tags, &args)
	args = append(args, limit)
	q := fmt.Sprintf(`SELECT %s,
		ts_rank(to_tsvector('simple', coalesce(processed_content, '') || ' ' || content),
		        plainto_tsquery('simple', $1)) AS rank
		FROM %s
		WHERE to_tsvector('simple', coalesce(processed_content, '') || ' ' || content)
		      @@ plainto_tsquery('simple', $1)%s
		ORDER BY rank DESC LIMIT $%d`, pgCandidateColumns, p.table(), filter, len(args))

	rows, err := p.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	results, err := p.collect(rows)
	if err != nil {
		return nil, err
	}
	for i := range results {
		rank := results[i].Score
		if rank < 0 {
			rank = -rank
		}
		results[i].Score = 1 / (1 + rank)
	}
	return results, nil
}

// collect scans candidate rows; the final column is the raw score.
func (p *PGBackend) collect(rows *sql.Rows) ([]Candidate, error) {
	var results []Candidate
	for rows.Next() {
		var cand Candidate
		var keywords, language, processed, section, tagsJSON, metaJSON sql.NullString
		if err := rows.Scan(&cand.ID, &cand.Content, &processed, &keywords,
			&language, &cand.Filename, &section, &cand.StartLine, &cand.EndLine,
			&tagsJSON, &metaJSON, &cand.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		cand.ProcessedContent = processed.String
		cand.Language = language.String
		cand.Section = section.String
		if keywords.String != "" {
			json.Unmarshal([]byte(keywords.String), &cand.Keywords)
		}
		if tagsJSON.String != "" {
			json.Unmarshal([]byte(tagsJSON.String), &cand.Tags)
		}
		if metaJSON.String != "" {
			json.Unmarshal([]byte(metaJSON.String), &cand.Metadata)
		}
		results = append(results, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// Stats reports chunk and file counts plus the stored config.
func (p *PGBackend) Stats() (Stats, error) {
	st := Stats{Backend: "pgvector", Target: p.collection}
	if err := p.db.QueryRow("SELECT COUNT(*) FROM " + p.table()).Scan(&st.ChunkCount); err != nil {
		return st, fmt.Errorf("failed to count chunks: %w", err)
	}
	rows, err := p.db.Query("SELECT DISTINCT filename FROM " + p.table() + " ORDER BY filename")
	if err != nil {
		return st, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return st, fmt.Errorf("failed to scan filename: %w", err)
		}
		st.Files = append(st.Files, f)
	}
	st.FileCount = len(st.Files)
	st.Config, err = p.GetConfig()
	return st, err
}

// Validate scans the collection for structural problems. A database without
// the collection's tables reports them as findings rather than erroring.
func (p *PGBackend) Validate() (*ValidationReport, error) {
	report := &ValidationReport{}

	missing := false
	for _, tbl := range []string{p.table(), "collection_config"} {
		var exists bool
		if err := p.db.QueryRow(`SELECT to_regclass($1) IS NOT NULL`, tbl).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to inspect schema: %w", err)
		}
		if !exists {
			missing = true
			report.Findings = append(report.Findings, fmt.Sprintf("missing table %s", tbl))
		}
	}
	if missing {
		return report, nil
	}

	if cfg, err := p.GetConfig(); err != nil {
		report.Findings = append(report.Findings, fmt.Sprintf("config unreadable: %v", err))
	} else {
		report.Config = cfg
	}
	if err := p.db.QueryRow("SELECT COUNT(DISTINCT filename) FROM " + p.table()).Scan(&report.FileCount); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	want := p.dimension()
	rows, err := p.db.Query("SELECT id, content, embedding FROM " + p.table())
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, content string
		var embedding []byte // text form "[0.1,0.2,...]", nil when NULL
		if err := rows.Scan(&id, &content, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		report.ChunkCount++
		if strings.TrimSpace(content) == "" {
			report.EmptyContent++
			report.Findings = append(report.Findings, fmt.Sprintf("chunk %s has empty content", id))
		}
		switch dims := vectorTextDims(string(embedding)); {
		case dims == 0:
			report.MissingEmbedding++
			report.Findings = append(report.Findings, fmt.Sprintf("chunk %s has no embedding", id))
		case want > 0 && dims != want:
			report.DimensionMismatch++
			report.Findings = append(report.Findings,
				fmt.Sprintf("chunk %s embedding has %d dimensions, collection expects %d", id, dims, want))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return report, nil
}

// vectorTextDims counts the components of a vector's text representation;
// 0 for NULL or empty.
func vectorTextDims(s string) int {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return 0
	}
	return strings.Count(s, ",") + 1
}
