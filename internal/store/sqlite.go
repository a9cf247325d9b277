package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"docsearch/internal/chunker"
	"docsearch/internal/errlog"
	"docsearch/internal/vec"
)

// SQLiteBackend stores an index in a single .swsearch file. The file is
// self-contained: chunks, an FTS5 mirror for keyword search, a reserved
// synonyms table, and a config table describing how the index was built.
type SQLiteBackend struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens an existing .swsearch index for searching.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index file %s not found: %w", path, err)
	}
	return newSQLite(path)
}

// CreateSQLite opens (creating if absent) a .swsearch index for building.
func CreateSQLite(path string) (*SQLiteBackend, error) {
	return newSQLite(path)
}

func newSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	return &SQLiteBackend{path: path, db: db}, nil
}

func (s *SQLiteBackend) Close() error { return s.db.Close() }

// CreateSchema creates the index tables. With overwrite, existing chunk data
// is dropped first; without it, an already-populated index is an error.
func (s *SQLiteBackend) CreateSchema(dimensions int, overwrite bool) error {
	if overwrite {
		drops := []string{
			`DROP TABLE IF EXISTS chunks_fts`,
			`DROP TABLE IF EXISTS chunks`,
			`DROP TABLE IF EXISTS synonyms`,
			`DROP TABLE IF EXISTS config`,
		}
		for _, ddl := range drops {
			if _, err := s.db.Exec(ddl); err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}
	} else {
		var n int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='chunks'`).Scan(&n)
		if err == nil && n > 0 {
			var chunks int
			if s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunks) == nil && chunks > 0 {
				return fmt.Errorf("index %s already contains %d chunks (use overwrite to rebuild)", s.path, chunks)
			}
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_hash        TEXT NOT NULL UNIQUE,
			content           TEXT NOT NULL,
			processed_content TEXT,
			keywords          TEXT,
			language          TEXT,
			embedding         BLOB,
			filename          TEXT NOT NULL,
			section           TEXT,
			start_line        INTEGER DEFAULT 0,
			end_line          INTEGER DEFAULT 0,
			tags              TEXT,
			metadata          TEXT,
			created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			processed_content, keywords, content='chunks', content_rowid='id'
		)`,
		`CREATE TABLE IF NOT EXISTS synonyms (
			word     TEXT NOT NULL,
			pos_tag  TEXT NOT NULL,
			synonyms TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT 'en',
			PRIMARY KEY (word, pos_tag, language)
		)`,
		`CREATE TABLE IF NOT EXISTS config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, ddl := range tables {
		if _, err := tx.Exec(ddl); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	return s.SetConfig(map[string]string{
		ConfigEmbeddingDimensions: strconv.Itoa(dimensions),
		ConfigCreatedAt:           time.Now().UTC().Format(time.RFC3339),
	})
}

// StoreChunks inserts a batch in one transaction. Chunks whose hash already
// exists are skipped (INSERT OR IGNORE), so re-running a build over unchanged
// sources is a no-op.
func (s *SQLiteBackend) StoreChunks(chunks []chunker.Chunk) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO chunks
		(chunk_hash, content, processed_content, keywords, language, embedding,
		 filename, section, start_line, end_line, tags, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	ftsStmt, err := tx.Prepare(`INSERT INTO chunks_fts (rowid, processed_content, keywords) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare fts statement: %w", err)
	}
	defer ftsStmt.Close()

	inserted := 0
	for i := range chunks {
		c := &chunks[i]
		keywords := marshalJSON(c.Keywords)
		res, err := stmt.Exec(c.Hash(), c.Content, c.ProcessedContent, keywords,
			c.Language, vec.Serialize(c.Embedding), c.Filename, c.Section,
			c.StartLine, c.EndLine, marshalJSON(c.Tags), marshalJSON(c.Metadata))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert chunk from %s: %w", c.Filename, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			continue // duplicate hash
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to read rowid: %w", err)
		}
		searchable := c.ProcessedContent
		if searchable == "" {
			searchable = c.Content
		}
		if _, err := ftsStmt.Exec(rowid, searchable, strings.Join(c.Keywords, " ")); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to index chunk from %s: %w", c.Filename, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// SetConfig upserts config entries.
func (s *SQLiteBackend) SetConfig(entries map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()
	for k, v := range entries {
		if _, err := stmt.Exec(k, v); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to set config %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// GetConfig reads the full config table.
func (s *SQLiteBackend) GetConfig() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// dimension reads the stored embedding dimension; 0 when unrecorded.
func (s *SQLiteBackend) dimension() int {
	var v string
	if err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, ConfigEmbeddingDimensions).Scan(&v); err != nil {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}

const candidateColumns = `id, content, processed_content, keywords, language,
	filename, section, start_line, end_line, tags, metadata`

// VectorSearch brute-force scans every stored embedding, scoring by cosine
// similarity against the query. The query dimension is checked against the
// index config before the scan.
func (s *SQLiteBackend) VectorSearch(query []float32, limit int, tags []string) ([]Candidate, error) {
	if want := s.dimension(); want > 0 && len(query) != want {
		return nil, &vec.DimensionMismatchError{Want: want, Got: len(query)}
	}

	rows, err := s.db.Query(`SELECT ` + candidateColumns + `, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []Candidate
	for rows.Next() {
		var cand Candidate
		var blob []byte
		if err := scanCandidate(rows, &cand, &blob); err != nil {
			return nil, err
		}
		if !keepByTags(cand.Tags, tags) {
			continue
		}
		v := vec.Deserialize(blob)
		if len(v) != len(query) {
			continue // skip rows written under a different model
		}
		cand.Score = float64(vec.Cosine(query, v))
		results = append(results, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// KeywordSearch runs an FTS5 match over processed content and keywords,
// normalizing the bm25 rank to (0, 1] via 1/(1+|rank|). On an FTS syntax
// error it degrades to a LIKE scan over the first terms of the query.
func (s *SQLiteBackend) KeywordSearch(query string, limit int, tags []string) ([]Candidate, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	fetch := limit
	if len(tags) > 0 {
		fetch = -1 // filter after scan
	}
	rows, err := s.db.Query(`SELECT `+candidateColumns+`, f.rank
		FROM chunks_fts f JOIN chunks ON chunks.id = f.rowid
		WHERE chunks_fts MATCH ? ORDER BY f.rank LIMIT ?`, match, fetch)
	if err != nil {
		errlog.Logf("fts query failed (%v), falling back to LIKE scan", err)
		return s.likeSearch(query, limit, tags)
	}
	defer rows.Close()

	var results []Candidate
	for rows.Next() {
		var cand Candidate
		var rank float64
		if err := scanCandidate(rows, &cand, &rank); err != nil {
			return nil, err
		}
		if !keepByTags(cand.Tags, tags) {
			continue
		}
		if rank < 0 {
			rank = -rank
		}
		cand.Score = 1 / (1 + rank)
		results = append(results, cand)
		if len(results) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// likeSearch is the degraded keyword path: OR of LIKE patterns over the
// first five query terms, scored by matched-term fraction.
func (s *SQLiteBackend) likeSearch(query string, limit int, tags []string) ([]Candidate, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) > 5 {
		terms = terms[:5]
	}
	if len(terms) == 0 {
		return nil, nil
	}

	var conds []string
	var args []interface{}
	for _, t := range terms {
		conds = append(conds, `(lower(content) LIKE ? OR lower(processed_content) LIKE ?)`)
		pat := "%" + t + "%"
		args = append(args, pat, pat)
	}
	rows, err := s.db.Query(`SELECT `+candidateColumns+` FROM chunks WHERE `+strings.Join(conds, " OR "), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run LIKE fallback: %w", err)
	}
	defer rows.Close()

	var results []Candidate
	for rows.Next() {
		var cand Candidate
		if err := scanCandidate(rows, &cand); err != nil {
			return nil, err
		}
		if !keepByTags(cand.Tags, tags) {
			continue
		}
		text := strings.ToLower(cand.Content + " " + cand.ProcessedContent)
		matched := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				matched++
			}
		}
		cand.Score = float64(matched) / float64(len(terms))
		results = append(results, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats reports chunk and file counts plus the stored config.
func (s *SQLiteBackend) Stats() (Stats, error) {
	st := Stats{Backend: "sqlite", Target: s.path}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&st.ChunkCount); err != nil {
		return st, fmt.Errorf("failed to count chunks: %w", err)
	}
	rows, err := s.db.Query(`SELECT DISTINCT filename FROM chunks ORDER BY filename`)
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
	st.Config, err = s.GetConfig()
	return st, err
}

// Validate scans the index for structural problems. A file that is not an
// index at all reports missing tables as findings rather than erroring.
func (s *SQLiteBackend) Validate() (*ValidationReport, error) {
	report := &ValidationReport{}

	missing := false
	for _, tbl := range []string{"chunks", "chunks_fts", "synonyms", "config"} {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = ?`, tbl).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to inspect schema: %w", err)
		}
		if n == 0 {
			missing = true
			report.Findings = append(report.Findings, fmt.Sprintf("missing table %s", tbl))
		}
	}
	if missing {
		return report, nil
	}

	if cfg, err := s.GetConfig(); err != nil {
		report.Findings = append(report.Findings, fmt.Sprintf("config unreadable: %v", err))
	} else {
		report.Config = cfg
	}
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT filename) FROM chunks`).Scan(&report.FileCount); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	want := s.dimension()
	rows, err := s.db.Query(`SELECT id, content, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var content string
		var blob []byte
		if err := rows.Scan(&id, &content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		report.ChunkCount++
		if strings.TrimSpace(content) == "" {
			report.EmptyContent++
			report.Findings = append(report.Findings, fmt.Sprintf("chunk %d has empty content", id))
		}
		switch {
		case len(blob) == 0:
			report.MissingEmbedding++
			report.Findings = append(report.Findings, fmt.Sprintf("chunk %d has no embedding", id))
		case want > 0 && len(blob)/4 != want:
			report.DimensionMismatch++
			report.Findings = append(report.Findings,
				fmt.Sprintf("chunk %d embedding has %d dimensions, index expects %d", id, len(blob)/4, want))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return report, nil
}

// ftsSpecial lists characters with meaning in FTS5 query syntax.
const ftsSpecial = `"'()*-+:^`

// ftsQuery turns free text into a safe FTS5 match expression: each term is
// stripped of operator characters and double-quoted, terms joined with OR.
func ftsQuery(query string) string {
	var quoted []string
	for _, term := range strings.Fields(query) {
		clean := strings.Map(func(r rune) rune {
			if strings.ContainsRune(ftsSpecial, r) {
				return -1
			}
			return r
		}, term)
		if clean == "" {
			continue
		}
		quoted = append(quoted, `"`+clean+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// scanCandidate scans the candidateColumns selection plus any trailing
// destinations (embedding blob, rank).
func scanCandidate(rows *sql.Rows, cand *Candidate, extra ...interface{}) error {
	var id int64
	var processed, keywords, language, section, tagsJSON, metaJSON sql.NullString
	dests := []interface{}{&id, &cand.Content, &processed, &keywords, &language,
		&cand.Filename, &section, &cand.StartLine, &cand.EndLine, &tagsJSON, &metaJSON}
	dests = append(dests, extra...)
	if err := rows.Scan(dests...); err != nil {
		return fmt.Errorf("failed to scan row: %w", err)
	}
	cand.ID = strconv.FormatInt(id, 10)
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
	return nil
}

// marshalJSON serializes v, returning "" for nil values.
func marshalJSON(v interface{}) string {
	switch t := v.(type) {
	case []string:
		if t == nil {
			return ""
		}
	case map[string]interface{}:
		if t == nil {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
