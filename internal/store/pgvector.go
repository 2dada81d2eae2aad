package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"coderag/internal/chunker"
)

// PGVectorStore keeps chunk vectors in PostgreSQL with the pgvector
// extension. File hashes and index status stay in SQLite; only the vector
// side moves.
type PGVectorStore struct {
	db        *sql.DB
	dims      int
	recreated bool
}

// OpenPGVector connects to dsn and creates the chunk table if needed. An
// existing table whose embedding column has a different width is dropped
// and recreated; Recreated reports it so callers can reset file hashes.
func OpenPGVector(ctx context.Context, dsn string, dims int) (*PGVectorStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		db.Close()
		return nil, fmt.Errorf("init pgvector schema: %w", err)
	}
	recreated, err := dropMismatchedTable(ctx, db, dims)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("check pgvector dimensions: %w", err)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS code_chunks (
			point_id     UUID PRIMARY KEY,
			project_name TEXT NOT NULL,
			file_path    TEXT NOT NULL,
			chunk_index  INTEGER NOT NULL,
			language     TEXT NOT NULL DEFAULT '',
			chunk_type   TEXT NOT NULL DEFAULT 'code',
			name         TEXT NOT NULL DEFAULT '',
			start_line   INTEGER NOT NULL,
			end_line     INTEGER NOT NULL,
			content      TEXT NOT NULL,
			embedding    vector(%d) NOT NULL
		)`, dims),
		"CREATE INDEX IF NOT EXISTS idx_code_chunks_file ON code_chunks (project_name, file_path)",
		"CREATE INDEX IF NOT EXISTS idx_code_chunks_language ON code_chunks (language)",
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			db.Close()
			return nil, fmt.Errorf("init pgvector schema: %w", err)
		}
	}
	return &PGVectorStore{db: db, dims: dims, recreated: recreated}, nil
}

// dropMismatchedTable drops code_chunks when its embedding column is not
// vector(dims). A missing table is left alone.
func dropMismatchedTable(ctx context.Context, db *sql.DB, dims int) (bool, error) {
	var colType string
	err := db.QueryRowContext(ctx, `
		SELECT format_type(atttypid, atttypmod)
		FROM pg_attribute
		WHERE attrelid = to_regclass('code_chunks') AND attname = 'embedding' AND NOT attisdropped`,
	).Scan(&colType)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if width, ok := vectorWidth(colType); ok && width == dims {
		return false, nil
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE code_chunks"); err != nil {
		return false, err
	}
	return true, nil
}

// vectorWidth parses the dimension out of a "vector(768)" column type.
func vectorWidth(colType string) (int, bool) {
	inner, ok := strings.CutPrefix(colType, "vector(")
	if !ok {
		return 0, false
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(inner)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Recreated reports whether Open replaced a table of a different width.
func (p *PGVectorStore) Recreated() bool {
	return p.recreated
}

// Close closes the connection pool.
func (p *PGVectorStore) Close() error {
	return p.db.Close()
}

// Ping checks that the database answers.
func (p *PGVectorStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Upsert stores chunks with their vectors, replacing existing points.
func (p *PGVectorStore) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatched chunks (%d) and vectors (%d)", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO code_chunks
			(point_id, project_name, file_path, chunk_index, language, chunk_type, name, start_line, end_line, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::vector)
		ON CONFLICT (point_id) DO UPDATE SET
			language = EXCLUDED.language,
			chunk_type = EXCLUDED.chunk_type,
			name = EXCLUDED.name,
			start_line = EXCLUDED.start_line,
			end_line = EXCLUDED.end_line,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if len(vectors[i]) != p.dims {
			return fmt.Errorf("vector for %s#%d has %d dimensions, want %d", c.FilePath, c.ChunkIndex, len(vectors[i]), p.dims)
		}
		_, err := stmt.ExecContext(ctx,
			PointID(c.ProjectName, c.FilePath, c.ChunkIndex),
			c.ProjectName, c.FilePath, c.ChunkIndex, c.Language, string(c.ChunkType), c.Name,
			c.StartLine, c.EndLine, c.Content, vectorLiteral(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s#%d: %w", c.FilePath, c.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

func (p *PGVectorStore) DeleteByFile(ctx context.Context, project, path string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM code_chunks WHERE project_name = $1 AND file_path = $2", project, path)
	return err
}

func (p *PGVectorStore) DeleteByProject(ctx context.Context, project string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM code_chunks WHERE project_name = $1", project)
	return err
}

func (p *PGVectorStore) DeleteAll(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM code_chunks")
	return err
}

func (p *PGVectorStore) Count(ctx context.Context, project string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM code_chunks WHERE project_name = $1", project).Scan(&n)
	return n, err
}

// Search ranks chunks by cosine distance to q.Vector.
func (p *PGVectorStore) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT project_name, file_path, chunk_index, language, chunk_type, name,
		       start_line, end_line, content, 1 - (embedding <=> $1::vector) AS score
		FROM code_chunks
		WHERE ($2 = '' OR project_name = $2) AND ($3 = '' OR language = $3)
		ORDER BY embedding <=> $1::vector
		LIMIT $4`,
		vectorLiteral(q.Vector), q.Project, q.Language, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var typ string
		if err := rows.Scan(
			&r.ProjectName, &r.FilePath, &r.ChunkIndex, &r.Language, &typ, &r.Name,
			&r.StartLine, &r.EndLine, &r.Content, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ChunkType = chunker.ChunkType(typ)
		results = append(results, r)
	}
	return results, rows.Err()
}

// vectorLiteral formats v in pgvector text form: [0.1,0.2,0.3].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
