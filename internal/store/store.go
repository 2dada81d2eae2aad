package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"coderag/internal/chunker"
)

func init() {
	sqlite_vec.Auto()
}

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps file hashes, index status and chunk vectors in one
// SQLite database, vectors in a sqlite-vec vec0 table. All statements run
// on a single connection behind a mutex.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dims   int
	now    func() time.Time
	logger *slog.Logger
}

// Open creates or opens the database at dbPath with vectors of dims
// dimensions. If the database was built for a different dimension its
// vectors and hashes are cleared.
func Open(ctx context.Context, dbPath string, dims int, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dims <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", dims)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	reset, err := initSchema(ctx, db, dims)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if reset {
		logger.Warn("vector dimensions changed, cleared stored vectors and hashes", "dims", dims)
	}
	return &SQLiteStore{db: db, dims: dims, now: time.Now, logger: logger}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

// --- file hashes ---

// GetFileHash returns the stored hash, or "" if the file was never recorded.
func (s *SQLiteStore) GetFileHash(ctx context.Context, project, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT hash FROM file_hashes WHERE project_name = ? AND file_path = ?",
		project, path,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) SetFileHash(ctx context.Context, project, path, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO file_hashes (project_name, file_path, hash, updated_at) VALUES (?, ?, ?, ?)",
		project, path, hash, s.stamp(),
	)
	return err
}

func (s *SQLiteStore) RemoveFile(ctx context.Context, project, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM file_hashes WHERE project_name = ? AND file_path = ?",
		project, path,
	)
	return err
}

// KnownPaths returns every path with a recorded hash for project.
func (s *SQLiteStore) KnownPaths(ctx context.Context, project string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT file_path FROM file_hashes WHERE project_name = ?", project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// ResetHashes forgets every recorded hash so all files are re-processed.
func (s *SQLiteStore) ResetHashes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM file_hashes")
	return err
}

// --- index status ---

// SetIndexStatus upserts the project's status row. Counters and error are
// overwritten; path is kept when st.Path is empty. Entering running stamps
// started_at and clears completed_at, while progress updates of a running
// row leave started_at alone. Completed and failed stamp completed_at.
func (s *SQLiteStore) SetIndexStatus(ctx context.Context, st IndexStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamp()
	var started, completed, errText sql.NullString
	switch st.Status {
	case StatusRunning:
		started = sql.NullString{String: now, Valid: true}
	case StatusCompleted, StatusFailed:
		completed = sql.NullString{String: now, Valid: true}
	}
	if st.Error != "" {
		errText = sql.NullString{String: st.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_status
			(project_name, path, status, total_files, processed_files, total_chunks, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_name) DO UPDATE SET
			path = CASE WHEN excluded.path != '' THEN excluded.path ELSE index_status.path END,
			status = excluded.status,
			total_files = excluded.total_files,
			processed_files = excluded.processed_files,
			total_chunks = excluded.total_chunks,
			error = excluded.error,
			started_at = CASE
				WHEN excluded.status = 'running' AND index_status.status != 'running' THEN excluded.started_at
				ELSE index_status.started_at
			END,
			completed_at = CASE
				WHEN excluded.status = 'running' THEN NULL
				ELSE COALESCE(excluded.completed_at, index_status.completed_at)
			END`,
		st.Project, st.Path, string(st.Status), st.TotalFiles, st.ProcessedFiles, st.TotalChunks,
		errText, started, completed,
	)
	return err
}

const statusColumns = `project_name, path, status, total_files, processed_files, total_chunks, error, started_at, completed_at`

// GetIndexStatus returns the project's status, or nil if it has none.
func (s *SQLiteStore) GetIndexStatus(ctx context.Context, project string) (*IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+statusColumns+" FROM index_status WHERE project_name = ?", project)
	st, err := scanStatus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ListIndexStatuses returns every project's status ordered by name.
func (s *SQLiteStore) ListIndexStatuses(ctx context.Context) ([]IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+statusColumns+" FROM index_status ORDER BY project_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexStatus
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// RemoveProject deletes the project's hashes and status row.
func (s *SQLiteStore) RemoveProject(ctx context.Context, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM file_hashes WHERE project_name = ?", project); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_status WHERE project_name = ?", project); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatus(r rowScanner) (*IndexStatus, error) {
	var st IndexStatus
	var status string
	var errText, started, completed sql.NullString
	err := r.Scan(&st.Project, &st.Path, &status, &st.TotalFiles, &st.ProcessedFiles, &st.TotalChunks,
		&errText, &started, &completed)
	if err != nil {
		return nil, err
	}
	st.Status = Status(status)
	st.Error = errText.String
	st.StartedAt = parseTime(started)
	st.CompletedAt = parseTime(completed)
	return &st, nil
}

func parseTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// --- meta ---

// GetMeta returns a metadata value by key, or "" if not set.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// --- vectors ---

// Upsert stores chunks with their vectors. A chunk whose point ID already
// exists replaces the old row and vector.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatched chunks (%d) and vectors (%d)", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insChunk, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks
			(point_id, project_name, file_path, chunk_index, language, chunk_type, name, start_line, end_line, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insChunk.Close()

	insVec, err := tx.PrepareContext(ctx, "INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer insVec.Close()

	for i, c := range chunks {
		if len(vectors[i]) != s.dims {
			return fmt.Errorf("vector for %s#%d has %d dimensions, want %d", c.FilePath, c.ChunkIndex, len(vectors[i]), s.dims)
		}
		pid := PointID(c.ProjectName, c.FilePath, c.ChunkIndex)

		var oldID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM chunks WHERE point_id = ?", pid).Scan(&oldID)
		switch {
		case err == nil:
			if err := deleteChunkIDs(ctx, tx, []int64{oldID}); err != nil {
				return err
			}
		case err != sql.ErrNoRows:
			return err
		}

		res, err := insChunk.ExecContext(ctx, pid, c.ProjectName, c.FilePath, c.ChunkIndex, c.Language,
			string(c.ChunkType), c.Name, c.StartLine, c.EndLine, c.Content)
		if err != nil {
			return fmt.Errorf("insert chunk %s#%d: %w", c.FilePath, c.ChunkIndex, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		blob, err := sqlite_vec.SerializeFloat32(vectors[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for chunk %d: %w", id, err)
		}
		if _, err := insVec.ExecContext(ctx, id, blob); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteByFile removes every chunk stored for one file.
func (s *SQLiteStore) DeleteByFile(ctx context.Context, project, path string) error {
	return s.deleteWhere(ctx, "project_name = ? AND file_path = ?", project, path)
}

// DeleteByProject removes every chunk stored for a project.
func (s *SQLiteStore) DeleteByProject(ctx context.Context, project string) error {
	return s.deleteWhere(ctx, "project_name = ?", project)
}

// DeleteAll removes every chunk.
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	return s.deleteWhere(ctx, "1 = 1")
}

func (s *SQLiteStore) deleteWhere(ctx context.Context, where string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE "+where, args...)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if err := deleteChunkIDs(ctx, tx, ids); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteChunkIDs(ctx context.Context, tx *sql.Tx, ids []int64) error {
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored chunks for project.
func (s *SQLiteStore) Count(ctx context.Context, project string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE project_name = ?", project).Scan(&n)
	return n, err
}

const resultColumns = `c.project_name, c.file_path, c.chunk_index, c.language, c.chunk_type, c.name,
	c.start_line, c.end_line, c.content`

// Search returns the chunks closest to q.Vector by cosine distance. Without
// filters it runs a vec0 KNN query; with filters it ranks only the matching
// rows so the limit is always filled when enough rows match.
func (s *SQLiteStore) Search(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(q.Vector)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}

	var (
		query string
		args  []any
	)
	if q.Project == "" && q.Language == "" {
		query = `
			SELECT ` + resultColumns + `, v.distance
			FROM (
				SELECT chunk_id, distance FROM vec_chunks
				WHERE embedding MATCH ? AND k = ?
			) v
			JOIN chunks c ON c.id = v.chunk_id
			ORDER BY v.distance`
		args = []any{blob, q.Limit}
	} else {
		query = `
			SELECT ` + resultColumns + `, vec_distance_cosine(v.embedding, ?) AS distance
			FROM chunks c
			JOIN vec_chunks v ON v.chunk_id = c.id
			WHERE (? = '' OR c.project_name = ?) AND (? = '' OR c.language = ?)
			ORDER BY distance
			LIMIT ?`
		args = []any{blob, q.Project, q.Project, q.Language, q.Language, q.Limit}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r        SearchResult
			typ      string
			distance float64
		)
		err := rows.Scan(
			&r.ProjectName, &r.FilePath, &r.ChunkIndex, &r.Language, &typ, &r.Name,
			&r.StartLine, &r.EndLine, &r.Content, &distance,
		)
		if err != nil {
			return nil, err
		}
		r.ChunkType = chunker.ChunkType(typ)
		r.Score = 1 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}
