package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

const ddl = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS file_hashes (
    project_name TEXT NOT NULL,
    file_path    TEXT NOT NULL,
    hash         TEXT NOT NULL,
    updated_at   TEXT NOT NULL,
    PRIMARY KEY (project_name, file_path)
);

CREATE TABLE IF NOT EXISTS index_status (
    project_name    TEXT PRIMARY KEY,
    path            TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'pending',
    total_files     INTEGER NOT NULL DEFAULT 0,
    processed_files INTEGER NOT NULL DEFAULT 0,
    total_chunks    INTEGER NOT NULL DEFAULT 0,
    error           TEXT,
    started_at      TEXT,
    completed_at    TEXT
);

CREATE TABLE IF NOT EXISTS chunks (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    point_id     TEXT NOT NULL UNIQUE,
    project_name TEXT NOT NULL,
    file_path    TEXT NOT NULL,
    chunk_index  INTEGER NOT NULL,
    language     TEXT NOT NULL DEFAULT '',
    chunk_type   TEXT NOT NULL DEFAULT 'code',
    name         TEXT NOT NULL DEFAULT '',
    start_line   INTEGER NOT NULL,
    end_line     INTEGER NOT NULL,
    content      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(project_name, file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_language ON chunks(language);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

func vecDDL(dims int) string {
	return fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
)`, dims)
}

// initSchema creates the tables and makes sure the vector table matches
// dims. When the recorded dimension differs, every vector, chunk and file
// hash is discarded so the next runs re-embed from scratch. It reports
// whether that reset happened.
func initSchema(ctx context.Context, db *sql.DB, dims int) (bool, error) {
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return false, err
	}

	var recorded string
	err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", MetaVectorDims).Scan(&recorded)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	reset := recorded != "" && recorded != strconv.Itoa(dims)
	if reset {
		stmts := []string{
			"DROP TABLE IF EXISTS vec_chunks",
			"DELETE FROM chunks",
			"DELETE FROM file_hashes",
		}
		for _, s := range stmts {
			if _, err := db.ExecContext(ctx, s); err != nil {
				return false, err
			}
		}
	}

	if _, err := db.ExecContext(ctx, vecDDL(dims)); err != nil {
		return false, err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		MetaVectorDims, strconv.Itoa(dims),
	)
	return reset, err
}
