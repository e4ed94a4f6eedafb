// Package index persists project snapshots and the transcript import ledger
// in SQLite, and keeps a project in step with a transcripts folder.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cases (
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	attributes  TEXT NOT NULL DEFAULT '{}',
	fingerprint TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS transcripts (
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL,
	case_id     TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	fingerprint TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS codes (
	project_id  TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	text        TEXT NOT NULL,
	color       TEXT NOT NULL DEFAULT '',
	parent_id   TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	fingerprint TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS codings (
	project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	id            TEXT NOT NULL,
	transcript_id TEXT NOT NULL,
	code_id       TEXT NOT NULL,
	start_offset  INTEGER NOT NULL,
	end_offset    INTEGER NOT NULL,
	coded_text    TEXT NOT NULL,
	origin        TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	fingerprint   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (project_id, id)
);

CREATE INDEX IF NOT EXISTS idx_codings_transcript ON codings(project_id, transcript_id);
CREATE INDEX IF NOT EXISTS idx_codings_code ON codings(project_id, code_id);

CREATE TABLE IF NOT EXISTS imports (
	project_id    TEXT NOT NULL,
	path          TEXT NOT NULL,
	checksum      TEXT NOT NULL,
	transcript_id TEXT NOT NULL,
	imported_at   TEXT NOT NULL,
	PRIMARY KEY (project_id, path)
);
`

// DB wraps a sql.DB with snapshot and import-ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := addFingerprintColumns(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

// addFingerprintColumns upgrades databases created before rows carried
// fingerprints. Their rows start with an empty fingerprint and are rewritten
// on the next save.
func addFingerprintColumns(conn *sql.DB) error {
	for _, table := range []string{"cases", "transcripts", "codes", "codings"} {
		var n int
		err := conn.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = 'fingerprint'`, table).Scan(&n)
		if err != nil {
			return fmt.Errorf("index: inspect %s: %w", table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := conn.Exec(`ALTER TABLE ` + table + ` ADD COLUMN fingerprint TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("index: add %s fingerprint: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
