package index

import (
	"context"
	"fmt"
	"time"
)

// ImportRecord links a transcript file to the transcript created from it.
type ImportRecord struct {
	Path         string
	Checksum     string
	TranscriptID string
	ImportedAt   time.Time
}

// ImportRecords returns the ledger of a project keyed by file path.
func (db *DB) ImportRecords(ctx context.Context, projectID string) (map[string]ImportRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT path, checksum, transcript_id, imported_at FROM imports WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: import records: %w", err)
	}
	defer rows.Close()
	out := make(map[string]ImportRecord)
	for rows.Next() {
		var rec ImportRecord
		var at string
		if err := rows.Scan(&rec.Path, &rec.Checksum, &rec.TranscriptID, &at); err != nil {
			return nil, fmt.Errorf("index: scan import record: %w", err)
		}
		if rec.ImportedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		out[rec.Path] = rec
	}
	return out, rows.Err()
}

// RecordImport inserts or replaces the ledger entry for rec.Path.
func (db *DB) RecordImport(ctx context.Context, projectID string, rec ImportRecord) error {
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO imports (project_id, path, checksum, transcript_id, imported_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, path) DO UPDATE SET
			checksum      = excluded.checksum,
			transcript_id = excluded.transcript_id,
			imported_at   = excluded.imported_at
	`, projectID, rec.Path, rec.Checksum, rec.TranscriptID, formatTime(rec.ImportedAt))
	if err != nil {
		return fmt.Errorf("index: record import: %w", err)
	}
	return nil
}

// ForgetImport drops the ledger entry for path. Missing entries are ignored.
func (db *DB) ForgetImport(ctx context.Context, projectID, path string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM imports WHERE project_id = ? AND path = ?`, projectID, path); err != nil {
		return fmt.Errorf("index: forget import: %w", err)
	}
	return nil
}
