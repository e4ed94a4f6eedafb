package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/project"
)

// timeLayout is fixed-width so lexical order in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveSnapshot makes the stored state of s.ID equal to s in one
// transaction. Each row carries a fingerprint of its values; rows whose
// fingerprint is unchanged are not rewritten, so a save costs writes only for
// what changed since the last one.
func (db *DB) SaveSnapshot(ctx context.Context, s project.Snapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			updated_at = excluded.updated_at
	`, s.ID, s.Name, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}

	cases, err := caseRows(s.Cases)
	if err != nil {
		return err
	}
	for _, t := range []struct {
		table tableSpec
		rows  []row
	}{
		{casesTable, cases},
		{transcriptsTable, transcriptRows(s.Transcripts)},
		{codesTable, codeRows(s.Codes)},
		{codingsTable, codingRows(s.Codings)},
	} {
		if err := syncTable(ctx, tx, s.ID, t.table, t.rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// tableSpec names a project child table and its columns after project_id.
// The first column is the row id.
type tableSpec struct {
	name    string
	columns []string
}

var (
	casesTable       = tableSpec{"cases", []string{"id", "name", "attributes"}}
	transcriptsTable = tableSpec{"transcripts", []string{"id", "title", "content", "case_id", "source", "created_at"}}
	codesTable       = tableSpec{"codes", []string{"id", "text", "color", "parent_id", "created_at"}}
	codingsTable     = tableSpec{"codings", []string{"id", "transcript_id", "code_id", "start_offset", "end_offset", "coded_text", "origin", "created_at"}}
)

func (t tableSpec) upsertSQL() string {
	cols := append(slices.Clone(t.columns), "fingerprint")
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	return "INSERT INTO " + t.name + " (project_id, " + strings.Join(cols, ", ") + ")" +
		" VALUES (?" + strings.Repeat(", ?", len(cols)) + ")" +
		" ON CONFLICT(project_id, id) DO UPDATE SET " + strings.Join(updates, ", ")
}

// row is one record in column order; values are strings or ints.
type row []any

func (r row) id() string { return r[0].(string) }

func (r row) fingerprint() string {
	fields := make([]string, len(r))
	for i, v := range r {
		switch v := v.(type) {
		case int:
			fields[i] = strconv.Itoa(v)
		default:
			fields[i] = v.(string)
		}
	}
	return checksum.Fields(fields...)
}

// syncTable upserts rows whose fingerprint changed and deletes stored rows
// that are no longer present.
func syncTable(ctx context.Context, tx *sql.Tx, projectID string, t tableSpec, rows []row) error {
	stored, err := storedFingerprints(ctx, tx, projectID, t.name)
	if err != nil {
		return err
	}

	upsert, err := tx.PrepareContext(ctx, t.upsertSQL())
	if err != nil {
		return fmt.Errorf("index: prepare %s upsert: %w", t.name, err)
	}
	defer upsert.Close()

	for _, r := range rows {
		fp := r.fingerprint()
		prev, ok := stored[r.id()]
		delete(stored, r.id())
		if ok && prev == fp {
			continue
		}
		args := make([]any, 0, len(r)+2)
		args = append(args, projectID)
		args = append(args, r...)
		args = append(args, fp)
		if _, err := upsert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("index: upsert %s %q: %w", t.name, r.id(), err)
		}
	}

	if len(stored) == 0 {
		return nil
	}
	del, err := tx.PrepareContext(ctx, `DELETE FROM `+t.name+` WHERE project_id = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("index: prepare %s delete: %w", t.name, err)
	}
	defer del.Close()
	for id := range stored {
		if _, err := del.ExecContext(ctx, projectID, id); err != nil {
			return fmt.Errorf("index: delete %s %q: %w", t.name, id, err)
		}
	}
	return nil
}

func storedFingerprints(ctx context.Context, tx *sql.Tx, projectID, table string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, fingerprint FROM `+table+` WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: read %s fingerprints: %w", table, err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, fp string
		if err := rows.Scan(&id, &fp); err != nil {
			return nil, fmt.Errorf("index: scan %s fingerprint: %w", table, err)
		}
		out[id] = fp
	}
	return out, rows.Err()
}

func caseRows(cases []models.Case) ([]row, error) {
	out := make([]row, 0, len(cases))
	for _, c := range cases {
		attrs := c.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		raw, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("index: encode case attributes: %w", err)
		}
		out = append(out, row{c.ID, c.Name, string(raw)})
	}
	return out, nil
}

func transcriptRows(ts []models.Transcript) []row {
	out := make([]row, 0, len(ts))
	for _, t := range ts {
		out = append(out, row{t.ID, t.Title, t.Content, t.CaseID, t.Source, formatTime(t.CreatedAt)})
	}
	return out
}

func codeRows(codes []models.Code) []row {
	out := make([]row, 0, len(codes))
	for _, c := range codes {
		out = append(out, row{c.ID, c.Text, c.Color, c.ParentID, formatTime(c.CreatedAt)})
	}
	return out
}

func codingRows(codings []models.Coding) []row {
	out := make([]row, 0, len(codings))
	for _, c := range codings {
		out = append(out, row{c.ID, c.TranscriptID, c.CodeID, c.Start, c.End, c.CodedText, c.Origin, formatTime(c.CreatedAt)})
	}
	return out
}

// LoadSnapshot reads the stored state of a project. It returns
// apperr.ErrNotFound if the project was never saved.
func (db *DB) LoadSnapshot(ctx context.Context, projectID string) (project.Snapshot, error) {
	s := project.Snapshot{ID: projectID}
	err := db.conn.QueryRowContext(ctx, `SELECT name FROM projects WHERE id = ?`, projectID).Scan(&s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Snapshot{}, fmt.Errorf("%w: project %q", apperr.ErrNotFound, projectID)
	}
	if err != nil {
		return project.Snapshot{}, fmt.Errorf("index: load project: %w", err)
	}

	if s.Cases, err = loadCases(ctx, db.conn, projectID); err != nil {
		return project.Snapshot{}, err
	}
	if s.Transcripts, err = loadTranscripts(ctx, db.conn, projectID); err != nil {
		return project.Snapshot{}, err
	}
	if s.Codes, err = loadCodes(ctx, db.conn, projectID); err != nil {
		return project.Snapshot{}, err
	}
	if s.Codings, err = loadCodings(ctx, db.conn, projectID); err != nil {
		return project.Snapshot{}, err
	}
	return s, nil
}

func loadCases(ctx context.Context, conn *sql.DB, projectID string) ([]models.Case, error) {
	rows, err := conn.QueryContext(ctx, `SELECT id, name, attributes FROM cases WHERE project_id = ? ORDER BY name, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: load cases: %w", err)
	}
	defer rows.Close()
	out := []models.Case{}
	for rows.Next() {
		var c models.Case
		var raw string
		if err := rows.Scan(&c.ID, &c.Name, &raw); err != nil {
			return nil, fmt.Errorf("index: scan case: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &c.Attributes); err != nil {
			return nil, fmt.Errorf("index: decode case attributes: %w", err)
		}
		if len(c.Attributes) == 0 {
			c.Attributes = nil
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadTranscripts(ctx context.Context, conn *sql.DB, projectID string) ([]models.Transcript, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, title, content, case_id, source, created_at
		FROM transcripts WHERE project_id = ? ORDER BY created_at, title, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: load transcripts: %w", err)
	}
	defer rows.Close()
	out := []models.Transcript{}
	for rows.Next() {
		var t models.Transcript
		var created string
		if err := rows.Scan(&t.ID, &t.Title, &t.Content, &t.CaseID, &t.Source, &created); err != nil {
			return nil, fmt.Errorf("index: scan transcript: %w", err)
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func loadCodes(ctx context.Context, conn *sql.DB, projectID string) ([]models.Code, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, text, color, parent_id, created_at
		FROM codes WHERE project_id = ? ORDER BY created_at, text, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: load codes: %w", err)
	}
	defer rows.Close()
	out := []models.Code{}
	for rows.Next() {
		var c models.Code
		var created string
		if err := rows.Scan(&c.ID, &c.Text, &c.Color, &c.ParentID, &created); err != nil {
			return nil, fmt.Errorf("index: scan code: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadCodings(ctx context.Context, conn *sql.DB, projectID string) ([]models.Coding, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT id, transcript_id, code_id, start_offset, end_offset, coded_text, origin, created_at
		FROM codings WHERE project_id = ? ORDER BY transcript_id, start_offset, end_offset, code_id, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("index: load codings: %w", err)
	}
	defer rows.Close()
	out := []models.Coding{}
	for rows.Next() {
		var c models.Coding
		var created string
		if err := rows.Scan(&c.ID, &c.TranscriptID, &c.CodeID, &c.Start, &c.End, &c.CodedText, &c.Origin, &created); err != nil {
			return nil, fmt.Errorf("index: scan coding: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("index: parse time %q: %w", s, err)
	}
	return t, nil
}
