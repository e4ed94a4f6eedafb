package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/project"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleProject(t *testing.T) *project.Project {
	t.Helper()
	n := 0
	clock := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	p := project.New("p1", "Community study",
		project.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%02d", n)
		}),
		project.WithClock(func() time.Time {
			clock = clock.Add(1500 * time.Millisecond)
			return clock
		}),
	)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := p.AddCase(models.Case{ID: "anna", Name: "Anna", Attributes: map[string]string{"age": "34"}})
	must(err)
	_, err = p.AddTranscript(models.Transcript{ID: "t1", Title: "Interview", Content: "We built the garden together.", CaseID: "anna", Source: "a.txt"})
	must(err)
	_, err = p.AddCode(models.Code{ID: "c1", Text: "Community", Color: "#aabbcc"})
	must(err)
	_, err = p.AddCode(models.Code{ID: "c2", Text: "Gardening", ParentID: "c1"})
	must(err)
	_, err = p.CreateCoding("t1", "c1", 0, 6, "")
	must(err)
	_, err = p.CreateCoding("t1", "c2", 13, 19, "garden")
	must(err)
	return p
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"projects", "cases", "transcripts", "codes", "codings", "imports"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	want := sampleProject(t).Snapshot()

	if err := db.SaveSnapshot(ctx, want); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err := db.LoadSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if got.Name != want.Name {
		t.Errorf("name = %q, want %q", got.Name, want.Name)
	}
	if len(got.Cases) != 1 || got.Cases[0].Attributes["age"] != "34" {
		t.Errorf("cases = %+v", got.Cases)
	}
	if len(got.Transcripts) != 1 || got.Transcripts[0].Content != want.Transcripts[0].Content {
		t.Errorf("transcripts = %+v", got.Transcripts)
	}
	if !got.Transcripts[0].CreatedAt.Equal(want.Transcripts[0].CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.Transcripts[0].CreatedAt, want.Transcripts[0].CreatedAt)
	}
	if len(got.Codes) != 2 || got.Codes[1].ParentID != "c1" {
		t.Errorf("codes = %+v", got.Codes)
	}
	if len(got.Codings) != 2 {
		t.Fatalf("codings = %d, want 2", len(got.Codings))
	}
	for i := range want.Codings {
		w, g := want.Codings[i], got.Codings[i]
		if g.ID != w.ID || g.Start != w.Start || g.End != w.End || g.CodedText != w.CodedText || g.Origin != w.Origin {
			t.Errorf("coding %d = %+v, want %+v", i, g, w)
		}
	}

	if _, err := project.FromSnapshot(got); err != nil {
		t.Errorf("FromSnapshot(loaded): %v", err)
	}
}

func TestSaveSnapshot_ReplacesPreviousState(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := sampleProject(t)
	if err := db.SaveSnapshot(ctx, p.Snapshot()); err != nil {
		t.Fatal(err)
	}

	if _, err := p.DeleteCode("c2"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot(ctx, p.Snapshot()); err != nil {
		t.Fatal(err)
	}

	got, err := db.LoadSnapshot(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Codes) != 1 || len(got.Codings) != 1 {
		t.Errorf("codes = %d, codings = %d, want 1 and 1", len(got.Codes), len(got.Codings))
	}
}

func TestSaveSnapshot_RewritesOnlyChangedRows(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := sampleProject(t)
	if err := db.SaveSnapshot(ctx, p.Snapshot()); err != nil {
		t.Fatal(err)
	}

	// Edit the stored row behind the fingerprint's back: an unchanged
	// snapshot row must not overwrite it.
	if _, err := db.conn.Exec(`UPDATE transcripts SET title = 'stale' WHERE id = 't1'`); err != nil {
		t.Fatal(err)
	}
	if _, err := p.CreateCoding("t1", "c1", 7, 12, ""); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot(ctx, p.Snapshot()); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadSnapshot(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Transcripts[0].Title != "stale" {
		t.Errorf("title = %q, unchanged transcript was rewritten", got.Transcripts[0].Title)
	}
	if len(got.Codings) != 3 {
		t.Errorf("codings = %d, want 3", len(got.Codings))
	}

	tr := p.Snapshot().Transcripts[0]
	tr.Title = "Second interview"
	if _, err := p.UpdateTranscript(tr); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveSnapshot(ctx, p.Snapshot()); err != nil {
		t.Fatal(err)
	}
	got, err = db.LoadSnapshot(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Transcripts[0].Title != "Second interview" {
		t.Errorf("title = %q, want %q", got.Transcripts[0].Title, "Second interview")
	}
}

func TestOpen_UpgradesSchemaWithoutFingerprints(t *testing.T) {
	f, err := os.CreateTemp("", "ansuz-old-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	old, err := sql.Open("sqlite3", f.Name())
	if err != nil {
		t.Fatal(err)
	}
	_, err = old.Exec(`CREATE TABLE codes (
		project_id TEXT NOT NULL,
		id         TEXT NOT NULL,
		text       TEXT NOT NULL,
		color      TEXT NOT NULL DEFAULT '',
		parent_id  TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		PRIMARY KEY (project_id, id)
	)`)
	old.Close()
	if err != nil {
		t.Fatal(err)
	}

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.SaveSnapshot(context.Background(), sampleProject(t).Snapshot()); err != nil {
		t.Fatalf("SaveSnapshot on upgraded schema: %v", err)
	}
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM codes WHERE fingerprint != ''`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("fingerprinted codes = %d, want 2", n)
	}
}

func TestLoadSnapshot_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.LoadSnapshot(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestImportLedger(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.RecordImport(ctx, "p1", ImportRecord{Path: "a.txt", Checksum: "x", TranscriptID: "t1"}); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordImport(ctx, "p1", ImportRecord{Path: "a.txt", Checksum: "y", TranscriptID: "t1"}); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordImport(ctx, "p2", ImportRecord{Path: "a.txt", Checksum: "z", TranscriptID: "t9"}); err != nil {
		t.Fatal(err)
	}

	recs, err := db.ImportRecords(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs["a.txt"].Checksum != "y" {
		t.Errorf("records = %+v", recs)
	}
	if recs["a.txt"].ImportedAt.IsZero() {
		t.Error("imported_at not set")
	}

	if err := db.ForgetImport(ctx, "p1", "a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := db.ForgetImport(ctx, "p1", "a.txt"); err != nil {
		t.Errorf("forgetting twice: %v", err)
	}
	recs, _ = db.ImportRecords(ctx, "p1")
	if len(recs) != 0 {
		t.Errorf("records after forget = %+v", recs)
	}
}
