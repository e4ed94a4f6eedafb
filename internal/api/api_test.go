package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/service"
	"github.com/starford/ansuz/internal/testutil"
)

// testEnv sets up a temp SQLite DB, service, and router for testing.
func testEnv(t *testing.T) (*service.Service, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	svc, err := service.Open(context.Background(), db, "p1", "Study")
	if err != nil {
		t.Fatalf("service.Open: %v", err)
	}
	return svc, NewRouter(svc, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, w.Body.String())
	}
	return v
}

// seed creates one transcript and one code through the API.
func seed(t *testing.T, h http.Handler) (models.Transcript, models.Code) {
	t.Helper()
	w := do(t, h, http.MethodPost, "/transcripts", map[string]string{
		"title":   "Interview",
		"content": "The garden brought us together.\n\nCost was never the issue. The garden was.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create transcript status = %d, body = %s", w.Code, w.Body.String())
	}
	tr := decode[models.Transcript](t, w)

	w = do(t, h, http.MethodPost, "/codes", map[string]string{"text": "Garden"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create code status = %d, body = %s", w.Code, w.Body.String())
	}
	return tr, decode[models.Code](t, w)
}

func TestTranscriptLifecycle(t *testing.T) {
	_, h := testEnv(t)
	tr, code := seed(t, h)

	w := do(t, h, http.MethodGet, "/transcripts", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	items := decode[[]TranscriptListItem](t, w)
	if len(items) != 1 || items[0].Length != len(tr.Content) {
		t.Errorf("items = %+v", items)
	}

	w = do(t, h, http.MethodPost, "/codings", map[string]any{
		"transcript_id": tr.ID, "code_id": code.ID, "start": 4, "end": 10,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create coding status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodDelete, "/transcripts/"+tr.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if got := decode[DeleteResponse](t, w); got.Removed != 1 {
		t.Errorf("removed = %d, want 1", got.Removed)
	}

	w = do(t, h, http.MethodGet, "/transcripts/"+tr.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", w.Code)
	}
}

func TestCaseLifecycle(t *testing.T) {
	_, h := testEnv(t)
	tr, _ := seed(t, h)

	w := do(t, h, http.MethodPost, "/cases", map[string]any{
		"name": "Anna", "attributes": map[string]string{"age": "34"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create case status = %d, body = %s", w.Code, w.Body.String())
	}
	c := decode[models.Case](t, w)

	w = do(t, h, http.MethodPut, "/transcripts/"+tr.ID+"/case", map[string]string{"case_id": c.ID})
	if w.Code != http.StatusNoContent {
		t.Fatalf("assign status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodDelete, "/cases/"+c.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete case status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[models.Transcript](t, do(t, h, http.MethodGet, "/transcripts/"+tr.ID, nil))
	if got.CaseID != "" {
		t.Errorf("case id = %q, want cleared", got.CaseID)
	}

	w = do(t, h, http.MethodDelete, "/cases/"+c.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestCreateCoding_Errors(t *testing.T) {
	_, h := testEnv(t)
	tr, code := seed(t, h)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing ids", map[string]any{"start": 0, "end": 3}, http.StatusBadRequest},
		{"inverted span", map[string]any{"transcript_id": tr.ID, "code_id": code.ID, "start": 5, "end": 5}, http.StatusBadRequest},
		{"past end", map[string]any{"transcript_id": tr.ID, "code_id": code.ID, "start": 0, "end": 10000}, http.StatusBadRequest},
		{"unknown code", map[string]any{"transcript_id": tr.ID, "code_id": "nope", "start": 0, "end": 3}, http.StatusBadRequest},
		{"mismatched text", map[string]any{"transcript_id": tr.ID, "code_id": code.ID, "start": 0, "end": 3, "coded_text": "abc"}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/codings", c.body)
			if w.Code != c.want {
				t.Errorf("status = %d, want %d, body = %s", w.Code, c.want, w.Body.String())
			}
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	_, h := testEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/codes", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWrongContentType(t *testing.T) {
	_, h := testEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/codes", strings.NewReader("text=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", w.Code)
	}
}

func TestUpdateCode(t *testing.T) {
	svc, h := testEnv(t)
	_, code := seed(t, h)
	w := do(t, h, http.MethodPost, "/codes", map[string]string{"id": "p", "text": "Place"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create parent status = %d, body = %s", w.Code, w.Body.String())
	}

	// A rejected update must leave the code where it was.
	w = do(t, h, http.MethodPut, "/codes/"+code.ID, map[string]string{
		"text": "Garden", "color": "not-a-color", "parent_id": "p",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid color status = %d, want 400", w.Code)
	}
	for _, c := range svc.Codes(context.Background()) {
		if c.ID == code.ID && c.ParentID != "" {
			t.Errorf("parent after rejected update = %q, want root", c.ParentID)
		}
	}

	w = do(t, h, http.MethodPut, "/codes/"+code.ID, map[string]string{
		"text": "Gardens", "color": "#2ca02c", "parent_id": "p",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[models.Code](t, w)
	if got.Text != "Gardens" || got.ParentID != "p" {
		t.Errorf("updated code = %+v", got)
	}

	w = do(t, h, http.MethodPut, "/codes/p", map[string]string{"text": "Place", "parent_id": code.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("cycle status = %d, want 400", w.Code)
	}
}

func TestMergeAndReassign(t *testing.T) {
	svc, h := testEnv(t)
	tr, garden := seed(t, h)

	w := do(t, h, http.MethodPost, "/codes", map[string]string{"text": "Place"})
	place := decode[models.Code](t, w)

	w = do(t, h, http.MethodPost, "/codings", map[string]any{
		"transcript_id": tr.ID, "code_id": garden.ID, "start": 4, "end": 10,
	})
	coding := decode[models.Coding](t, w)

	w = do(t, h, http.MethodPost, "/codes/"+garden.ID+"/merge", map[string]string{"target": garden.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("self-merge status = %d, want 400", w.Code)
	}

	w = do(t, h, http.MethodPost, "/codes/"+garden.ID+"/merge", map[string]string{"target": place.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("merge status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[MergeResponse](t, w); got.Moved != 1 {
		t.Errorf("moved = %d, want 1", got.Moved)
	}
	if len(svc.Codes(context.Background())) != 1 {
		t.Errorf("source code should be gone")
	}

	w = do(t, h, http.MethodPut, "/codings/"+coding.ID+"/code", map[string]string{"code_id": "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("reassign to unknown code status = %d, want 404", w.Code)
	}

	w = do(t, h, http.MethodDelete, "/codings/"+coding.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete coding status = %d", w.Code)
	}
	w = do(t, h, http.MethodDelete, "/codings/"+coding.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("second delete status = %d, want 204", w.Code)
	}
}

func TestAutocodeEndpoints(t *testing.T) {
	_, h := testEnv(t)
	tr, code := seed(t, h)

	w := do(t, h, http.MethodPost, "/autocode/preview", map[string]any{"pattern": "garden", "code_id": code.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body = %s", w.Code, w.Body.String())
	}
	type previewBody struct {
		Total   int `json:"total"`
		Matches []struct {
			Start int `json:"start"`
		} `json:"matches"`
	}
	preview := decode[previewBody](t, w)
	if preview.Total != 2 || preview.Matches[0].Start != 4 {
		t.Errorf("preview = %+v", preview)
	}

	w = do(t, h, http.MethodPost, "/autocode/preview", map[string]any{"pattern": "(", "mode": "regex", "code_id": code.ID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad regex status = %d, want 400", w.Code)
	}

	w = do(t, h, http.MethodPost, "/autocode/commit", map[string]any{"pattern": "garden", "code_id": code.ID, "transcript_ids": []string{tr.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("commit status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/codings?code="+code.ID, nil)
	if got := decode[[]models.Coding](t, w); len(got) != 2 {
		t.Errorf("codings = %d, want 2", len(got))
	}
}

func TestReports(t *testing.T) {
	_, h := testEnv(t)
	tr, garden := seed(t, h)
	w := do(t, h, http.MethodPost, "/codes", map[string]string{"text": "Place"})
	place := decode[models.Code](t, w)

	for _, body := range []map[string]any{
		{"transcript_id": tr.ID, "code_id": garden.ID, "start": 4, "end": 10},
		{"transcript_id": tr.ID, "code_id": place.ID, "start": 0, "end": 10},
	} {
		if w := do(t, h, http.MethodPost, "/codings", body); w.Code != http.StatusCreated {
			t.Fatalf("coding status = %d", w.Code)
		}
	}

	w = do(t, h, http.MethodGet, "/coverage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("coverage status = %d", w.Code)
	}
	type coverageBody struct {
		Summary struct {
			CodedChars int `json:"coded_chars"`
		} `json:"summary"`
	}
	cov := decode[coverageBody](t, w)
	if cov.Summary.CodedChars != 10 {
		t.Errorf("coded chars = %d, want 10", cov.Summary.CodedChars)
	}

	w = do(t, h, http.MethodGet, "/coverage?format=csv&table=codes", nil)
	if !strings.HasPrefix(w.Body.String(), "code_id,text,") {
		t.Errorf("csv body = %q", w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/reliability?a="+garden.ID+"&b="+place.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reliability status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/reliability?a="+garden.ID+"&b="+place.ID+"&mode=words", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", w.Code)
	}
	w = do(t, h, http.MethodGet, "/reliability?a="+garden.ID, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing b status = %d, want 400", w.Code)
	}
	w = do(t, h, http.MethodGet, "/reliability?a="+garden.ID+"&b=missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", w.Code)
	}
}

func TestImportEndpoint(t *testing.T) {
	db := testutil.TestDB(t)
	_, store := testutil.TestTranscripts(t, map[string]string{"a.txt": "Imported text."})
	svc, err := service.Open(context.Background(), db, "p1", "Study")
	if err != nil {
		t.Fatal(err)
	}
	im := index.NewImporter(db, store, svc, "p1", []string{"**/*.txt"}, nil)
	h := NewRouter(svc, im)

	w := do(t, h, http.MethodPost, "/import", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("import status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[index.SyncStats](t, w); got.Imported != 1 {
		t.Errorf("stats = %+v", got)
	}

	w = do(t, NewRouter(svc, nil), http.MethodPost, "/import", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("import without folder status = %d, want 404", w.Code)
	}
}
