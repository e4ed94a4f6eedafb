package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/coverage"
	"github.com/starford/ansuz/internal/export"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/service"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *service.Service
	importer *index.Importer
}

// NewHandler creates a new Handler. importer may be nil when no transcripts
// folder is configured.
func NewHandler(svc *service.Service, importer *index.Importer) *Handler {
	return &Handler{svc: svc, importer: importer}
}

// ListTranscripts handles GET /api/transcripts.
//
//	@Summary	List transcripts without their content
//	@Tags		transcripts
//	@Produce	json
//	@Success	200	{array}	TranscriptListItem
//	@Router		/transcripts [get]
func (h *Handler) ListTranscripts(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Snapshot()
	counts := make(map[string]int, len(snap.Transcripts))
	for _, c := range snap.Codings {
		counts[c.TranscriptID]++
	}
	items := make([]TranscriptListItem, 0, len(snap.Transcripts))
	for _, t := range snap.Transcripts {
		items = append(items, TranscriptListItem{
			ID:      t.ID,
			Title:   t.Title,
			CaseID:  t.CaseID,
			Source:  t.Source,
			Length:  t.Len(),
			Codings: counts[t.ID],
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// GetTranscript handles GET /api/transcripts/{id}.
//
//	@Summary	Get a transcript with its content
//	@Tags		transcripts
//	@Produce	json
//	@Param		id	path		string	true	"Transcript id"
//	@Success	200	{object}	models.Transcript
//	@Failure	404	{object}	errResponse
//	@Router		/transcripts/{id} [get]
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Transcript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateTranscript handles POST /api/transcripts.
//
//	@Summary	Add a transcript
//	@Tags		transcripts
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateTranscriptRequest	true	"Transcript to add"
//	@Success	201		{object}	models.Transcript
//	@Failure	400		{object}	errResponse
//	@Failure	409		{object}	errResponse
//	@Router		/transcripts [post]
func (h *Handler) CreateTranscript(w http.ResponseWriter, r *http.Request) {
	var req CreateTranscriptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.AddTranscript(r.Context(), models.Transcript{
		ID:      req.ID,
		Title:   req.Title,
		Content: req.Content,
		CaseID:  req.CaseID,
	})
	if err != nil {
		writeError(w, "create transcript", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// DeleteTranscript handles DELETE /api/transcripts/{id}.
//
//	@Summary	Delete a transcript and its codings
//	@Tags		transcripts
//	@Produce	json
//	@Param		id	path		string	true	"Transcript id"
//	@Success	200	{object}	DeleteResponse
//	@Failure	404	{object}	errResponse
//	@Router		/transcripts/{id} [delete]
func (h *Handler) DeleteTranscript(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.DeleteTranscript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete transcript", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Removed: removed})
}

// AssignCase handles PUT /api/transcripts/{id}/case.
func (h *Handler) AssignCase(w http.ResponseWriter, r *http.Request) {
	var req AssignCaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.AssignCase(r.Context(), chi.URLParam(r, "id"), req.CaseID); err != nil {
		writeError(w, "assign case", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCases handles GET /api/cases.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Cases(r.Context()))
}

// CreateCase handles POST /api/cases.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.AddCase(r.Context(), models.Case{ID: req.ID, Name: req.Name, Attributes: req.Attributes})
	if err != nil {
		writeError(w, "create case", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteCase handles DELETE /api/cases/{id}.
func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCase(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete case", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCodes handles GET /api/codes.
//
//	@Summary	List codes
//	@Tags		codes
//	@Produce	json
//	@Success	200	{array}	models.Code
//	@Router		/codes [get]
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Codes(r.Context()))
}

// CreateCode handles POST /api/codes.
//
//	@Summary	Add a code
//	@Tags		codes
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateCodeRequest	true	"Code to add"
//	@Success	201		{object}	models.Code
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Router		/codes [post]
func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req CreateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.AddCode(r.Context(), models.Code{
		ID:       req.ID,
		Text:     req.Text,
		Color:    req.Color,
		ParentID: req.ParentID,
	})
	if err != nil {
		writeError(w, "create code", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCode handles PUT /api/codes/{id}.
func (h *Handler) UpdateCode(w http.ResponseWriter, r *http.Request) {
	var req UpdateCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateCode(r.Context(), chi.URLParam(r, "id"), req.Text, req.Color, req.ParentID)
	if err != nil {
		writeError(w, "update code", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCode handles DELETE /api/codes/{id}.
//
//	@Summary	Delete a code and its codings; children become roots
//	@Tags		codes
//	@Produce	json
//	@Param		id	path		string	true	"Code id"
//	@Success	200	{object}	DeleteResponse
//	@Failure	404	{object}	errResponse
//	@Router		/codes/{id} [delete]
func (h *Handler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	removed, err := h.svc.DeleteCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete code", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Removed: removed})
}

// MergeCode handles POST /api/codes/{id}/merge.
//
//	@Summary	Merge a code into another
//	@Tags		codes
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Source code id"
//	@Param		body	body		MergeCodeRequest	true	"Target code"
//	@Success	200		{object}	MergeResponse
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Router		/codes/{id}/merge [post]
func (h *Handler) MergeCode(w http.ResponseWriter, r *http.Request) {
	var req MergeCodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	moved, err := h.svc.MergeCode(r.Context(), chi.URLParam(r, "id"), req.Target)
	if err != nil {
		writeError(w, "merge code", err)
		return
	}
	writeJSON(w, http.StatusOK, MergeResponse{Moved: moved})
}

// ListCodings handles GET /api/codings.
//
//	@Summary	List codings, optionally filtered
//	@Tags		codings
//	@Produce	json
//	@Param		transcript	query	string	false	"Transcript id"
//	@Param		code		query	string	false	"Code id"
//	@Success	200			{array}	models.Coding
//	@Router		/codings [get]
func (h *Handler) ListCodings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.svc.Codings(r.Context(), q.Get("transcript"), q.Get("code")))
}

// CreateCoding handles POST /api/codings.
//
//	@Summary	Code a span of a transcript
//	@Tags		codings
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreateCodingRequest	true	"Span to code"
//	@Success	201		{object}	models.Coding
//	@Failure	400		{object}	errResponse
//	@Router		/codings [post]
func (h *Handler) CreateCoding(w http.ResponseWriter, r *http.Request) {
	var req CreateCodingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCoding(r.Context(), req.TranscriptID, req.CodeID, req.Start, req.End, req.CodedText)
	if err != nil {
		writeError(w, "create coding", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteCoding handles DELETE /api/codings/{id}. Deleting an absent coding
// succeeds.
func (h *Handler) DeleteCoding(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.DeleteCoding(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete coding", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReassignCoding handles PUT /api/codings/{id}/code.
func (h *Handler) ReassignCoding(w http.ResponseWriter, r *http.Request) {
	var req ReassignCodingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.Reassign(r.Context(), chi.URLParam(r, "id"), req.CodeID)
	if err != nil {
		writeError(w, "reassign coding", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// InVivo handles POST /api/codings/in-vivo.
func (h *Handler) InVivo(w http.ResponseWriter, r *http.Request) {
	var req InVivoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code, coding, err := h.svc.InVivo(r.Context(), req.TranscriptID, req.Start, req.End, req.Color)
	if err != nil {
		writeError(w, "in vivo coding", err)
		return
	}
	writeJSON(w, http.StatusCreated, InVivoResponse{Code: code, Coding: coding})
}

// SpreadCoding handles POST /api/codings/{id}/spread.
func (h *Handler) SpreadCoding(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.SpreadToParagraph(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "spread coding", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// AutocodePreview handles POST /api/autocode/preview.
//
//	@Summary	Preview keyword or regex matches
//	@Tags		autocode
//	@Accept		json
//	@Produce	json
//	@Param		body	body		AutocodeRequest	true	"Pattern and target code"
//	@Success	200		{object}	autocode.Preview
//	@Failure	400		{object}	errResponse
//	@Router		/autocode/preview [post]
func (h *Handler) AutocodePreview(w http.ResponseWriter, r *http.Request) {
	var req AutocodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.AutocodePreview(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, "autocode preview", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AutocodeCommit handles POST /api/autocode/commit.
//
//	@Summary	Code every keyword or regex match
//	@Tags		autocode
//	@Accept		json
//	@Produce	json
//	@Param		body	body		AutocodeRequest	true	"Pattern and target code"
//	@Success	200		{object}	autocode.Result
//	@Failure	400		{object}	errResponse
//	@Router		/autocode/commit [post]
func (h *Handler) AutocodeCommit(w http.ResponseWriter, r *http.Request) {
	var req AutocodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AutocodeCommit(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, "autocode commit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Coverage handles GET /api/coverage.
//
//	@Summary	Coverage report
//	@Tags		reports
//	@Produce	json,text/csv,text/plain
//	@Param		descendants	query	bool	false	"Roll child codes into their parents"
//	@Param		format		query	string	false	"Output format"	Enums(json, csv, text)
//	@Param		table		query	string	false	"CSV table"		Enums(transcripts, codes)
//	@Success	200			{object}	coverage.Report
//	@Router		/coverage [get]
func (h *Handler) Coverage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	descendants, _ := strconv.ParseBool(q.Get("descendants"))
	rep, err := h.svc.Coverage(r.Context(), coverage.Options{IncludeDescendants: descendants})
	if err != nil {
		writeError(w, "coverage", err)
		return
	}
	switch q.Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if q.Get("table") == "codes" {
			err = export.CodeCoverageCSV(w, rep)
		} else {
			err = export.TranscriptCoverageCSV(w, rep)
		}
	case export.FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = export.CoverageText(w, rep)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("format must be json, csv or text"))
		return
	}
	if err != nil {
		writeError(w, "coverage export", err)
	}
}

// Reliability handles GET /api/reliability.
//
//	@Summary	Cohen's Kappa between two codes
//	@Tags		reports
//	@Produce	json,text/csv,text/plain
//	@Param		a			query	string	true	"First code id"
//	@Param		b			query	string	true	"Second code id"
//	@Param		mode		query	string	false	"Segmentation unit"	Enums(paragraph, sentence)
//	@Param		transcript	query	[]string	false	"Restrict to transcripts"
//	@Param		format		query	string	false	"Output format"		Enums(json, csv, text)
//	@Success	200			{object}	reliability.Report
//	@Failure	400			{object}	errResponse
//	@Failure	404			{object}	errResponse
//	@Router		/reliability [get]
func (h *Handler) Reliability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b, mode := q.Get("a"), q.Get("b"), q.Get("mode")
	err := validation.Errors{
		"a":    validation.Validate(a, validation.Required),
		"b":    validation.Validate(b, validation.Required),
		"mode": validation.Validate(mode, validation.In(reliabilityModes...)),
	}.Filter()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error(), Kind: apperr.KindValidation})
		return
	}

	rep, err := h.svc.Reliability(r.Context(), a, b, mode, q["transcript"])
	if err != nil {
		writeError(w, "reliability", err)
		return
	}
	switch q.Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.ReliabilityCSV(w, rep)
	case export.FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		err = export.ReliabilityText(w, rep, h.codeText(r, a), h.codeText(r, b))
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("format must be json, csv or text"))
		return
	}
	if err != nil {
		writeError(w, "reliability export", err)
	}
}

// Import handles POST /api/import, running one incremental folder import.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no transcripts folder configured"))
		return
	}
	stats, err := h.importer.Sync(r.Context())
	if err != nil {
		writeError(w, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) codeText(r *http.Request, id string) string {
	for _, c := range h.svc.Codes(r.Context()) {
		if c.ID == id {
			return c.Text
		}
	}
	return ""
}
