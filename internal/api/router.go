package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/service"
)

// NewRouter creates a chi router with all API routes mounted.
// importer, if non-nil, enables POST /import.
func NewRouter(svc *service.Service, importer *index.Importer) chi.Router {
	h := NewHandler(svc, importer)

	r := chi.NewRouter()
	r.Use(RequireJSON)

	// Transcripts and cases.
	r.Get("/transcripts", h.ListTranscripts)
	r.Post("/transcripts", h.CreateTranscript)
	r.Get("/transcripts/{id}", h.GetTranscript)
	r.Delete("/transcripts/{id}", h.DeleteTranscript)
	r.Put("/transcripts/{id}/case", h.AssignCase)
	r.Get("/cases", h.ListCases)
	r.Post("/cases", h.CreateCase)
	r.Delete("/cases/{id}", h.DeleteCase)

	// Code book.
	r.Get("/codes", h.ListCodes)
	r.Post("/codes", h.CreateCode)
	r.Put("/codes/{id}", h.UpdateCode)
	r.Delete("/codes/{id}", h.DeleteCode)
	r.Post("/codes/{id}/merge", h.MergeCode)

	// Codings.
	r.Get("/codings", h.ListCodings)
	r.Post("/codings", h.CreateCoding)
	r.Post("/codings/in-vivo", h.InVivo)
	r.Delete("/codings/{id}", h.DeleteCoding)
	r.Put("/codings/{id}/code", h.ReassignCoding)
	r.Post("/codings/{id}/spread", h.SpreadCoding)

	// Auto-coding.
	r.Post("/autocode/preview", h.AutocodePreview)
	r.Post("/autocode/commit", h.AutocodeCommit)

	// Reports.
	r.Get("/coverage", h.Coverage)
	r.Get("/reliability", h.Reliability)

	// Folder import.
	r.Post("/import", h.Import)

	return r
}
