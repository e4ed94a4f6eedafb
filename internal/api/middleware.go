// Package api implements the Ansuz REST API using chi.
package api

import (
	"mime"
	"net/http"
)

// maxBodyBytes bounds request bodies; transcripts are the largest payloads.
const maxBodyBytes = 10 << 20

// RequireJSON rejects request bodies that are not declared as JSON and caps
// their size. Requests without a body pass through.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mt, _, err := mime.ParseMediaType(ct)
				if err != nil || mt != "application/json" {
					writeJSON(w, http.StatusUnsupportedMediaType, errorBody("content type must be application/json"))
					return
				}
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
