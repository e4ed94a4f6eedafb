package service

import (
	"context"
	"errors"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

var _ index.Target = (*Service)(nil)

// ImportDocument creates or refreshes the transcript for an imported file.
// The transcript is found by previousID first, then by source path, so a
// file imported before a crash is not duplicated on the next pass. Content
// changes to a coded transcript fail with apperr.ErrConflict.
func (s *Service) ImportDocument(ctx context.Context, previousID string, doc index.Document) (string, error) {
	var id string
	err := s.mutate(ctx, "import "+doc.Path, func() (bool, error) {
		caseID, caseCreated, err := s.resolveCaseLocked(doc.Case, doc.Attributes)
		if err != nil {
			return false, err
		}

		var changed bool
		id, changed, err = s.applyDocumentLocked(previousID, caseID, doc)
		if err != nil {
			if caseCreated {
				// The case was made for this document only.
				_ = s.project.DeleteCase(caseID)
			}
			return false, err
		}
		return changed || caseCreated, nil
	})
	return id, err
}

// applyDocumentLocked adds or refreshes the transcript for doc. It returns
// the transcript id and whether the transcript changed.
func (s *Service) applyDocumentLocked(previousID, caseID string, doc index.Document) (string, bool, error) {
	existing, found := s.findImportedLocked(previousID, doc.Path)
	if !found {
		t, err := s.project.AddTranscript(models.Transcript{
			Title:   doc.Title,
			Content: doc.Content,
			CaseID:  caseID,
			Source:  doc.Path,
		})
		if err != nil {
			return "", false, err
		}
		return t.ID, true, nil
	}

	if existing.Title == doc.Title && existing.Content == doc.Content &&
		existing.CaseID == caseID && existing.Source == doc.Path {
		return existing.ID, false, nil
	}
	if _, err := s.project.UpdateTranscript(models.Transcript{
		ID:      existing.ID,
		Title:   doc.Title,
		Content: doc.Content,
		CaseID:  caseID,
		Source:  doc.Path,
	}); err != nil {
		return existing.ID, false, err
	}
	return existing.ID, true, nil
}

func (s *Service) findImportedLocked(previousID, path string) (models.Transcript, bool) {
	if previousID != "" {
		if t, err := s.project.Transcript(previousID); err == nil {
			return t, true
		}
	}
	for _, t := range s.project.Transcripts() {
		if t.Source == path {
			return t, true
		}
	}
	return models.Transcript{}, false
}

// resolveCaseLocked finds a case by name, case-insensitively, creating it
// with attrs when missing. It reports whether a case was created.
func (s *Service) resolveCaseLocked(name string, attrs map[string]string) (string, bool, error) {
	if name == "" {
		return "", false, nil
	}
	for _, c := range s.project.Cases() {
		if strings.EqualFold(c.Name, name) {
			return c.ID, false, nil
		}
	}
	c, err := s.project.AddCase(models.Case{Name: name, Attributes: attrs})
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return "", false, nil
		}
		return "", false, err
	}
	return c.ID, true, nil
}
