// Package service coordinates the coding project with its snapshot store.
// It is the single writer: every mutation runs under one mutex and is
// persisted before the lock is released, so stored snapshots are never older
// than a change a client has seen acknowledged.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/autocode"
	"github.com/starford/ansuz/internal/coverage"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/project"
	"github.com/starford/ansuz/internal/reliability"
	"github.com/starford/ansuz/internal/segment"
)

// Service exposes project operations to the transport layers.
type Service struct {
	mu      sync.Mutex
	project *project.Project
	coder   *autocode.Coder
	store   index.SnapshotStore
	logger  *slog.Logger

	previewLimit int
	segmentation segment.Mode
}

// Option configures a Service.
type Option func(*Service)

// WithPreviewLimit caps auto-code previews.
func WithPreviewLimit(n int) Option {
	return func(s *Service) { s.previewLimit = n }
}

// WithSegmentation sets the default reliability unit.
func WithSegmentation(m segment.Mode) Option {
	return func(s *Service) { s.segmentation = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New wraps an existing project. store may be nil for a purely in-memory service.
func New(p *project.Project, store index.SnapshotStore, opts ...Option) *Service {
	s := &Service{
		project:      p,
		store:        store,
		logger:       slog.Default(),
		previewLimit: autocode.DefaultPreviewLimit,
		segmentation: segment.Paragraph,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.coder = autocode.New(p, autocode.WithPreviewLimit(s.previewLimit))
	return s
}

// Open loads the project id from store, creating and saving an empty one
// when it has never been stored.
func Open(ctx context.Context, store index.SnapshotStore, id, name string, opts ...Option) (*Service, error) {
	snap, err := store.LoadSnapshot(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		p := project.New(id, name)
		if err := store.SaveSnapshot(ctx, p.Snapshot()); err != nil {
			return nil, fmt.Errorf("service: save new project: %w", err)
		}
		return New(p, store, opts...), nil
	case err != nil:
		return nil, fmt.Errorf("service: load project: %w", err)
	}
	p, err := project.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("service: restore project: %w", err)
	}
	return New(p, store, opts...), nil
}

// Project returns the underlying aggregate for read-only use.
func (s *Service) Project() *project.Project { return s.project }

// Snapshot returns a consistent copy of the project state.
func (s *Service) Snapshot() project.Snapshot { return s.project.Snapshot() }

// mutate runs fn under the writer lock and persists the result when fn
// reports a change.
func (s *Service) mutate(ctx context.Context, op string, fn func() (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := fn()
	if err != nil {
		return err
	}
	if !changed || s.store == nil {
		return nil
	}
	if err := s.store.SaveSnapshot(ctx, s.project.Snapshot()); err != nil {
		s.logger.Error("service: persist failed", slog.String("op", op), slog.String("error", err.Error()))
		return fmt.Errorf("service: persist after %s: %w", op, err)
	}
	return nil
}

// Transcripts lists every transcript.
func (s *Service) Transcripts(_ context.Context) []models.Transcript {
	return s.project.Transcripts()
}

// Transcript returns one transcript.
func (s *Service) Transcript(_ context.Context, id string) (models.Transcript, error) {
	return s.project.Transcript(id)
}

// AddTranscript adds a transcript.
func (s *Service) AddTranscript(ctx context.Context, t models.Transcript) (models.Transcript, error) {
	var out models.Transcript
	err := s.mutate(ctx, "add transcript", func() (bool, error) {
		var err error
		out, err = s.project.AddTranscript(t)
		return err == nil, err
	})
	return out, err
}

// DeleteTranscript removes a transcript and its codings.
func (s *Service) DeleteTranscript(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.mutate(ctx, "delete transcript", func() (bool, error) {
		var err error
		removed, err = s.project.DeleteTranscript(id)
		return err == nil, err
	})
	return removed, err
}

// Cases lists every case.
func (s *Service) Cases(_ context.Context) []models.Case {
	return s.project.Cases()
}

// AddCase adds a case.
func (s *Service) AddCase(ctx context.Context, c models.Case) (models.Case, error) {
	var out models.Case
	err := s.mutate(ctx, "add case", func() (bool, error) {
		var err error
		out, err = s.project.AddCase(c)
		return err == nil, err
	})
	return out, err
}

// DeleteCase removes a case; its transcripts become unassigned.
func (s *Service) DeleteCase(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete case", func() (bool, error) {
		err := s.project.DeleteCase(id)
		return err == nil, err
	})
}

// AssignCase sets or clears the case of a transcript.
func (s *Service) AssignCase(ctx context.Context, transcriptID, caseID string) error {
	return s.mutate(ctx, "assign case", func() (bool, error) {
		err := s.project.AssignCase(transcriptID, caseID)
		return err == nil, err
	})
}

// Codes lists every code.
func (s *Service) Codes(_ context.Context) []models.Code {
	return s.project.Codes()
}

// AddCode adds a code.
func (s *Service) AddCode(ctx context.Context, c models.Code) (models.Code, error) {
	var out models.Code
	err := s.mutate(ctx, "add code", func() (bool, error) {
		var err error
		out, err = s.project.AddCode(c)
		return err == nil, err
	})
	return out, err
}

// UpdateCode changes the text and color of a code and, when parentID is not
// nil, moves it in the hierarchy. A rejected update changes nothing.
func (s *Service) UpdateCode(ctx context.Context, id, text, color string, parentID *string) (models.Code, error) {
	var out models.Code
	err := s.mutate(ctx, "update code", func() (bool, error) {
		var err error
		out, err = s.project.UpdateCode(id, text, color, parentID)
		return err == nil, err
	})
	return out, err
}

// DeleteCode removes a code and its codings.
func (s *Service) DeleteCode(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.mutate(ctx, "delete code", func() (bool, error) {
		var err error
		removed, err = s.project.DeleteCode(id)
		return err == nil, err
	})
	return removed, err
}

// MergeCode moves every coding of source to target and deletes source.
func (s *Service) MergeCode(ctx context.Context, sourceID, targetID string) (int, error) {
	var moved int
	err := s.mutate(ctx, "merge code", func() (bool, error) {
		var err error
		moved, err = s.project.MergeCode(sourceID, targetID)
		return err == nil, err
	})
	return moved, err
}

// Codings lists codings filtered by transcript and code; empty filters match all.
func (s *Service) Codings(_ context.Context, transcriptID, codeID string) []models.Coding {
	if transcriptID == "" {
		return s.project.CodingsByCode(codeID)
	}
	all := s.project.CodingsFor(transcriptID)
	if codeID == "" {
		return all
	}
	out := make([]models.Coding, 0, len(all))
	for _, c := range all {
		if c.CodeID == codeID {
			out = append(out, c)
		}
	}
	return out
}

// CreateCoding codes [start, end) of a transcript.
func (s *Service) CreateCoding(ctx context.Context, transcriptID, codeID string, start, end int, codedText string) (models.Coding, error) {
	var out models.Coding
	err := s.mutate(ctx, "create coding", func() (bool, error) {
		var err error
		out, err = s.project.CreateCoding(transcriptID, codeID, start, end, codedText)
		return err == nil, err
	})
	return out, err
}

// DeleteCoding removes a coding. It reports whether one was removed.
func (s *Service) DeleteCoding(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.mutate(ctx, "delete coding", func() (bool, error) {
		removed = s.project.DeleteCoding(id)
		return removed, nil
	})
	return removed, err
}

// Reassign moves a coding to another code.
func (s *Service) Reassign(ctx context.Context, codingID, codeID string) (models.Coding, error) {
	var out models.Coding
	err := s.mutate(ctx, "reassign coding", func() (bool, error) {
		var err error
		out, err = s.project.Reassign(codingID, codeID)
		return err == nil, err
	})
	return out, err
}

// InVivo creates a code named after the selected span and codes the span with it.
func (s *Service) InVivo(ctx context.Context, transcriptID string, start, end int, color string) (models.Code, models.Coding, error) {
	var code models.Code
	var coding models.Coding
	err := s.mutate(ctx, "in vivo", func() (bool, error) {
		var err error
		code, coding, err = s.project.InVivo(transcriptID, start, end, color)
		return err == nil, err
	})
	return code, coding, err
}

// SpreadToParagraph extends a coding to its enclosing paragraph.
func (s *Service) SpreadToParagraph(ctx context.Context, codingID string) (models.Coding, error) {
	var out models.Coding
	err := s.mutate(ctx, "spread coding", func() (bool, error) {
		var err error
		out, err = s.project.SpreadToParagraph(codingID)
		return err == nil, err
	})
	return out, err
}

// AutocodePreview lists matches without coding them.
func (s *Service) AutocodePreview(_ context.Context, req autocode.Request) (autocode.Preview, error) {
	return s.coder.Preview(req)
}

// AutocodeCommit codes every match.
func (s *Service) AutocodeCommit(ctx context.Context, req autocode.Request) (autocode.Result, error) {
	var res autocode.Result
	err := s.mutate(ctx, "auto-code commit", func() (bool, error) {
		var err error
		res, err = s.coder.Commit(req)
		return err == nil && res.Created > 0, err
	})
	if err == nil {
		s.logger.Info("autocode: committed",
			slog.String("code_id", req.CodeID),
			slog.String("mode", string(req.Mode)),
			slog.Int("created", res.Created))
	}
	return res, err
}

// Coverage builds the coverage report over the current state.
func (s *Service) Coverage(_ context.Context, opts coverage.Options) (coverage.Report, error) {
	return coverage.Build(s.project.Snapshot(), opts)
}

// Reliability compares two codes. An empty mode uses the configured default.
func (s *Service) Reliability(_ context.Context, codeA, codeB, mode string, transcriptIDs []string) (reliability.Report, error) {
	m := s.segmentation
	if mode != "" {
		var err error
		if m, err = segment.ParseMode(mode); err != nil {
			return reliability.Report{}, err
		}
	}
	return reliability.Analyze(s.project.Snapshot(), codeA, codeB, reliability.Options{
		Mode:          m,
		TranscriptIDs: transcriptIDs,
	})
}
