package project

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Snapshot is a consistent, detached copy of a project's state. Reports are
// computed from snapshots; persistence adapters store and restore them.
type Snapshot struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name" yaml:"name"`
	Transcripts []models.Transcript `json:"transcripts" yaml:"transcripts"`
	Codes       []models.Code       `json:"codes" yaml:"codes"`
	Cases       []models.Case       `json:"cases" yaml:"cases"`
	Codings     []models.Coding     `json:"codings" yaml:"codings"`
}

// Snapshot copies the current state under a read lock.
func (p *Project) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		ID:          p.id,
		Name:        p.name,
		Transcripts: sortedTranscripts(p.transcripts),
		Codes:       sortedCodes(p.codes),
		Cases:       make([]models.Case, 0, len(p.cases)),
		Codings:     make([]models.Coding, 0, len(p.codings)),
	}
	for _, c := range p.cases {
		c.Attributes = cloneAttrs(c.Attributes)
		s.Cases = append(s.Cases, c)
	}
	sortCases(s.Cases)
	for _, c := range p.codings {
		s.Codings = append(s.Codings, c)
	}
	sortCodings(s.Codings)
	return s
}

// FromSnapshot rebuilds a project, re-checking every referential invariant.
// Code parents may appear in any order.
func FromSnapshot(s Snapshot, opts ...Option) (*Project, error) {
	p := New(s.ID, s.Name, opts...)

	for _, c := range s.Cases {
		if _, err := p.AddCase(c); err != nil {
			return nil, fmt.Errorf("restore case %q: %w", c.ID, err)
		}
	}
	for _, t := range s.Transcripts {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: restore transcript without id", apperr.ErrValidation)
		}
		if _, err := p.AddTranscript(t); err != nil {
			return nil, fmt.Errorf("restore transcript %q: %w", t.ID, err)
		}
	}

	for _, c := range s.Codes {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: restore code without id", apperr.ErrValidation)
		}
		c.ParentID = ""
		if _, err := p.AddCode(c); err != nil {
			return nil, fmt.Errorf("restore code %q: %w", c.ID, err)
		}
	}
	for _, c := range s.Codes {
		if c.ParentID == "" {
			continue
		}
		if err := p.SetCodeParent(c.ID, c.ParentID); err != nil {
			return nil, fmt.Errorf("restore code %q: %w", c.ID, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range s.Codings {
		t, ok := p.transcripts[c.TranscriptID]
		if !ok {
			return nil, fmt.Errorf("restore coding %q: %w: transcript %q", c.ID, apperr.ErrNotFound, c.TranscriptID)
		}
		if _, ok := p.codes[c.CodeID]; !ok {
			return nil, fmt.Errorf("restore coding %q: %w: code %q", c.ID, apperr.ErrNotFound, c.CodeID)
		}
		if _, err := checkSpan(t, c.Start, c.End, c.CodedText); err != nil {
			return nil, fmt.Errorf("restore coding %q: %w", c.ID, err)
		}
		if _, dup := p.codings[c.ID]; dup || c.ID == "" {
			return nil, fmt.Errorf("restore coding %q: %w", c.ID, apperr.ErrAlreadyExists)
		}
		p.codings[c.ID] = c
	}
	return p, nil
}

// CodingsFor returns the snapshot's codings on one transcript.
func (s Snapshot) CodingsFor(transcriptID string) []models.Coding {
	var out []models.Coding
	for _, c := range s.Codings {
		if c.TranscriptID == transcriptID {
			out = append(out, c)
		}
	}
	return out
}

// CodeByID returns the code with id, if present.
func (s Snapshot) CodeByID(id string) (models.Code, bool) {
	for _, c := range s.Codes {
		if c.ID == id {
			return c, true
		}
	}
	return models.Code{}, false
}

// Descendants returns the ids of every code below id.
func (s Snapshot) Descendants(id string) []string {
	m := make(map[string]models.Code, len(s.Codes))
	for _, c := range s.Codes {
		m[c.ID] = c
	}
	return descendants(m, id)
}
