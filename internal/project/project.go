// Package project implements the in-memory project aggregate: transcripts,
// codes, cases and the codings that bind them. It is the single owner of the
// coding collection and enforces its referential invariants.
//
// Every mutation validates first and applies second under one write lock, so
// no caller observes a half-applied merge or cascade.
package project

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Project is the aggregate root for one coding project.
type Project struct {
	mu sync.RWMutex

	id   string
	name string

	transcripts map[string]models.Transcript
	codes       map[string]models.Code
	cases       map[string]models.Case
	codings     map[string]models.Coding

	newID func() string
	now   func() time.Time
}

// Option configures a Project.
type Option func(*Project)

// WithIDGenerator overrides uuid-based id generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Project) {
		p.newID = fn
	}
}

// WithClock overrides time.Now for CreatedAt stamps.
func WithClock(fn func() time.Time) Option {
	return func(p *Project) {
		p.now = fn
	}
}

// New creates an empty project.
func New(id, name string, opts ...Option) *Project {
	p := &Project{
		id:          id,
		name:        name,
		transcripts: make(map[string]models.Transcript),
		codes:       make(map[string]models.Code),
		cases:       make(map[string]models.Case),
		codings:     make(map[string]models.Coding),
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the project id.
func (p *Project) ID() string { return p.id }

// Name returns the project name.
func (p *Project) Name() string { return p.name }

// AddTranscript adds t to the project. An empty ID is generated.
func (p *Project) AddTranscript(t models.Transcript) (models.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.ID == "" {
		t.ID = p.newID()
	}
	if _, ok := p.transcripts[t.ID]; ok {
		return models.Transcript{}, fmt.Errorf("%w: transcript %q", apperr.ErrAlreadyExists, t.ID)
	}
	if t.CaseID != "" {
		if _, ok := p.cases[t.CaseID]; !ok {
			return models.Transcript{}, fmt.Errorf("%w: case %q", apperr.ErrNotFound, t.CaseID)
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = p.now()
	}
	p.transcripts[t.ID] = t
	return t, nil
}

// Transcript returns the transcript with the given id.
func (p *Project) Transcript(id string) (models.Transcript, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.transcripts[id]
	if !ok {
		return models.Transcript{}, fmt.Errorf("%w: transcript %q", apperr.ErrNotFound, id)
	}
	return t, nil
}

// Transcripts returns all transcripts ordered by creation time and title.
func (p *Project) Transcripts() []models.Transcript {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedTranscripts(p.transcripts)
}

// UpdateTranscript replaces the title, case, source and content of an
// existing transcript. Content may only change while no coding refers to the
// transcript, since coding offsets would otherwise point at different text.
func (p *Project) UpdateTranscript(t models.Transcript) (models.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur, ok := p.transcripts[t.ID]
	if !ok {
		return models.Transcript{}, fmt.Errorf("%w: transcript %q", apperr.ErrNotFound, t.ID)
	}
	if t.CaseID != "" {
		if _, ok := p.cases[t.CaseID]; !ok {
			return models.Transcript{}, fmt.Errorf("%w: case %q", apperr.ErrNotFound, t.CaseID)
		}
	}
	if t.Content != cur.Content {
		for _, c := range p.codings {
			if c.TranscriptID == t.ID {
				return models.Transcript{}, fmt.Errorf("%w: transcript %q has codings, content is frozen", apperr.ErrConflict, t.ID)
			}
		}
	}
	t.CreatedAt = cur.CreatedAt
	p.transcripts[t.ID] = t
	return t, nil
}

// DeleteTranscript removes a transcript and every coding on it.
// It returns the number of codings removed.
func (p *Project) DeleteTranscript(id string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.transcripts[id]; !ok {
		return 0, fmt.Errorf("%w: transcript %q", apperr.ErrNotFound, id)
	}
	removed := 0
	for cid, c := range p.codings {
		if c.TranscriptID == id {
			delete(p.codings, cid)
			removed++
		}
	}
	delete(p.transcripts, id)
	return removed, nil
}

// AddCase adds a case. An empty ID is generated.
func (p *Project) AddCase(c models.Case) (models.Case, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := validateCase(c); err != nil {
		return models.Case{}, err
	}
	if c.ID == "" {
		c.ID = p.newID()
	}
	if _, ok := p.cases[c.ID]; ok {
		return models.Case{}, fmt.Errorf("%w: case %q", apperr.ErrAlreadyExists, c.ID)
	}
	c.Attributes = cloneAttrs(c.Attributes)
	p.cases[c.ID] = c
	return c, nil
}

// Case returns the case with the given id.
func (p *Project) Case(id string) (models.Case, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.cases[id]
	if !ok {
		return models.Case{}, fmt.Errorf("%w: case %q", apperr.ErrNotFound, id)
	}
	c.Attributes = cloneAttrs(c.Attributes)
	return c, nil
}

// Cases returns all cases ordered by name.
func (p *Project) Cases() []models.Case {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Case, 0, len(p.cases))
	for _, c := range p.cases {
		c.Attributes = cloneAttrs(c.Attributes)
		out = append(out, c)
	}
	sortCases(out)
	return out
}

// AssignCase sets the case of a transcript; an empty caseID clears it.
func (p *Project) AssignCase(transcriptID, caseID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.transcripts[transcriptID]
	if !ok {
		return fmt.Errorf("%w: transcript %q", apperr.ErrNotFound, transcriptID)
	}
	if caseID != "" {
		if _, ok := p.cases[caseID]; !ok {
			return fmt.Errorf("%w: case %q", apperr.ErrNotFound, caseID)
		}
	}
	t.CaseID = caseID
	p.transcripts[transcriptID] = t
	return nil
}

// DeleteCase removes a case and detaches its transcripts.
func (p *Project) DeleteCase(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.cases[id]; !ok {
		return fmt.Errorf("%w: case %q", apperr.ErrNotFound, id)
	}
	for tid, t := range p.transcripts {
		if t.CaseID == id {
			t.CaseID = ""
			p.transcripts[tid] = t
		}
	}
	delete(p.cases, id)
	return nil
}

func sortedTranscripts(m map[string]models.Transcript) []models.Transcript {
	out := make([]models.Transcript, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b models.Transcript) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func sortCases(cs []models.Case) {
	slices.SortFunc(cs, func(a, b models.Case) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
}

func cloneAttrs(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
