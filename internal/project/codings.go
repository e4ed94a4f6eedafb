package project

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/segment"
)

// CodingInput describes a coding to create.
type CodingInput struct {
	TranscriptID string
	CodeID       string
	Start        int
	End          int
	CodedText    string // optional; derived from the transcript when empty
	Origin       string // defaults to models.OriginManual
}

// inVivoMaxRunes bounds the text of codes created by InVivo.
const inVivoMaxRunes = 60

// CreateCoding codes [start, end) of a transcript with a code.
// Unknown transcript or code ids are validation failures that also match apperr.ErrNotFound.
func (p *Project) CreateCoding(transcriptID, codeID string, start, end int, codedText string) (models.Coding, error) {
	out, err := p.CreateCodings([]CodingInput{{
		TranscriptID: transcriptID,
		CodeID:       codeID,
		Start:        start,
		End:          end,
		CodedText:    codedText,
	}})
	if err != nil {
		return models.Coding{}, err
	}
	return out[0], nil
}

// CreateCodings validates every input and then inserts all of them, or none.
func (p *Project) CreateCodings(inputs []CodingInput) ([]models.Coding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	built := make([]models.Coding, 0, len(inputs))
	for i, in := range inputs {
		c, err := p.buildCodingLocked(in)
		if err != nil {
			if len(inputs) > 1 {
				return nil, fmt.Errorf("coding %d: %w", i, err)
			}
			return nil, err
		}
		built = append(built, c)
	}
	for _, c := range built {
		p.codings[c.ID] = c
	}
	return built, nil
}

func (p *Project) buildCodingLocked(in CodingInput) (models.Coding, error) {
	t, ok := p.transcripts[in.TranscriptID]
	if !ok {
		return models.Coding{}, fmt.Errorf("%w: %w: transcript %q", apperr.ErrValidation, apperr.ErrNotFound, in.TranscriptID)
	}
	if _, ok := p.codes[in.CodeID]; !ok {
		return models.Coding{}, fmt.Errorf("%w: %w: code %q", apperr.ErrValidation, apperr.ErrNotFound, in.CodeID)
	}
	text, err := checkSpan(t, in.Start, in.End, in.CodedText)
	if err != nil {
		return models.Coding{}, err
	}
	origin := in.Origin
	if origin == "" {
		origin = models.OriginManual
	}
	return models.Coding{
		ID:           p.newID(),
		TranscriptID: in.TranscriptID,
		CodeID:       in.CodeID,
		Start:        in.Start,
		End:          in.End,
		CodedText:    text,
		Origin:       origin,
		CreatedAt:    p.now(),
	}, nil
}

// Coding returns the coding with the given id.
func (p *Project) Coding(id string) (models.Coding, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.codings[id]
	if !ok {
		return models.Coding{}, fmt.Errorf("%w: coding %q", apperr.ErrNotFound, id)
	}
	return c, nil
}

// DeleteCoding removes a coding. Deleting an absent id is a no-op and
// reports false.
func (p *Project) DeleteCoding(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.codings[id]; !ok {
		return false
	}
	delete(p.codings, id)
	return true
}

// Reassign moves a coding to another code without touching its offsets.
func (p *Project) Reassign(codingID, newCodeID string) (models.Coding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.codings[codingID]
	if !ok {
		return models.Coding{}, fmt.Errorf("%w: coding %q", apperr.ErrNotFound, codingID)
	}
	if _, ok := p.codes[newCodeID]; !ok {
		return models.Coding{}, fmt.Errorf("%w: code %q", apperr.ErrNotFound, newCodeID)
	}
	c.CodeID = newCodeID
	p.codings[codingID] = c
	return c, nil
}

// MergeCode reassigns every coding of source to target and deletes source.
// Children of source move under target. When target sits below source it
// first takes source's place in the hierarchy, so no cycle forms. It returns
// the number of codings moved.
func (p *Project) MergeCode(sourceID, targetID string) (int, error) {
	if sourceID == targetID {
		return 0, fmt.Errorf("%w: cannot merge code %q into itself", apperr.ErrValidation, sourceID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.codes[sourceID]; !ok {
		return 0, fmt.Errorf("%w: source code %q", apperr.ErrNotFound, sourceID)
	}
	if _, ok := p.codes[targetID]; !ok {
		return 0, fmt.Errorf("%w: target code %q", apperr.ErrNotFound, targetID)
	}

	moved := 0
	for id, c := range p.codings {
		if c.CodeID == sourceID {
			c.CodeID = targetID
			p.codings[id] = c
			moved++
		}
	}
	source := p.codes[sourceID]
	if slices.Contains(descendants(p.codes, sourceID), targetID) {
		target := p.codes[targetID]
		target.ParentID = source.ParentID
		p.codes[targetID] = target
	}
	p.reparentChildrenLocked(sourceID, targetID)
	delete(p.codes, sourceID)
	return moved, nil
}

// CodingsFor returns the codings of one transcript, or of all transcripts
// when transcriptID is empty, ordered by position.
func (p *Project) CodingsFor(transcriptID string) []models.Coding {
	return p.filterCodings(func(c models.Coding) bool {
		return transcriptID == "" || c.TranscriptID == transcriptID
	})
}

// CodingsByCode returns the codings of one code, or all codings when codeID is empty.
func (p *Project) CodingsByCode(codeID string) []models.Coding {
	return p.filterCodings(func(c models.Coding) bool {
		return codeID == "" || c.CodeID == codeID
	})
}

func (p *Project) filterCodings(keep func(models.Coding) bool) []models.Coding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Coding, 0)
	for _, c := range p.codings {
		if keep(c) {
			out = append(out, c)
		}
	}
	sortCodings(out)
	return out
}

// InVivo creates a code named after the selected text and codes the
// selection with it. Both are created or neither is.
func (p *Project) InVivo(transcriptID string, start, end int, color string) (models.Code, models.Coding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.transcripts[transcriptID]
	if !ok {
		return models.Code{}, models.Coding{}, fmt.Errorf("%w: %w: transcript %q", apperr.ErrValidation, apperr.ErrNotFound, transcriptID)
	}
	text, err := checkSpan(t, start, end, "")
	if err != nil {
		return models.Code{}, models.Coding{}, err
	}
	label := inVivoLabel(text)
	if label == "" {
		return models.Code{}, models.Coding{}, fmt.Errorf("%w: in-vivo selection is blank", apperr.ErrValidation)
	}

	code, err := p.addCodeLocked(models.Code{Text: label, Color: color})
	if err != nil {
		return models.Code{}, models.Coding{}, err
	}
	coding, err := p.buildCodingLocked(CodingInput{
		TranscriptID: transcriptID,
		CodeID:       code.ID,
		Start:        start,
		End:          end,
		Origin:       models.OriginInVivo,
	})
	if err != nil {
		delete(p.codes, code.ID)
		return models.Code{}, models.Coding{}, err
	}
	p.codings[coding.ID] = coding
	return code, coding, nil
}

// SpreadToParagraph codes the whole paragraph containing a coding with the
// same code. It fails with apperr.ErrAlreadyExists when that span is already
// coded with the code.
func (p *Project) SpreadToParagraph(codingID string) (models.Coding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	src, ok := p.codings[codingID]
	if !ok {
		return models.Coding{}, fmt.Errorf("%w: coding %q", apperr.ErrNotFound, codingID)
	}
	t := p.transcripts[src.TranscriptID]

	var unit segment.Unit
	found := false
	for _, u := range segment.Split(t.Content, segment.Paragraph) {
		if src.Overlaps(u.Start, u.End) {
			unit, found = u, true
			break
		}
	}
	if !found || unit.End <= unit.Start {
		return models.Coding{}, fmt.Errorf("%w: coding %q is not inside a paragraph", apperr.ErrValidation, codingID)
	}

	for _, c := range p.codings {
		if c.TranscriptID == src.TranscriptID && c.CodeID == src.CodeID && c.Start == unit.Start && c.End == unit.End {
			return models.Coding{}, fmt.Errorf("%w: paragraph [%d,%d) already coded", apperr.ErrAlreadyExists, unit.Start, unit.End)
		}
	}

	c, err := p.buildCodingLocked(CodingInput{
		TranscriptID: src.TranscriptID,
		CodeID:       src.CodeID,
		Start:        unit.Start,
		End:          unit.End,
		Origin:       models.OriginSpread,
	})
	if err != nil {
		return models.Coding{}, err
	}
	p.codings[c.ID] = c
	return c, nil
}

func inVivoLabel(text string) string {
	label := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(label) <= inVivoMaxRunes {
		return label
	}
	r := []rune(label)
	return strings.TrimSpace(string(r[:inVivoMaxRunes]))
}

func sortCodings(cs []models.Coding) {
	slices.SortFunc(cs, func(a, b models.Coding) int {
		return cmp.Or(
			cmp.Compare(a.TranscriptID, b.TranscriptID),
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(a.End, b.End),
			cmp.Compare(a.CodeID, b.CodeID),
			cmp.Compare(a.ID, b.ID),
		)
	})
}
