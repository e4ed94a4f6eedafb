package project

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// AddCode adds a code. An empty ID is generated; a non-empty ParentID must exist.
func (p *Project) AddCode(c models.Code) (models.Code, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addCodeLocked(c)
}

func (p *Project) addCodeLocked(c models.Code) (models.Code, error) {
	if err := validateCode(c); err != nil {
		return models.Code{}, err
	}
	if c.ID == "" {
		c.ID = p.newID()
	}
	if _, ok := p.codes[c.ID]; ok {
		return models.Code{}, fmt.Errorf("%w: code %q", apperr.ErrAlreadyExists, c.ID)
	}
	if c.ParentID != "" {
		if _, ok := p.codes[c.ParentID]; !ok {
			return models.Code{}, fmt.Errorf("%w: parent code %q", apperr.ErrNotFound, c.ParentID)
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = p.now()
	}
	p.codes[c.ID] = c
	return c, nil
}

// Code returns the code with the given id.
func (p *Project) Code(id string) (models.Code, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.codes[id]
	if !ok {
		return models.Code{}, fmt.Errorf("%w: code %q", apperr.ErrNotFound, id)
	}
	return c, nil
}

// Codes returns all codes ordered by creation time and text.
func (p *Project) Codes() []models.Code {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedCodes(p.codes)
}

// SetCodeParent moves a code under parentID; an empty parentID makes it a root.
// Moves that would create a cycle are rejected.
func (p *Project) SetCodeParent(id, parentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.codes[id]
	if !ok {
		return fmt.Errorf("%w: code %q", apperr.ErrNotFound, id)
	}
	if err := p.checkParentLocked(id, parentID); err != nil {
		return err
	}
	c.ParentID = parentID
	p.codes[id] = c
	return nil
}

// UpdateCode sets the text and color of a code and, when parentID is not
// nil, moves it under *parentID. Everything is validated before anything
// changes.
func (p *Project) UpdateCode(id, text, color string, parentID *string) (models.Code, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.codes[id]
	if !ok {
		return models.Code{}, fmt.Errorf("%w: code %q", apperr.ErrNotFound, id)
	}
	c.Text = text
	c.Color = color
	if err := validateCode(c); err != nil {
		return models.Code{}, err
	}
	if parentID != nil {
		if err := p.checkParentLocked(id, *parentID); err != nil {
			return models.Code{}, err
		}
		c.ParentID = *parentID
	}
	p.codes[id] = c
	return c, nil
}

// checkParentLocked reports whether id may be placed under parentID.
func (p *Project) checkParentLocked(id, parentID string) error {
	if parentID == "" {
		return nil
	}
	if _, ok := p.codes[parentID]; !ok {
		return fmt.Errorf("%w: parent code %q", apperr.ErrNotFound, parentID)
	}
	for cur := parentID; cur != ""; cur = p.codes[cur].ParentID {
		if cur == id {
			return fmt.Errorf("%w: moving code %q under %q creates a cycle", apperr.ErrValidation, id, parentID)
		}
	}
	return nil
}

// DeleteCode removes a code and every coding that uses it. Children of the
// code become roots. It returns the number of codings removed.
func (p *Project) DeleteCode(id string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.codes[id]; !ok {
		return 0, fmt.Errorf("%w: code %q", apperr.ErrNotFound, id)
	}
	removed := 0
	for cid, c := range p.codings {
		if c.CodeID == id {
			delete(p.codings, cid)
			removed++
		}
	}
	p.detachChildrenLocked(id)
	delete(p.codes, id)
	return removed, nil
}

// Children returns the direct children of a code.
func (p *Project) Children(id string) []models.Code {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []models.Code
	for _, c := range p.codes {
		if c.ParentID == id && id != "" {
			out = append(out, c)
		}
	}
	sortCodes(out)
	return out
}

// Descendants returns the ids of all codes below id in the hierarchy.
func (p *Project) Descendants(id string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return descendants(p.codes, id)
}

func (p *Project) detachChildrenLocked(id string) {
	p.reparentChildrenLocked(id, "")
}

func (p *Project) reparentChildrenLocked(id, parentID string) {
	for cid, c := range p.codes {
		if c.ParentID == id {
			c.ParentID = parentID
			p.codes[cid] = c
		}
	}
}

func descendants(codes map[string]models.Code, id string) []string {
	children := make(map[string][]string, len(codes))
	for _, c := range codes {
		if c.ParentID != "" {
			children[c.ParentID] = append(children[c.ParentID], c.ID)
		}
	}
	var out []string
	queue := slices.Clone(children[id])
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		queue = append(queue, children[cur]...)
	}
	slices.Sort(out)
	return out
}

func sortedCodes(m map[string]models.Code) []models.Code {
	out := make([]models.Code, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sortCodes(out)
	return out
}

func sortCodes(cs []models.Code) {
	slices.SortFunc(cs, func(a, b models.Code) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Text, b.Text), cmp.Compare(a.ID, b.ID))
	})
}
