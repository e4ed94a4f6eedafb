package reliability

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/project"
	"github.com/starford/ansuz/internal/segment"
)

// Options selects the segmentation and the transcripts to compare.
// An empty Mode means paragraphs. An empty TranscriptIDs compares every
// transcript; repeated ids count once.
type Options struct {
	Mode          segment.Mode
	TranscriptIDs []string
}

// TranscriptResult is the per-transcript breakdown.
type TranscriptResult struct {
	TranscriptID string    `json:"transcript_id"`
	Title        string    `json:"title"`
	Units        int       `json:"units"`
	Table        Table     `json:"table"`
	Agreement    Agreement `json:"agreement"`
}

// Report is the aggregate agreement between two codes.
type Report struct {
	CodeA       string             `json:"code_a"`
	CodeB       string             `json:"code_b"`
	Mode        segment.Mode       `json:"mode"`
	Table       Table              `json:"table"`
	Agreement   Agreement          `json:"agreement"`
	Transcripts []TranscriptResult `json:"transcripts"`
}

// Analyze compares codes a and b unit by unit across the snapshot's transcripts.
func Analyze(s project.Snapshot, codeA, codeB string, opts Options) (Report, error) {
	if codeA == codeB {
		return Report{}, fmt.Errorf("%w: reliability needs two different codes, got %q twice", apperr.ErrValidation, codeA)
	}
	for _, id := range []string{codeA, codeB} {
		if _, ok := s.CodeByID(id); !ok {
			return Report{}, fmt.Errorf("%w: code %q", apperr.ErrNotFound, id)
		}
	}
	countA, countB := 0, 0
	for _, c := range s.Codings {
		switch c.CodeID {
		case codeA:
			countA++
		case codeB:
			countB++
		}
	}
	if countA == 0 || countB == 0 {
		return Report{}, fmt.Errorf("%w: both codes need at least one coding (%q: %d, %q: %d)",
			apperr.ErrValidation, codeA, countA, codeB, countB)
	}

	mode, err := segment.ParseMode(string(opts.Mode))
	if err != nil {
		return Report{}, err
	}
	transcripts, err := selectTranscripts(s, opts.TranscriptIDs)
	if err != nil {
		return Report{}, err
	}

	r := Report{CodeA: codeA, CodeB: codeB, Mode: mode, Transcripts: make([]TranscriptResult, 0, len(transcripts))}
	for _, t := range transcripts {
		tr := compareTranscript(t, s.CodingsFor(t.ID), codeA, codeB, mode)
		r.Table = r.Table.Plus(tr.Table)
		r.Transcripts = append(r.Transcripts, tr)
	}
	r.Agreement = Kappa(r.Table)
	return r, nil
}

func compareTranscript(t models.Transcript, codings []models.Coding, codeA, codeB string, mode segment.Mode) TranscriptResult {
	units := segment.Split(t.Content, mode)
	var tbl Table
	for _, u := range units {
		hasA, hasB := false, false
		for _, c := range codings {
			if !c.Overlaps(u.Start, u.End) {
				continue
			}
			switch c.CodeID {
			case codeA:
				hasA = true
			case codeB:
				hasB = true
			}
		}
		tbl.Add(hasA, hasB)
	}
	return TranscriptResult{
		TranscriptID: t.ID,
		Title:        t.Title,
		Units:        len(units),
		Table:        tbl,
		Agreement:    Kappa(tbl),
	}
}

func selectTranscripts(s project.Snapshot, ids []string) ([]models.Transcript, error) {
	if len(ids) == 0 {
		return s.Transcripts, nil
	}
	byID := make(map[string]models.Transcript, len(s.Transcripts))
	for _, t := range s.Transcripts {
		byID[t.ID] = t
	}
	out := make([]models.Transcript, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: transcript %q", apperr.ErrNotFound, id)
		}
		out = append(out, t)
	}
	return out, nil
}
