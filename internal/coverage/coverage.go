// Package coverage derives coverage percentages and frequency tables from a
// project snapshot.
package coverage

import (
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/interval"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/project"
)

// TranscriptStats describes how much of one transcript is coded.
type TranscriptStats struct {
	TranscriptID      string  `json:"transcript_id"`
	Title             string  `json:"title"`
	CaseID            string  `json:"case_id,omitempty"`
	CodedChars        int     `json:"coded_chars"`
	TotalChars        int     `json:"total_chars"`
	CoveragePercent   float64 `json:"coverage_percent"`
	CodingCount       int     `json:"coding_count"`
	DistinctCodeCount int     `json:"distinct_code_count"`
}

// CodeStats describes how often and how widely one code is applied.
type CodeStats struct {
	CodeID          string  `json:"code_id"`
	Text            string  `json:"text"`
	ParentID        string  `json:"parent_id,omitempty"`
	Frequency       int     `json:"frequency"`
	TranscriptCount int     `json:"transcript_count"`
	CodedChars      int     `json:"coded_chars"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// CaseStats aggregates the transcripts of one case.
type CaseStats struct {
	CaseID          string  `json:"case_id"`
	Name            string  `json:"name"`
	Transcripts     int     `json:"transcripts"`
	CodedChars      int     `json:"coded_chars"`
	TotalChars      int     `json:"total_chars"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// Summary is the project-wide union coverage.
type Summary struct {
	Transcripts     int     `json:"transcripts"`
	Codes           int     `json:"codes"`
	CodingCount     int     `json:"coding_count"`
	CodedChars      int     `json:"coded_chars"`
	TotalChars      int     `json:"total_chars"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// Report bundles every coverage view.
type Report struct {
	Summary     Summary           `json:"summary"`
	Transcripts []TranscriptStats `json:"transcripts"`
	Codes       []CodeStats       `json:"codes"`
	Cases       []CaseStats       `json:"cases"`
}

// Options tunes Build.
type Options struct {
	// IncludeDescendants rolls codings of child codes up into their ancestors.
	IncludeDescendants bool
}

// ForTranscript computes stats for t from its codings.
func ForTranscript(t models.Transcript, codings []models.Coding) (TranscriptStats, error) {
	spans := make([]interval.Span, 0, len(codings))
	distinct := make(map[string]struct{})
	for _, c := range codings {
		if c.TranscriptID != t.ID {
			continue
		}
		spans = append(spans, interval.Span{Start: c.Start, End: c.End})
		distinct[c.CodeID] = struct{}{}
	}
	covered, err := interval.CoveredChars(spans)
	if err != nil {
		return TranscriptStats{}, fmt.Errorf("transcript %q: %w", t.ID, err)
	}
	return TranscriptStats{
		TranscriptID:      t.ID,
		Title:             t.Title,
		CaseID:            t.CaseID,
		CodedChars:        covered,
		TotalChars:        t.Len(),
		CoveragePercent:   interval.Percent(covered, t.Len()),
		CodingCount:       len(spans),
		DistinctCodeCount: len(distinct),
	}, nil
}

// ForCode computes stats for one code against the total length of all transcripts.
func ForCode(s project.Snapshot, codeID string, includeDescendants bool) (CodeStats, error) {
	code, ok := s.CodeByID(codeID)
	if !ok {
		return CodeStats{}, fmt.Errorf("%w: code %q", apperr.ErrNotFound, codeID)
	}
	members := map[string]struct{}{codeID: {}}
	if includeDescendants {
		for _, d := range s.Descendants(codeID) {
			members[d] = struct{}{}
		}
	}

	perTranscript := make(map[string][]interval.Span)
	freq := 0
	for _, c := range s.Codings {
		if _, ok := members[c.CodeID]; !ok {
			continue
		}
		freq++
		perTranscript[c.TranscriptID] = append(perTranscript[c.TranscriptID], interval.Span{Start: c.Start, End: c.End})
	}

	coded := 0
	for tid, spans := range perTranscript {
		n, err := interval.CoveredChars(spans)
		if err != nil {
			return CodeStats{}, fmt.Errorf("code %q in transcript %q: %w", codeID, tid, err)
		}
		coded += n
	}
	return CodeStats{
		CodeID:          code.ID,
		Text:            code.Text,
		ParentID:        code.ParentID,
		Frequency:       freq,
		TranscriptCount: len(perTranscript),
		CodedChars:      coded,
		CoveragePercent: interval.Percent(coded, totalChars(s.Transcripts)),
	}, nil
}

// ProjectSummary computes union coverage over every coding of every transcript.
func ProjectSummary(s project.Snapshot) (Summary, error) {
	sum := Summary{
		Transcripts: len(s.Transcripts),
		Codes:       len(s.Codes),
		CodingCount: len(s.Codings),
		TotalChars:  totalChars(s.Transcripts),
	}
	for _, t := range s.Transcripts {
		ts, err := ForTranscript(t, s.CodingsFor(t.ID))
		if err != nil {
			return Summary{}, err
		}
		sum.CodedChars += ts.CodedChars
	}
	sum.CoveragePercent = interval.Percent(sum.CodedChars, sum.TotalChars)
	return sum, nil
}

// Build computes the full coverage report.
func Build(s project.Snapshot, opts Options) (Report, error) {
	r := Report{
		Transcripts: make([]TranscriptStats, 0, len(s.Transcripts)),
		Codes:       make([]CodeStats, 0, len(s.Codes)),
		Cases:       make([]CaseStats, 0, len(s.Cases)),
	}

	byCase := make(map[string]*CaseStats, len(s.Cases))
	for _, c := range s.Cases {
		r.Cases = append(r.Cases, CaseStats{CaseID: c.ID, Name: c.Name})
	}
	for i := range r.Cases {
		byCase[r.Cases[i].CaseID] = &r.Cases[i]
	}

	for _, t := range s.Transcripts {
		ts, err := ForTranscript(t, s.CodingsFor(t.ID))
		if err != nil {
			return Report{}, err
		}
		r.Transcripts = append(r.Transcripts, ts)
		r.Summary.CodedChars += ts.CodedChars
		if cs, ok := byCase[t.CaseID]; ok {
			cs.Transcripts++
			cs.CodedChars += ts.CodedChars
			cs.TotalChars += ts.TotalChars
		}
	}
	for i := range r.Cases {
		r.Cases[i].CoveragePercent = interval.Percent(r.Cases[i].CodedChars, r.Cases[i].TotalChars)
	}

	for _, c := range s.Codes {
		cs, err := ForCode(s, c.ID, opts.IncludeDescendants)
		if err != nil {
			return Report{}, err
		}
		r.Codes = append(r.Codes, cs)
	}

	r.Summary.Transcripts = len(s.Transcripts)
	r.Summary.Codes = len(s.Codes)
	r.Summary.CodingCount = len(s.Codings)
	r.Summary.TotalChars = totalChars(s.Transcripts)
	r.Summary.CoveragePercent = interval.Percent(r.Summary.CodedChars, r.Summary.TotalChars)
	return r, nil
}

func totalChars(ts []models.Transcript) int {
	n := 0
	for _, t := range ts {
		n += t.Len()
	}
	return n
}
