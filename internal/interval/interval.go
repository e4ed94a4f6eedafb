// Package interval computes character coverage over half-open spans of one document.
package interval

import (
	"fmt"
	"slices"

	"github.com/starford/ansuz/internal/apperr"
)

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Validate rejects empty and inverted spans.
func (s Span) Validate() error {
	if s.End <= s.Start {
		return fmt.Errorf("%w: span end %d <= start %d", apperr.ErrValidation, s.End, s.Start)
	}
	return nil
}

// Len returns the span length.
func (s Span) Len() int {
	return s.End - s.Start
}

// CoveredChars returns the number of distinct positions covered by spans.
// Overlapping and duplicate spans are counted once.
func CoveredChars(spans []Span) (int, error) {
	sorted, err := sortedCopy(spans)
	if err != nil {
		return 0, err
	}

	total := 0
	maxEnd := 0
	for i, s := range sorted {
		lo := s.Start
		if i > 0 && maxEnd > lo {
			lo = maxEnd
		}
		if s.End > lo {
			total += s.End - lo
		}
		if i == 0 || s.End > maxEnd {
			maxEnd = s.End
		}
	}
	return total, nil
}

// CoveragePercent returns 100 * CoveredChars(spans) / totalLength, or 0 for an empty document.
func CoveragePercent(spans []Span, totalLength int) (float64, error) {
	covered, err := CoveredChars(spans)
	if err != nil {
		return 0, err
	}
	return Percent(covered, totalLength), nil
}

// Percent returns 100 * part / whole, or 0 when whole is not positive.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// Merge returns the union of spans as sorted, disjoint, non-adjacent spans.
func Merge(spans []Span) ([]Span, error) {
	sorted, err := sortedCopy(spans)
	if err != nil {
		return nil, err
	}
	var out []Span
	for _, s := range sorted {
		if n := len(out); n > 0 && s.Start <= out[n-1].End {
			if s.End > out[n-1].End {
				out[n-1].End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func sortedCopy(spans []Span) ([]Span, error) {
	for _, s := range spans {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b Span) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})
	return sorted, nil
}
