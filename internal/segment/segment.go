// Package segment splits transcript text into paragraph or sentence units
// used as the comparison granularity for reliability analysis.
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// Mode selects the unit granularity.
type Mode string

const (
	Paragraph Mode = "paragraph"
	Sentence  Mode = "sentence"
)

var (
	blankLineRe = regexp.MustCompile(`\n\s*\n`)
	sentenceRe  = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// ParseMode accepts "paragraph" and "sentence"; empty selects Paragraph.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Paragraph:
		return Paragraph, nil
	case Sentence:
		return Sentence, nil
	default:
		return "", fmt.Errorf("%w: unknown segmentation mode %q", apperr.ErrValidation, s)
	}
}

// Unit is a trimmed segment and its true position in the source text.
type Unit struct {
	Index int    `json:"index"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Split segments content according to mode. It never returns an empty slice:
// when no unit is found a single unit spans the whole content.
func Split(content string, mode Mode) []Unit {
	var parts []string
	switch mode {
	case Sentence:
		parts = sentenceRe.FindAllString(content, -1)
	default:
		parts = blankLineRe.Split(content, -1)
	}

	units := locate(content, parts)
	if len(units) == 0 {
		return []Unit{{Index: 0, Start: 0, End: len(content), Text: content}}
	}
	return units
}

// locate trims each part and finds it in content, searching forward from the
// end of the previous unit so repeated text maps to the right occurrence.
func locate(content string, parts []string) []Unit {
	var units []Unit
	cursor := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		i := strings.Index(content[cursor:], p)
		if i < 0 {
			continue
		}
		start := cursor + i
		end := start + len(p)
		units = append(units, Unit{Index: len(units), Start: start, End: end, Text: p})
		cursor = end
	}
	return units
}

// Containing returns the unit that contains offset, or false when offset
// falls between units.
func Containing(units []Unit, offset int) (Unit, bool) {
	for _, u := range units {
		if offset >= u.Start && offset < u.End {
			return u, true
		}
	}
	return Unit{}, false
}
