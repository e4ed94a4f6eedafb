// Package autocode scans transcripts for keyword or regular-expression
// matches and turns them into codings.
package autocode

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/project"
)

// Mode selects how Pattern is interpreted.
type Mode string

const (
	Keyword Mode = "keyword"
	Regex   Mode = "regex"
)

// DefaultPreviewLimit caps the matches returned by Preview. Commit is never capped.
const DefaultPreviewLimit = 50

const contextChars = 40

// Request describes one auto-coding run. An empty TranscriptIDs scans every
// transcript of the project.
type Request struct {
	Pattern       string   `json:"pattern"`
	Mode          Mode     `json:"mode"`
	CodeID        string   `json:"code_id"`
	TranscriptIDs []string `json:"transcript_ids,omitempty"`
}

// Match is one pattern hit.
type Match struct {
	TranscriptID string `json:"transcript_id"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Text         string `json:"text"`
	Before       string `json:"before"`
	After        string `json:"after"`
}

// Preview lists matches without creating codings.
type Preview struct {
	Matches   []Match `json:"matches"`
	Total     int     `json:"total"`
	Truncated bool    `json:"truncated"`
}

// Result reports the outcome of Commit.
type Result struct {
	Created int `json:"created"`
}

// Coder runs auto-coding against one project.
type Coder struct {
	project      *project.Project
	previewLimit int
}

// Option configures a Coder.
type Option func(*Coder)

// WithPreviewLimit sets the Preview cap; values below 1 keep the default.
func WithPreviewLimit(n int) Option {
	return func(c *Coder) {
		if n > 0 {
			c.previewLimit = n
		}
	}
}

// New creates a Coder for p.
func New(p *project.Project, opts ...Option) *Coder {
	c := &Coder{project: p, previewLimit: DefaultPreviewLimit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the case-insensitive matcher for pattern. Keywords are
// matched literally.
func Compile(pattern string, mode Mode) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: pattern is required", apperr.ErrValidation)
	}
	switch mode {
	case Keyword, "":
		return regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern)), nil
	case Regex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrPattern, err)
		}
		return re, nil
	default:
		return nil, fmt.Errorf("%w: unknown auto-code mode %q", apperr.ErrValidation, mode)
	}
}

// FindSpans returns every non-empty, non-overlapping match of re in content.
// Scanning resumes at the end of the previous match.
func FindSpans(re *regexp.Regexp, content string) [][2]int {
	var out [][2]int
	for _, loc := range re.FindAllStringIndex(content, -1) {
		if loc[1] > loc[0] {
			out = append(out, [2]int{loc[0], loc[1]})
		}
	}
	return out
}

// Preview returns up to the preview limit of matches and the total count.
func (c *Coder) Preview(req Request) (Preview, error) {
	matches, err := c.scan(req)
	if err != nil {
		return Preview{}, err
	}
	p := Preview{Total: len(matches), Matches: matches}
	if len(matches) > c.previewLimit {
		p.Matches = matches[:c.previewLimit]
		p.Truncated = true
	}
	if p.Matches == nil {
		p.Matches = []Match{}
	}
	return p, nil
}

// Commit creates one coding per match. Invalid patterns, unknown codes and
// unknown transcripts fail before anything is created.
func (c *Coder) Commit(req Request) (Result, error) {
	matches, err := c.scan(req)
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		return Result{}, nil
	}
	inputs := make([]project.CodingInput, len(matches))
	for i, m := range matches {
		inputs[i] = project.CodingInput{
			TranscriptID: m.TranscriptID,
			CodeID:       req.CodeID,
			Start:        m.Start,
			End:          m.End,
			CodedText:    m.Text,
			Origin:       models.OriginAuto,
		}
	}
	created, err := c.project.CreateCodings(inputs)
	if err != nil {
		return Result{}, err
	}
	return Result{Created: len(created)}, nil
}

func (c *Coder) scan(req Request) ([]Match, error) {
	re, err := Compile(req.Pattern, req.Mode)
	if err != nil {
		return nil, err
	}
	if _, err := c.project.Code(req.CodeID); err != nil {
		return nil, err
	}
	transcripts, err := c.targets(req.TranscriptIDs)
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, t := range transcripts {
		for _, span := range FindSpans(re, t.Content) {
			out = append(out, Match{
				TranscriptID: t.ID,
				Start:        span[0],
				End:          span[1],
				Text:         t.Content[span[0]:span[1]],
				Before:       before(t.Content, span[0]),
				After:        after(t.Content, span[1]),
			})
		}
	}
	return out, nil
}

func (c *Coder) targets(ids []string) ([]models.Transcript, error) {
	if len(ids) == 0 {
		return c.project.Transcripts(), nil
	}
	out := make([]models.Transcript, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		t, err := c.project.Transcript(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// before returns up to contextChars bytes preceding i, cut at a rune boundary.
func before(s string, i int) string {
	lo := max(0, i-contextChars)
	for lo < i && !utf8.RuneStart(s[lo]) {
		lo++
	}
	return strings.TrimLeft(s[lo:i], " \t\r\n")
}

// after returns up to contextChars bytes following i, cut at a rune boundary.
func after(s string, i int) string {
	hi := min(len(s), i+contextChars)
	for hi > i && hi < len(s) && !utf8.RuneStart(s[hi]) {
		hi--
	}
	return strings.TrimRight(s[i:hi], " \t\r\n")
}
