// Package parser extracts YAML front matter and a display title from
// transcript files.
package parser

import (
	"bytes"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Meta is the recognised front matter of a transcript file.
type Meta struct {
	Title      string            `yaml:"title"`
	Case       string            `yaml:"case"`
	Attributes map[string]string `yaml:"attributes"`
}

// Result holds the output of parsing a transcript file.
type Result struct {
	Meta  Meta
	Body  string
	Title string
}

// Parse splits front matter from the transcript body and derives a title.
// Unknown front matter keys are ignored. Offsets of later codings refer to
// Body, so the body is returned as-is apart from the stripped header.
func Parse(name string, data []byte) (*Result, error) {
	meta, body := splitFrontmatter(data)
	return &Result{
		Meta:  meta,
		Body:  body,
		Title: deriveTitle(meta, body, name),
	}, nil
}

// splitFrontmatter separates YAML front matter (between leading --- delimiters)
// from the body. If no valid front matter is found the entire content is body.
func splitFrontmatter(data []byte) (Meta, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return Meta{}, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return Meta{}, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var meta Meta
	if err := yaml.Unmarshal(yamlBlock, &meta); err != nil {
		return Meta{}, string(data)
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Case = strings.TrimSpace(meta.Case)
	return meta, body
}

// deriveTitle returns the front matter title, then the first Markdown H1,
// then the file name without extension.
func deriveTitle(meta Meta, body, name string) string {
	if meta.Title != "" {
		return meta.Title
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}
