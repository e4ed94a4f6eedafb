// Package models defines the domain types for Ansuz.
package models

import "time"

// Transcript is an imported interview or document whose content is coded.
// Content is immutable once the transcript is part of a project.
type Transcript struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	CaseID    string    `json:"case_id,omitempty" yaml:"case_id,omitempty"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"` // import path, if any
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Len returns the content length in bytes, the unit of every coding offset.
func (t Transcript) Len() int {
	return len(t.Content)
}

// Case groups transcripts, typically one participant or site.
type Case struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}
