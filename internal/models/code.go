package models

import "time"

// Code is a theme or research question used to classify coded spans.
// Codes form a forest through ParentID.
type Code struct {
	ID        string    `json:"id" yaml:"id"`
	Text      string    `json:"text" yaml:"text"`
	Color     string    `json:"color,omitempty" yaml:"color,omitempty"`
	ParentID  string    `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// IsRoot reports whether the code has no parent.
func (c Code) IsRoot() bool {
	return c.ParentID == ""
}
