package models

import "time"

// Coding binds the half-open byte span [Start, End) of a transcript to a code.
type Coding struct {
	ID           string    `json:"id" yaml:"id"`
	TranscriptID string    `json:"transcript_id" yaml:"transcript_id"`
	CodeID       string    `json:"code_id" yaml:"code_id"`
	Start        int       `json:"start" yaml:"start"`
	End          int       `json:"end" yaml:"end"`
	CodedText    string    `json:"coded_text" yaml:"coded_text"`
	Origin       string    `json:"origin,omitempty" yaml:"origin,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// How a coding came to exist.
const (
	OriginManual = "manual"
	OriginAuto   = "auto"
	OriginInVivo = "in_vivo"
	OriginSpread = "spread"
)

// Overlaps reports whether the coding shares at least one byte with [start, end).
func (c Coding) Overlaps(start, end int) bool {
	return c.Start < end && c.End > start
}

// Len returns the span length.
func (c Coding) Len() int {
	return c.End - c.Start
}
