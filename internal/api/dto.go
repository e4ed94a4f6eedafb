package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/autocode"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/segment"
)

// CreateTranscriptRequest is the request body for adding a transcript.
type CreateTranscriptRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title" example:"Interview 01"`
	Content string `json:"content" example:"Q: How did it start?\nA: With a garden."`
	CaseID  string `json:"case_id,omitempty"`
}

// Validate validates the request.
func (r *CreateTranscriptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Length(0, 500)),
		validation.Field(&r.Content, validation.Required),
	)
}

// AssignCaseRequest sets or clears the case of a transcript.
type AssignCaseRequest struct {
	CaseID string `json:"case_id"`
}

// Validate validates the request. An empty case id clears the assignment.
func (r *AssignCaseRequest) Validate() error { return nil }

// CreateCaseRequest is the request body for adding a case.
type CreateCaseRequest struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name" example:"Anna"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate validates the request.
func (r *CreateCaseRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	)
}

// CreateCodeRequest is the request body for adding a code.
type CreateCodeRequest struct {
	ID       string `json:"id,omitempty"`
	Text     string `json:"text" example:"Belonging"`
	Color    string `json:"color,omitempty" example:"#4f9d69"`
	ParentID string `json:"parent_id,omitempty"`
}

// Validate validates the request.
func (r *CreateCodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required),
	)
}

// UpdateCodeRequest renames a code and optionally moves it. A nil ParentID
// keeps the current parent; an empty one makes the code a root.
type UpdateCodeRequest struct {
	Text     string  `json:"text"`
	Color    string  `json:"color,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
}

// Validate validates the request.
func (r *UpdateCodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Text, validation.Required),
	)
}

// MergeCodeRequest names the code that absorbs the codings.
type MergeCodeRequest struct {
	Target string `json:"target"`
}

// Validate validates the request.
func (r *MergeCodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Target, validation.Required),
	)
}

// CreateCodingRequest is the request body for coding a span.
type CreateCodingRequest struct {
	TranscriptID string `json:"transcript_id"`
	CodeID       string `json:"code_id"`
	Start        int    `json:"start" example:"0"`
	End          int    `json:"end" example:"42"`
	CodedText    string `json:"coded_text,omitempty"`
}

// Validate validates the request. Offsets are checked against the transcript
// by the project.
func (r *CreateCodingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TranscriptID, validation.Required),
		validation.Field(&r.CodeID, validation.Required),
		validation.Field(&r.Start, validation.Min(0)),
	)
}

// ReassignCodingRequest moves a coding to another code.
type ReassignCodingRequest struct {
	CodeID string `json:"code_id"`
}

// Validate validates the request.
func (r *ReassignCodingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CodeID, validation.Required),
	)
}

// InVivoRequest codes a span with a new code named after it.
type InVivoRequest struct {
	TranscriptID string `json:"transcript_id"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Color        string `json:"color,omitempty"`
}

// Validate validates the request.
func (r *InVivoRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.TranscriptID, validation.Required),
		validation.Field(&r.Start, validation.Min(0)),
	)
}

// InVivoResponse returns the created code and coding.
type InVivoResponse struct {
	Code   models.Code   `json:"code"`
	Coding models.Coding `json:"coding"`
}

// AutocodeRequest is the body of the preview and commit endpoints.
type AutocodeRequest struct {
	Pattern       string   `json:"pattern" example:"community"`
	Mode          string   `json:"mode,omitempty" example:"keyword" enums:"keyword,regex"`
	CodeID        string   `json:"code_id"`
	TranscriptIDs []string `json:"transcript_ids,omitempty"`
}

// Validate validates the request. Regex syntax is checked on compile.
func (r *AutocodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Pattern, validation.Required),
		validation.Field(&r.Mode, validation.In(string(autocode.Keyword), string(autocode.Regex))),
		validation.Field(&r.CodeID, validation.Required),
	)
}

func (r *AutocodeRequest) toDomain() autocode.Request {
	mode := autocode.Mode(r.Mode)
	if mode == "" {
		mode = autocode.Keyword
	}
	return autocode.Request{
		Pattern:       r.Pattern,
		Mode:          mode,
		CodeID:        r.CodeID,
		TranscriptIDs: r.TranscriptIDs,
	}
}

// DeleteResponse reports how many dependent codings a delete removed.
type DeleteResponse struct {
	Removed int `json:"removed"`
}

// MergeResponse reports how many codings moved.
type MergeResponse struct {
	Moved int `json:"moved"`
}

// TranscriptListItem omits transcript content from list responses.
type TranscriptListItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	CaseID  string `json:"case_id,omitempty"`
	Source  string `json:"source,omitempty"`
	Length  int    `json:"length"`
	Codings int    `json:"codings"`
}

// reliabilityModes lists accepted values of the mode query parameter.
var reliabilityModes = []any{string(segment.Paragraph), string(segment.Sentence)}
