package project

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func testProject(t *testing.T) *Project {
	t.Helper()
	n := 0
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return New("p1", "Study",
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		}),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
}

func mustTranscript(t *testing.T, p *Project, id, content string) models.Transcript {
	t.Helper()
	tr, err := p.AddTranscript(models.Transcript{ID: id, Title: id, Content: content})
	require.NoError(t, err)
	return tr
}

func mustCode(t *testing.T, p *Project, id, text string) models.Code {
	t.Helper()
	c, err := p.AddCode(models.Code{ID: id, Text: text})
	require.NoError(t, err)
	return c
}

func TestCreateCoding(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "We talked about sustainability and cost.")
	mustCode(t, p, "c1", "Sustainability")

	c, err := p.CreateCoding("t1", "c1", 16, 30, "")
	require.NoError(t, err)
	assert.Equal(t, "sustainability", c.CodedText)
	assert.Equal(t, models.OriginManual, c.Origin)
	assert.False(t, c.CreatedAt.IsZero())

	_, err = p.CreateCoding("t1", "c1", 16, 30, "sustainability")
	require.NoError(t, err)
	assert.Len(t, p.CodingsFor("t1"), 2)
}

func TestCreateCoding_Validation(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "0123456789")
	mustCode(t, p, "c1", "Digits")

	cases := []struct {
		name         string
		tid, cid     string
		start, end   int
		text         string
		alsoNotFound bool
	}{
		{"start equals end", "t1", "c1", 4, 4, "", false},
		{"start after end", "t1", "c1", 5, 2, "", false},
		{"negative start", "t1", "c1", -1, 3, "", false},
		{"end past content", "t1", "c1", 5, 11, "", false},
		{"text mismatch", "t1", "c1", 0, 3, "abc", false},
		{"unknown transcript", "tx", "c1", 0, 3, "", true},
		{"unknown code", "t1", "cx", 0, 3, "", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := p.CreateCoding(c.tid, c.cid, c.start, c.end, c.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "err = %v", err)
			assert.Equal(t, c.alsoNotFound, errors.Is(err, apperr.ErrNotFound))
		})
	}
	assert.Empty(t, p.CodingsFor(""))
}

func TestCreateCodings_AllOrNothing(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "abcdef")
	mustCode(t, p, "c1", "Letters")

	_, err := p.CreateCodings([]CodingInput{
		{TranscriptID: "t1", CodeID: "c1", Start: 0, End: 2},
		{TranscriptID: "t1", CodeID: "c1", Start: 3, End: 99},
	})
	require.Error(t, err)
	assert.Empty(t, p.CodingsFor("t1"))
}

func TestDeleteCoding_Idempotent(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "abcdef")
	mustCode(t, p, "c1", "Letters")
	c, err := p.CreateCoding("t1", "c1", 0, 3, "")
	require.NoError(t, err)

	assert.True(t, p.DeleteCoding(c.ID))
	assert.False(t, p.DeleteCoding(c.ID))
	assert.False(t, p.DeleteCoding("never-existed"))
	assert.Empty(t, p.CodingsFor(""))
}

func TestReassign(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "abcdef")
	mustCode(t, p, "a", "A")
	mustCode(t, p, "b", "B")
	c, _ := p.CreateCoding("t1", "a", 1, 4, "")

	got, err := p.Reassign(c.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.CodeID)
	assert.Equal(t, 1, got.Start)
	assert.Equal(t, 4, got.End)

	_, err = p.Reassign(c.ID, "zzz")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = p.Reassign("nope", "a")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMergeCode(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", strings.Repeat("x", 50))
	mustCode(t, p, "a", "A")
	mustCode(t, p, "b", "B")
	_, err := p.AddCode(models.Code{ID: "a-child", Text: "A child", ParentID: "a"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.CreateCoding("t1", "a", i*10, i*10+5, "")
		require.NoError(t, err)
	}
	_, err = p.CreateCoding("t1", "b", 40, 45, "")
	require.NoError(t, err)

	before := len(p.CodingsByCode("b"))
	sourceSize := len(p.CodingsByCode("a"))

	moved, err := p.MergeCode("a", "b")
	require.NoError(t, err)
	assert.Equal(t, sourceSize, moved)
	assert.Empty(t, p.CodingsByCode("a"))
	assert.Len(t, p.CodingsByCode("b"), before+sourceSize)

	_, err = p.Code("a")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	child, err := p.Code("a-child")
	require.NoError(t, err)
	assert.Equal(t, "b", child.ParentID)
}

func TestMergeCode_TargetBelowSource(t *testing.T) {
	p := testProject(t)
	mustCode(t, p, "root", "Root")
	for _, c := range []models.Code{
		{ID: "src", Text: "Source", ParentID: "root"},
		{ID: "mid", Text: "Mid", ParentID: "src"},
		{ID: "dst", Text: "Target", ParentID: "mid"},
		{ID: "side", Text: "Side", ParentID: "src"},
	} {
		_, err := p.AddCode(c)
		require.NoError(t, err)
	}

	_, err := p.MergeCode("src", "dst")
	require.NoError(t, err)

	parents := map[string]string{}
	for _, c := range p.Codes() {
		parents[c.ID] = c.ParentID
	}
	assert.Equal(t, map[string]string{
		"root": "",
		"dst":  "root",
		"mid":  "dst",
		"side": "dst",
	}, parents)
	assert.ElementsMatch(t, []string{"mid", "side"}, p.Descendants("dst"))
}

func TestUpdateCode(t *testing.T) {
	p := testProject(t)
	mustCode(t, p, "parent", "Parent")
	mustCode(t, p, "c", "Child")

	got, err := p.UpdateCode("c", "Renamed", "#abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Text)
	assert.True(t, got.IsRoot())

	parent := "parent"
	got, err = p.UpdateCode("c", "Renamed", "", &parent)
	require.NoError(t, err)
	assert.Equal(t, "parent", got.ParentID)

	root := ""
	got, err = p.UpdateCode("c", "Renamed", "", &root)
	require.NoError(t, err)
	assert.True(t, got.IsRoot())

	_, err = p.UpdateCode("missing", "X", "", nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateCode_RejectedUpdateChangesNothing(t *testing.T) {
	p := testProject(t)
	mustCode(t, p, "parent", "Parent")
	mustCode(t, p, "c", "Child")
	parent := "parent"

	_, err := p.UpdateCode("c", "Child", "not-a-color", &parent)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	c, err := p.Code("c")
	require.NoError(t, err)
	assert.True(t, c.IsRoot(), "invalid color must not move the code")
	assert.Empty(t, c.Color)

	require.NoError(t, p.SetCodeParent("c", "parent"))
	_, err = p.UpdateCode("parent", "Other", "", ptr("c"))
	assert.True(t, errors.Is(err, apperr.ErrValidation), "cycle must be rejected")

	pc, err := p.Code("parent")
	require.NoError(t, err)
	assert.Equal(t, "Parent", pc.Text)
	assert.True(t, pc.IsRoot())
}

func ptr(s string) *string { return &s }

func TestMergeCode_Failures(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "abcdef")
	mustCode(t, p, "a", "A")
	_, _ = p.CreateCoding("t1", "a", 0, 2, "")

	_, err := p.MergeCode("a", "a")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = p.MergeCode("a", "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	// Nothing changed.
	assert.Len(t, p.CodingsByCode("a"), 1)
	_, err = p.Code("a")
	assert.NoError(t, err)
}

func TestDeleteTranscript_Cascades(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "abcdef")
	mustTranscript(t, p, "t2", "ghijkl")
	mustCode(t, p, "a", "A")
	_, _ = p.CreateCoding("t1", "a", 0, 2, "")
	_, _ = p.CreateCoding("t1", "a", 2, 4, "")
	_, _ = p.CreateCoding("t2", "a", 0, 2, "")

	removed, err := p.DeleteTranscript("t1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Empty(t, p.CodingsFor("t1"))
	assert.Len(t, p.CodingsFor(""), 1)

	_, err = p.DeleteTranscript("t1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeleteCode_CascadesAndReparents(t *testing.T) {
	p := testProject(t)
	mustTranscript(t, p, "t1", "abcdef")
	mustCode(t, p, "root", "Root")
	_, err := p.AddCode(models.Code{ID: "kid", Text: "Kid", ParentID: "root"})
	require.NoError(t, err)
	_, _ = p.CreateCoding("t1", "root", 0, 2, "")
	_, _ = p.CreateCoding("t1", "kid", 2, 4, "")

	removed, err := p.DeleteCode("root")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	kid, err := p.Code("kid")
	require.NoError(t, err)
	assert.Equal(t, "", kid.ParentID)
	assert.Len(t, p.CodingsFor("t1"), 1)
}

func TestSetCodeParent_RejectsCycles(t *testing.T) {
	p := testProject(t)
	mustCode(t, p, "a", "A")
	_, _ = p.AddCode(models.Code{ID: "b", Text: "B", ParentID: "a"})
	_, _ = p.AddCode(models.Code{ID: "c", Text: "C", ParentID: "b"})

	err := p.SetCodeParent("a", "c")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	err = p.SetCodeParent("a", "a")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	assert.Equal(t, []string{"b", "c"}, p.Descendants("a"))
	require.NoError(t, p.SetCodeParent("c", ""))
	assert.Equal(t, []string{"b"}, p.Descendants("a"))
	assert.Len(t, p.Children("a"), 1)
}

func TestAddCode_Validation(t *testing.T) {
	p := testProject(t)
	_, err := p.AddCode(models.Code{Text: ""})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = p.AddCode(models.Code{Text: "Ok", Color: "blue"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = p.AddCode(models.Code{Text: "Ok", ParentID: "ghost"})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	c, err := p.AddCode(models.Code{Text: "Ok", Color: "#a1b2c3"})
	require.NoError(t, err)
	_, err = p.AddCode(models.Code{ID: c.ID, Text: "Dup"})
	assert.True(t, errors.Is(err, apperr.ErrAlreadyExists))
}

func TestCases(t *testing.T) {
	p := testProject(t)
	cs, err := p.AddCase(models.Case{Name: "Site A", Attributes: map[string]string{"region": "north"}})
	require.NoError(t, err)
	_, err = p.AddTranscript(models.Transcript{ID: "t1", Content: "x", CaseID: cs.ID})
	require.NoError(t, err)
	mustTranscript(t, p, "t2", "y")
	require.NoError(t, p.AssignCase("t2", cs.ID))

	require.NoError(t, p.DeleteCase(cs.ID))
	for _, tr := range p.Transcripts() {
		assert.Empty(t, tr.CaseID)
	}
	_, err = p.AddCase(models.Case{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestInVivo(t *testing.T) {
	p := testProject(t)
	content := "It felt like   a real community hub."
	mustTranscript(t, p, "t1", content)

	code, coding, err := p.InVivo("t1", 13, 35, "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, "a real community hub", code.Text)
	assert.Equal(t, code.ID, coding.CodeID)
	assert.Equal(t, models.OriginInVivo, coding.Origin)
	assert.Equal(t, content[13:35], coding.CodedText)

	_, _, err = p.InVivo("t1", 12, 13, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Len(t, p.Codes(), 1)
}

func TestSpreadToParagraph(t *testing.T) {
	p := testProject(t)
	content := "Intro line.\n\nWe grew vegetables together. It mattered.\n\nOutro."
	mustTranscript(t, p, "t1", content)
	mustCode(t, p, "a", "Gardening")

	start := strings.Index(content, "vegetables")
	c, err := p.CreateCoding("t1", "a", start, start+len("vegetables"), "")
	require.NoError(t, err)

	spread, err := p.SpreadToParagraph(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "We grew vegetables together. It mattered.", spread.CodedText)
	assert.Equal(t, models.OriginSpread, spread.Origin)

	_, err = p.SpreadToParagraph(c.ID)
	assert.True(t, errors.Is(err, apperr.ErrAlreadyExists))
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := testProject(t)
	cs, _ := p.AddCase(models.Case{Name: "Household 1"})
	_, _ = p.AddTranscript(models.Transcript{ID: "t1", Content: "hello world", CaseID: cs.ID})
	mustCode(t, p, "parent", "Parent")
	_, _ = p.AddCode(models.Code{ID: "child", Text: "Child", ParentID: "parent"})
	_, _ = p.CreateCoding("t1", "child", 0, 5, "")

	snap := p.Snapshot()
	// Children listed before parents must still restore.
	snap.Codes[0], snap.Codes[1] = snap.Codes[1], snap.Codes[0]

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, p.Snapshot(), restored.Snapshot())
}

func TestFromSnapshot_RejectsBrokenReferences(t *testing.T) {
	snap := Snapshot{
		ID:          "p",
		Transcripts: []models.Transcript{{ID: "t1", Content: "abc"}},
		Codes:       []models.Code{{ID: "c1", Text: "C"}},
		Codings:     []models.Coding{{ID: "x", TranscriptID: "t1", CodeID: "c1", Start: 0, End: 9}},
	}
	_, err := FromSnapshot(snap)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	snap.Codings[0] = models.Coding{ID: "x", TranscriptID: "t1", CodeID: "zz", Start: 0, End: 1}
	_, err = FromSnapshot(snap)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateTranscript(t *testing.T) {
	p := testProject(t)
	orig := mustTranscript(t, p, "t1", "first draft")

	updated, err := p.UpdateTranscript(models.Transcript{ID: "t1", Title: "Renamed", Content: "second draft"})
	require.NoError(t, err)
	assert.Equal(t, "second draft", updated.Content)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)

	mustCode(t, p, "c1", "Draft")
	_, err = p.CreateCoding("t1", "c1", 0, 6, "")
	require.NoError(t, err)

	_, err = p.UpdateTranscript(models.Transcript{ID: "t1", Title: "Again", Content: "third draft"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = p.UpdateTranscript(models.Transcript{ID: "t1", Title: "Title only", Content: "second draft"})
	require.NoError(t, err)
	got, _ := p.Transcript("t1")
	assert.Equal(t, "Title only", got.Title)

	_, err = p.UpdateTranscript(models.Transcript{ID: "missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
