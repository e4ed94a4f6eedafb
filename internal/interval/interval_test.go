package interval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
)

func TestCoveredChars(t *testing.T) {
	cases := []struct {
		name  string
		spans []Span
		want  int
	}{
		{"empty", nil, 0},
		{"single", []Span{{0, 10}}, 10},
		{"overlap", []Span{{0, 10}, {5, 15}}, 15},
		{"unsorted", []Span{{5, 15}, {0, 10}}, 15},
		{"disjoint", []Span{{0, 5}, {10, 12}}, 7},
		{"adjacent", []Span{{0, 5}, {5, 10}}, 10},
		{"contained", []Span{{0, 20}, {3, 7}, {8, 9}}, 20},
		{"offset start", []Span{{40, 50}}, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := CoveredChars(c.spans)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCoveredChars_RejectsInvalid(t *testing.T) {
	for _, s := range []Span{{5, 5}, {6, 2}} {
		_, err := CoveredChars([]Span{{0, 3}, s})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "err = %v", err)
	}
}

func TestCoveragePercent_DuplicatesDoNotDoubleCount(t *testing.T) {
	spans := []Span{{0, 10}, {5, 15}}
	p, err := CoveragePercent(spans, 20)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, p, 1e-9)

	dup := append(append([]Span{}, spans...), spans...)
	p2, err := CoveragePercent(dup, 20)
	require.NoError(t, err)
	assert.InDelta(t, p, p2, 1e-9)
}

func TestCoveragePercent_EmptyDocument(t *testing.T) {
	p, err := CoveragePercent(nil, 0)
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestMerge(t *testing.T) {
	got, err := Merge([]Span{{8, 12}, {0, 3}, {2, 5}, {5, 6}, {20, 21}})
	require.NoError(t, err)
	assert.Equal(t, []Span{{0, 6}, {8, 12}, {20, 21}}, got)

	covered, _ := CoveredChars([]Span{{8, 12}, {0, 3}, {2, 5}, {5, 6}, {20, 21}})
	sum := 0
	for _, s := range got {
		sum += s.Len()
	}
	assert.Equal(t, covered, sum)
}
