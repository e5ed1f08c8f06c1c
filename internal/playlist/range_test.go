package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		total      int
		want       []int
	}{
		{name: "ascending", start: 1, end: 5, want: []int{1, 2, 3, 4, 5}},
		{name: "descending", start: 5, end: 2, want: []int{5, 4, 3, 2}},
		{name: "single", start: 3, end: 3, want: []int{3}},
		{name: "last seven newest first", start: -1, end: -7, total: 20, want: []int{20, 19, 18, 17, 16, 15, 14}},
		{name: "negative written ascending", start: -7, end: -1, total: 20, want: []int{20, 19, 18, 17, 16, 15, 14}},
		{name: "last item", start: -1, end: -1, total: 9, want: []int{9}},
		{name: "negative clamped to playlist", start: -1, end: -10, total: 4, want: []int{4, 3, 2, 1}},
		{name: "positive clamped to playlist", start: 3, end: 8, total: 5, want: []int{3, 4, 5}},
		{name: "positive beyond playlist", start: 7, end: 9, total: 5, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.start, tt.end)
			require.NoError(t, err)

			got, err := r.Resolve(tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNegativeRangesStayInBounds(t *testing.T) {
	for total := 1; total <= 30; total++ {
		for start := -1; start >= -12; start-- {
			for end := -1; end >= -12; end-- {
				r := Range{Start: start, End: end}
				got, err := r.Resolve(total)
				require.NoError(t, err)

				for i, idx := range got {
					assert.GreaterOrEqual(t, idx, 1)
					assert.LessOrEqual(t, idx, total)
					if i > 0 {
						assert.Less(t, idx, got[i-1], "negative ranges are newest-first")
					}
				}
				assert.LessOrEqual(t, len(got), r.Count())
			}
		}
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, 7, Range{Start: -1, End: -7}.Count())
	assert.Equal(t, 5, Range{Start: 1, End: 5}.Count())
	assert.Equal(t, 4, Range{Start: 5, End: 2}.Count())
}

func TestNeedsCount(t *testing.T) {
	assert.True(t, Range{Start: -1, End: -3}.NeedsCount())
	assert.False(t, Range{Start: 1, End: 3}.NeedsCount())

	_, err := Range{Start: -1, End: -3}.Resolve(0)
	assert.Error(t, err)
}

func TestNewRejectsInvalidBounds(t *testing.T) {
	_, err := New(0, 4)
	assert.ErrorIs(t, err, ErrZeroBound)

	_, err = New(-1, 4)
	assert.ErrorIs(t, err, ErrMixedSigns)
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "", Selector(nil))
	assert.Equal(t, "4", Selector([]int{4}))
	assert.Equal(t, "2:5", Selector([]int{2, 3, 4, 5}))
	assert.Equal(t, "20:14:-1", Selector([]int{20, 19, 18, 17, 16, 15, 14}))

	sel, err := Range{Start: -1, End: -3}.ItemSelector(10)
	require.NoError(t, err)
	assert.Equal(t, "10:8:-1", sel)
}
