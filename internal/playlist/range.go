// Package playlist resolves user supplied playlist bounds into concrete
// 1-based item indices.
//
// Positive bounds are used as given, ascending or descending. Negative bounds
// count from the end of the playlist and can only be resolved after the
// total count is known, so resolution is two-phase: build a Range, ask
// NeedsCount, probe if required, then call Resolve.
package playlist

import (
	"errors"
	"fmt"
)

// ErrMixedSigns is returned for ranges with one positive and one negative bound.
var ErrMixedSigns = errors.New("playlist bounds must share a sign")

// ErrZeroBound is returned when either bound is zero.
var ErrZeroBound = errors.New("playlist bounds must be non-zero")

// Range is a symbolic playlist range.
type Range struct {
	Start int
	End   int
}

// New validates and returns a Range.
func New(start, end int) (Range, error) {
	if start == 0 || end == 0 {
		return Range{}, ErrZeroBound
	}
	if (start < 0) != (end < 0) {
		return Range{}, ErrMixedSigns
	}
	return Range{Start: start, End: end}, nil
}

// NeedsCount reports whether Resolve requires the playlist length.
func (r Range) NeedsCount() bool {
	return r.Start < 0
}

// Count is the number of items requested, |end - start| + 1.
func (r Range) Count() int {
	d := r.End - r.Start
	if d < 0 {
		d = -d
	}
	return d + 1
}

// Descending reports the iteration direction.
func (r Range) Descending() bool {
	return r.Start > r.End || r.Start < 0
}

// Resolve returns the ordered 1-based indices. total is the playlist length
// or 0 when unknown; it is required for negative ranges and, when known,
// clamps the result to [1, total].
func (r Range) Resolve(total int) ([]int, error) {
	start, end := r.Start, r.End

	if r.NeedsCount() {
		if total <= 0 {
			return nil, fmt.Errorf("resolve %s: playlist length unknown", r)
		}
		// -1 is the last item; keep the larger converted bound first so the
		// items come newest-first.
		start, end = total+start+1, total+end+1
		if start < end {
			start, end = end, start
		}
	}

	step := 1
	if start > end {
		step = -1
	}

	indices := make([]int, 0, r.Count())
	for i := start; ; i += step {
		if i >= 1 && (total <= 0 || i <= total) {
			indices = append(indices, i)
		}
		if i == end {
			break
		}
	}
	return indices, nil
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// ItemSelector renders the engine's --playlist-items value for the range
// once resolved against total.
func (r Range) ItemSelector(total int) (string, error) {
	indices, err := r.Resolve(total)
	if err != nil {
		return "", err
	}
	return Selector(indices), nil
}

// Selector renders indices as "i", "a:b" or "a:b:-1". The indices must be
// contiguous in one direction, as Resolve returns them.
func Selector(indices []int) string {
	switch len(indices) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%d", indices[0])
	}
	first, last := indices[0], indices[len(indices)-1]
	if first > last {
		return fmt.Sprintf("%d:%d:-1", first, last)
	}
	return fmt.Sprintf("%d:%d", first, last)
}
