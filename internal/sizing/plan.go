// Package sizing enforces upload limits. It estimates the size of a download
// before it starts, and splits finished files that exceed the per-user part
// threshold into duration-proportional parts.
package sizing

import (
	"errors"
	"fmt"
	"time"
)

// Size limits in bytes.
const (
	// DefaultThreshold is 1.95 GiB.
	DefaultThreshold int64 = 1 << 30 * 195 / 100
	// PlatformCeiling is the largest single upload the platform accepts.
	PlatformCeiling int64 = 2 << 30
	// DefaultMaxParts bounds re-planning.
	DefaultMaxParts = 50
)

var (
	// ErrSizeExceeded means the estimate is above the global ceiling.
	ErrSizeExceeded = errors.New("size_exceeded")
	// ErrTooManyParts means no plan within MaxParts fits the threshold.
	ErrTooManyParts = errors.New("cannot split within the part limit")
	// ErrNoDuration means the file has no usable duration to split by.
	ErrNoDuration = errors.New("media duration unknown")
)

// Planner computes split plans.
type Planner struct {
	Threshold int64
	MaxParts  int
}

// NewPlanner returns a Planner with threshold clamped to (0, ceiling].
func NewPlanner(threshold, ceiling int64, maxParts int) Planner {
	return Planner{
		Threshold: EffectiveThreshold(threshold, ceiling),
		MaxParts:  maxParts,
	}
}

// EffectiveThreshold resolves a per-user override against the ceiling.
// Zero or negative means the default.
func EffectiveThreshold(override, ceiling int64) int64 {
	if ceiling <= 0 {
		ceiling = PlatformCeiling
	}
	t := override
	if t <= 0 {
		t = DefaultThreshold
	}
	if t > ceiling {
		t = ceiling
	}
	return t
}

// NeedsSplit reports whether size is above the threshold.
func (p Planner) NeedsSplit(size int64) bool {
	return size > p.Threshold
}

// PartCount is ceil(size / threshold), at least 1.
func (p Planner) PartCount(size int64) int {
	if size <= p.Threshold {
		return 1
	}
	return int((size + p.Threshold - 1) / p.Threshold)
}

// Segment is one time slice of the source.
type Segment struct {
	Index  int
	Start  time.Duration
	Length time.Duration
}

// Plan cuts duration into n equal segments. The last absorbs rounding.
func (p Planner) Plan(n int, duration time.Duration) ([]Segment, error) {
	if duration <= 0 {
		return nil, ErrNoDuration
	}
	if n < 1 {
		n = 1
	}
	if p.MaxParts > 0 && n > p.MaxParts {
		return nil, fmt.Errorf("%w: %d parts needed, limit %d", ErrTooManyParts, n, p.MaxParts)
	}

	step := duration / time.Duration(n)
	segments := make([]Segment, n)
	for i := range segments {
		start := step * time.Duration(i)
		length := step
		if i == n-1 {
			length = duration - start
		}
		segments[i] = Segment{Index: i + 1, Start: start, Length: length}
	}
	return segments, nil
}
