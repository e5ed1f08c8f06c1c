package sizing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = int64(1 << 30)

func TestPartCount(t *testing.T) {
	p := Planner{Threshold: 2 * gib, MaxParts: 10}

	assert.Equal(t, 1, p.PartCount(gib))
	assert.Equal(t, 1, p.PartCount(2*gib))
	assert.Equal(t, 2, p.PartCount(2*gib+1))
	assert.Equal(t, 3, p.PartCount(5*gib))
	assert.True(t, p.NeedsSplit(5*gib))
	assert.False(t, p.NeedsSplit(2*gib))
}

func TestPlanIsProportional(t *testing.T) {
	p := Planner{Threshold: 2 * gib, MaxParts: 10}
	duration := 100*time.Minute + 1*time.Second

	segments, err := p.Plan(3, duration)
	require.NoError(t, err)
	require.Len(t, segments, 3)

	var total time.Duration
	for i, s := range segments {
		assert.Equal(t, i+1, s.Index)
		assert.Equal(t, total, s.Start)
		total += s.Length
	}
	assert.Equal(t, duration, total)
	assert.InDelta(t, float64(segments[0].Length), float64(segments[2].Length), float64(time.Millisecond))
}

func TestPlanRejects(t *testing.T) {
	p := Planner{Threshold: gib, MaxParts: 2}

	_, err := p.Plan(3, time.Hour)
	assert.ErrorIs(t, err, ErrTooManyParts)

	_, err = p.Plan(1, 0)
	assert.ErrorIs(t, err, ErrNoDuration)
}

func TestEffectiveThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, EffectiveThreshold(0, PlatformCeiling))
	assert.Equal(t, 500*int64(1<<20), EffectiveThreshold(500<<20, PlatformCeiling))
	assert.Equal(t, PlatformCeiling, EffectiveThreshold(10*gib, PlatformCeiling))
	assert.Equal(t, PlatformCeiling, EffectiveThreshold(10*gib, 0))
	assert.Less(t, DefaultThreshold, PlatformCeiling)
}
