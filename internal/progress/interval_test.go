package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
)

func TestDefaultSchedule(t *testing.T) {
	s := DefaultSchedule()

	tests := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{0, 3 * time.Second},
		{4 * time.Minute, 3 * time.Second},
		{5 * time.Minute, 4 * time.Second},
		{27 * time.Minute, 8 * time.Second},
		{59 * time.Minute, 14 * time.Second},
		{60 * time.Minute, 90 * time.Second},
		{65 * time.Minute, 90 * time.Second},
		{10 * time.Hour, 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, s.Interval(tt.elapsed))
		})
	}
}

func TestScheduleNeverExceedsMax(t *testing.T) {
	s := Schedule{Base: 3 * time.Second, Step: 10 * time.Second, StepEvery: time.Minute, Max: 20 * time.Second, CapAfter: time.Hour}
	assert.Equal(t, 20*time.Second, s.Interval(30*time.Minute))
}

func TestScheduleFromConfig(t *testing.T) {
	s := ScheduleFromConfig(config.DefaultProgressConfig())
	assert.Equal(t, DefaultSchedule(), s)
}
