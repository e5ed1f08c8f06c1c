// Package progress keeps status messages up to date while a download runs.
//
// The download callback writes samples into a Slot and never blocks. A
// Reporter goroutine per status message wakes on an adaptive interval,
// renders the latest sample and hands the text to a Hub, which serializes
// edits per message through a single writer goroutine.
package progress

import (
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
)

// Schedule computes how long a reporter sleeps between updates.
type Schedule struct {
	Base      time.Duration
	Step      time.Duration
	StepEvery time.Duration
	Max       time.Duration
	CapAfter  time.Duration
}

// DefaultSchedule is 3s, plus 1s for every 5 minutes elapsed, and 90s once
// an hour has passed.
func DefaultSchedule() Schedule {
	return Schedule{
		Base:      3 * time.Second,
		Step:      time.Second,
		StepEvery: 5 * time.Minute,
		Max:       90 * time.Second,
		CapAfter:  60 * time.Minute,
	}
}

// ScheduleFromConfig builds a Schedule from the progress configuration.
func ScheduleFromConfig(cfg config.ProgressConfig) Schedule {
	return Schedule{
		Base:      cfg.BaseInterval,
		Step:      cfg.StepInterval,
		StepEvery: cfg.StepEvery,
		Max:       cfg.MaxInterval,
		CapAfter:  cfg.CapAfter,
	}
}

// Interval returns the wait after elapsed time has passed.
func (s Schedule) Interval(elapsed time.Duration) time.Duration {
	if s.CapAfter > 0 && elapsed >= s.CapAfter {
		return s.Max
	}

	interval := s.Base
	if s.StepEvery > 0 && elapsed > 0 {
		interval += s.Step * time.Duration(elapsed/s.StepEvery)
	}
	if s.Max > 0 && interval > s.Max {
		interval = s.Max
	}
	return interval
}
