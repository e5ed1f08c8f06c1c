package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// Renderer turns a sample into status text.
type Renderer func(p domain.Progress, elapsed time.Duration) string

// Reporter periodically publishes one slot to one status message.
type Reporter struct {
	hub       *Hub
	chatID    int64
	messageID int
	slot      *Slot
	render    Renderer
	interval  func(elapsed time.Duration) time.Duration
	now       func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewReporter creates a Reporter. Call Start to run it.
func NewReporter(hub *Hub, chatID int64, messageID int, slot *Slot, schedule Schedule, render Renderer) *Reporter {
	return &Reporter{
		hub:       hub,
		chatID:    chatID,
		messageID: messageID,
		slot:      slot,
		render:    render,
		interval:  schedule.Interval,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// WithInterval replaces the schedule, for tests.
func (r *Reporter) WithInterval(interval func(elapsed time.Duration) time.Duration) *Reporter {
	r.interval = interval
	return r
}

// Start launches the reporting goroutine.
func (r *Reporter) Start() {
	go r.loop()
}

// Stop asks the goroutine to exit and waits up to timeout. It reports
// whether the goroutine finished in time.
func (r *Reporter) Stop(timeout time.Duration) bool {
	r.stopOnce.Do(func() { close(r.stop) })

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.done:
		return true
	case <-timer.C:
		return false
	}
}

func (r *Reporter) loop() {
	defer close(r.done)

	started := r.now()
	var published uint64

	for {
		elapsed := r.now().Sub(started)
		timer := time.NewTimer(r.interval(elapsed))

		select {
		case <-r.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		if r.hub.Retired(r.chatID, r.messageID) {
			return
		}

		p, version := r.slot.Latest()
		if version == 0 || version == published {
			continue
		}
		if !r.hub.Submit(r.chatID, r.messageID, r.render(p, r.now().Sub(started))) {
			return
		}
		published = version
	}
}

const barWidth = 20

// DownloadRenderer renders a progress bar with sizes, speed and ETA under
// a title line.
func DownloadRenderer(title string) Renderer {
	return func(p domain.Progress, elapsed time.Duration) string {
		var b strings.Builder
		b.WriteString("Downloading")
		if title != "" {
			b.WriteString(": ")
			b.WriteString(title)
		}
		b.WriteByte('\n')

		if pct := p.Percent(); pct >= 0 {
			filled := int(pct / 100 * barWidth)
			if filled > barWidth {
				filled = barWidth
			}
			fmt.Fprintf(&b, "[%s%s] %.1f%%\n", strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled), pct)
			fmt.Fprintf(&b, "%s / %s", humanize.IBytes(uint64(p.Downloaded)), humanize.IBytes(uint64(p.Total)))
		} else {
			b.WriteString(humanize.IBytes(uint64(max(p.Downloaded, 0))))
		}

		if p.Speed > 0 {
			fmt.Fprintf(&b, " at %s/s", humanize.IBytes(uint64(p.Speed)))
		}
		if p.ETA > 0 {
			fmt.Fprintf(&b, ", ETA %s", p.ETA.Round(time.Second))
		}
		fmt.Fprintf(&b, "\nElapsed %s", elapsed.Round(time.Second))
		return b.String()
	}
}
