package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/stretchr/testify/assert"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/mocks"
)

func fastInterval(time.Duration) time.Duration { return 2 * time.Millisecond }

func TestSlotLastWriteWins(t *testing.T) {
	var s Slot
	_, v := s.Latest()
	assert.Zero(t, v)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set(domain.Progress{Downloaded: int64(i)})
		}(i)
	}
	wg.Wait()

	_, v = s.Latest()
	assert.Equal(t, uint64(100), v)

	s.Set(domain.Progress{Downloaded: 999})
	p, _ := s.Latest()
	assert.Equal(t, int64(999), p.Downloaded)
}

func TestReporterPublishesLatestSample(t *testing.T) {
	rec := newEditRecorder()
	close(rec.release)
	hub := NewHub(rec, mocks.NewPermissiveLogger())
	defer hub.Close()

	slot := &Slot{}
	r := NewReporter(hub, 1, 10, slot, DefaultSchedule(), func(p domain.Progress, _ time.Duration) string {
		return "got " + humanize.IBytes(uint64(p.Downloaded))
	}).WithInterval(fastInterval)
	r.Start()

	slot.Set(domain.Progress{Downloaded: 1 << 20})

	assert.Eventually(t, func() bool {
		edits := rec.snapshot()
		return len(edits) > 0 && edits[len(edits)-1] == "got 1.0 MiB"
	}, time.Second, 5*time.Millisecond)

	assert.True(t, r.Stop(time.Second))
	assert.True(t, r.Stop(time.Second), "stop is idempotent")
}

func TestReporterSkipsUnchangedSamples(t *testing.T) {
	rec := newEditRecorder()
	close(rec.release)
	hub := NewHub(rec, mocks.NewPermissiveLogger())
	defer hub.Close()

	slot := &Slot{}
	slot.Set(domain.Progress{Downloaded: 1})
	r := NewReporter(hub, 1, 10, slot, DefaultSchedule(), func(domain.Progress, time.Duration) string {
		return "same"
	}).WithInterval(fastInterval)
	r.Start()

	time.Sleep(50 * time.Millisecond)
	assert.True(t, r.Stop(time.Second))
	assert.Len(t, rec.snapshot(), 1)
}

func TestReporterExitsWhenMessageGone(t *testing.T) {
	rec := newEditRecorder()
	close(rec.release)
	rec.err = domain.ErrMessageGone
	hub := NewHub(rec, mocks.NewPermissiveLogger())
	defer hub.Close()

	slot := &Slot{}
	r := NewReporter(hub, 1, 10, slot, DefaultSchedule(), DownloadRenderer("clip")).WithInterval(fastInterval)
	r.Start()

	for i := 0; i < 5; i++ {
		slot.Set(domain.Progress{Downloaded: int64(i), Total: 10})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("reporter kept running after the message was retired")
	}
	assert.Len(t, rec.snapshot(), 1)
}

func TestStopTimesOutWhenGoroutineNeverStarted(t *testing.T) {
	r := NewReporter(nil, 1, 1, &Slot{}, DefaultSchedule(), DownloadRenderer(""))
	assert.False(t, r.Stop(10*time.Millisecond))
}

func TestDownloadRenderer(t *testing.T) {
	render := DownloadRenderer("My Clip")

	text := render(domain.Progress{Downloaded: 512 << 20, Total: 1 << 30, Speed: 2 << 20, ETA: 256 * time.Second}, 90*time.Second)
	assert.Contains(t, text, "Downloading: My Clip")
	assert.Contains(t, text, "[##########----------] 50.0%")
	assert.Contains(t, text, "512 MiB / 1.0 GiB")
	assert.Contains(t, text, "at 2.0 MiB/s")
	assert.Contains(t, text, "ETA 4m16s")
	assert.Contains(t, text, "Elapsed 1m30s")

	unknown := render(domain.Progress{Downloaded: 1024}, 0)
	assert.Contains(t, unknown, "1.0 KiB")
	assert.NotContains(t, unknown, "%")
}
