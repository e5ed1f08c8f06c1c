package sizing

import (
	"time"

	"github.com/dustin/go-humanize"
)

// HumanSize renders bytes for users, e.g. "1.9 GiB".
func HumanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// HumanSpeed renders a transfer rate in bytes per second.
func HumanSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

// HumanDuration renders a duration rounded to the second.
func HumanDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
