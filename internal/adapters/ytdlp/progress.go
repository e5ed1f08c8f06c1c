package ytdlp

import (
	"strconv"
	"strings"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// Output line markers
const (
	progressPrefix = "mbprogress "
	filePrefix     = "mbfile:"
)

// progressTemplate prints one space-separated line per progress tick.
// Unknown values are printed as NA.
const progressTemplate = "download:" + progressPrefix +
	"%(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s " +
	"%(progress.speed)s %(progress.eta)s %(progress.filename)s"

// ParseProgress parses a line printed with progressTemplate.
func ParseProgress(line string) (domain.Progress, bool) {
	rest, ok := strings.CutPrefix(line, progressPrefix)
	if !ok {
		return domain.Progress{}, false
	}

	fields := strings.SplitN(rest, " ", 6)
	if len(fields) < 5 {
		return domain.Progress{}, false
	}

	p := domain.Progress{
		Downloaded: parseInt(fields[0]),
		Total:      parseInt(fields[1]),
		Speed:      parseFloat(fields[3]),
		ETA:        time.Duration(parseFloat(fields[4]) * float64(time.Second)),
	}
	if p.Total == 0 {
		p.Total = parseInt(fields[2])
	}
	if len(fields) == 6 {
		p.Filename = fields[5]
	}
	return p, true
}

func parseInt(s string) int64 {
	return int64(parseFloat(s))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
