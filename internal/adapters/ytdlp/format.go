// Package ytdlp drives the yt-dlp binary as the extraction engine.
package ytdlp

import (
	"strings"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// Format expressions
const (
	FormatBest  = "bv*+ba/b"
	FormatAudio = "ba/b"
)

// FormatFor maps a request quality onto a format expression. Resolutions
// cap the height and fall back to the best available stream.
func FormatFor(quality string) string {
	switch quality {
	case domain.QualityBest, "":
		return FormatBest
	case domain.QualityAudio:
		return FormatAudio
	}

	height := strings.TrimSuffix(quality, "p")
	return "bv*[height<=" + height + "]+ba/b[height<=" + height + "]/" + FormatBest
}
