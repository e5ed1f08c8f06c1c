// Package ffmpeg implements domain.MediaTool with ffprobe and ffmpeg.
package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/adapters/command"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
)

// Command constants
const (
	FFmpegCommand       = "ffmpeg"
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	ThumbnailScale      = "scale=320:-2"
)

// Tool runs the ffmpeg binaries.
type Tool struct {
	ffmpeg  string
	ffprobe string
}

// New creates a Tool from the engine configuration.
func New(cfg config.EngineConfig) *Tool {
	t := &Tool{ffmpeg: cfg.FFmpegPath, ffprobe: cfg.FFprobePath}
	if t.ffmpeg == "" {
		t.ffmpeg = FFmpegCommand
	}
	if t.ffprobe == "" {
		t.ffprobe = FFprobeCommand
	}
	return t
}

// Duration returns the container duration of path.
func (t *Tool) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := command.Run(ctx, t.ffprobe, DurationArgs(path), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}
	return ParseDuration(string(out))
}

// Cut copies [start, start+length) of src into dst without re-encoding.
func (t *Tool) Cut(ctx context.Context, src, dst string, start, length time.Duration) error {
	if _, err := command.Run(ctx, t.ffmpeg, CutArgs(src, dst, start, length), nil); err != nil {
		return fmt.Errorf("failed to cut %s: %w", dst, err)
	}
	return nil
}

// Thumbnail writes one scaled frame taken at the given offset.
func (t *Tool) Thumbnail(ctx context.Context, src, dst string, at time.Duration) error {
	if _, err := command.Run(ctx, t.ffmpeg, ThumbnailArgs(src, dst, at), nil); err != nil {
		return fmt.Errorf("failed to create thumbnail: %w", err)
	}
	return nil
}

// DurationArgs builds the ffprobe arguments
func DurationArgs(path string) []string {
	return []string{"-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, path}
}

// CutArgs builds the ffmpeg arguments for a stream-copy cut
func CutArgs(src, dst string, start, length time.Duration) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", seconds(start),
		"-i", src,
		"-t", seconds(length),
		"-map", "0",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		dst,
	}
}

// ThumbnailArgs builds the ffmpeg arguments for a single frame
func ThumbnailArgs(src, dst string, at time.Duration) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", seconds(at),
		"-i", src,
		"-frames:v", "1",
		"-vf", ThumbnailScale,
		dst,
	}
}

// ParseDuration parses ffprobe's seconds output.
func ParseDuration(out string) (time.Duration, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
