package ffmpeg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
)

func TestNewDefaults(t *testing.T) {
	tool := New(config.EngineConfig{})
	assert.Equal(t, FFmpegCommand, tool.ffmpeg)
	assert.Equal(t, FFprobeCommand, tool.ffprobe)

	tool = New(config.EngineConfig{FFmpegPath: "/opt/ffmpeg", FFprobePath: "/opt/ffprobe"})
	assert.Equal(t, "/opt/ffmpeg", tool.ffmpeg)
}

func TestDurationArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-v", "error", "-show_entries", "format=duration", "-of", "csv=p=0", "/w/a.mp4"},
		DurationArgs("/w/a.mp4"))
}

func TestCutArgs(t *testing.T) {
	args := CutArgs("/w/a.mp4", "/w/a.part01.mp4", 90*time.Second, 1500*time.Millisecond)
	assert.Equal(t, []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", "90.000",
		"-i", "/w/a.mp4",
		"-t", "1.500",
		"-map", "0",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"/w/a.part01.mp4",
	}, args)
}

func TestThumbnailArgs(t *testing.T) {
	args := ThumbnailArgs("/w/a.mp4", "/w/a.jpg", 2*time.Second)
	assert.Contains(t, args, "2.000")
	assert.Equal(t, "/w/a.jpg", args[len(args)-1])
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("123.456000\n")
	require.NoError(t, err)
	assert.Equal(t, 123456*time.Millisecond, d)

	_, err = ParseDuration("N/A")
	assert.Error(t, err)
}
