package sizing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/mocks"
)

func newTestSplitter(tool *mocks.MockMediaTool, threshold int64, sizes func(path string) int64) *Splitter {
	s := NewSplitter(tool, Planner{Threshold: threshold, MaxParts: 5})
	s.stat = func(path string) (int64, error) { return sizes(path), nil }
	return s
}

func TestSplitFiveGiBIntoThreeParts(t *testing.T) {
	tool := &mocks.MockMediaTool{}
	tool.On("Cut", mock.Anything, "/w/movie.mp4", mock.Anything, mock.Anything, mock.Anything).Return(nil).Times(3)

	s := newTestSplitter(tool, 2*gib, func(string) int64 { return 5 * gib / 3 })

	parts, err := s.Split(context.Background(), "/w/movie.mp4", 5*gib, 90*time.Minute, "/w")
	require.NoError(t, err)
	require.Len(t, parts, 3)

	for i, p := range parts {
		assert.LessOrEqual(t, p.Size, 2*gib)
		assert.Equal(t, filepath.Join("/w", "movie.part0"+string(rune('1'+i))+".mp4"), p.Path)
		assert.Equal(t, 30*time.Minute, p.Length)
	}
	tool.AssertExpectations(t)
}

func TestSplitReplansWhenPartTooLarge(t *testing.T) {
	tool := &mocks.MockMediaTool{}
	tool.On("Cut", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var cuts []string
	tool.On("Duration", mock.Anything, "/w/v.mkv").Return(time.Hour, nil).Once()

	// with two parts the first comes out oversize; with three all fit
	s := newTestSplitter(tool, 2*gib, func(path string) int64 {
		cuts = append(cuts, path)
		if len(cuts) == 1 {
			return 2*gib + 1
		}
		return gib
	})

	parts, err := s.Split(context.Background(), "/w/v.mkv", 3*gib, 0, "/w")
	require.NoError(t, err)
	assert.Len(t, parts, 3)
	assert.Equal(t, 20*time.Minute, parts[0].Length)
	assert.Len(t, cuts, 4)
}

func TestSplitGivesUpAtPartLimit(t *testing.T) {
	tool := &mocks.MockMediaTool{}
	tool.On("Cut", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := newTestSplitter(tool, gib, func(string) int64 { return 2 * gib })

	_, err := s.Split(context.Background(), "/w/v.mp4", 3*gib, time.Hour, "/w")
	assert.ErrorIs(t, err, ErrTooManyParts)
}

func TestSplitPropagatesCutErrors(t *testing.T) {
	tool := &mocks.MockMediaTool{}
	tool.On("Cut", mock.Anything, mock.Anything, mock.MatchedBy(func(dst string) bool {
		return strings.Contains(dst, "part02")
	}), mock.Anything, mock.Anything).Return(errors.New("ffmpeg exited 1"))
	tool.On("Cut", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := newTestSplitter(tool, 2*gib, func(string) int64 { return gib })

	_, err := s.Split(context.Background(), "/w/v.mp4", 3*gib, time.Hour, "/w")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cut part 2")
}
