package sizing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// Part is one file produced by a split.
type Part struct {
	Segment
	Path string
	Size int64
}

// Splitter cuts oversize files with a MediaTool.
type Splitter struct {
	tool    domain.MediaTool
	planner Planner
	stat    func(string) (int64, error)
}

// NewSplitter returns a Splitter using planner's threshold and part limit.
func NewSplitter(tool domain.MediaTool, planner Planner) *Splitter {
	return &Splitter{tool: tool, planner: planner, stat: fileSize}
}

// Planner returns the planner in use.
func (s *Splitter) Planner() Planner { return s.planner }

// Split cuts src into parts no larger than the threshold. When a cut part
// is still too large (variable bitrate) it re-plans with one more part.
// duration may be zero to have it probed.
func (s *Splitter) Split(ctx context.Context, src string, size int64, duration time.Duration, outDir string) ([]Part, error) {
	if duration <= 0 {
		d, err := s.tool.Duration(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("probe duration: %w", err)
		}
		duration = d
	}

	ext := filepath.Ext(src)
	base := strings.TrimSuffix(filepath.Base(src), ext)

	for n := s.planner.PartCount(size); ; n++ {
		segments, err := s.planner.Plan(n, duration)
		if err != nil {
			return nil, err
		}

		parts, fits, err := s.cut(ctx, src, segments, filepath.Join(outDir, base), ext)
		if err != nil {
			removeParts(parts)
			return nil, err
		}
		if fits {
			return parts, nil
		}
		removeParts(parts)
	}
}

func (s *Splitter) cut(ctx context.Context, src string, segments []Segment, prefix, ext string) ([]Part, bool, error) {
	parts := make([]Part, 0, len(segments))
	for _, seg := range segments {
		dst := fmt.Sprintf("%s.part%02d%s", prefix, seg.Index, ext)
		if err := s.tool.Cut(ctx, src, dst, seg.Start, seg.Length); err != nil {
			return parts, false, fmt.Errorf("cut part %d: %w", seg.Index, err)
		}
		size, err := s.stat(dst)
		if err != nil {
			return parts, false, fmt.Errorf("stat part %d: %w", seg.Index, err)
		}
		parts = append(parts, Part{Segment: seg, Path: dst, Size: size})
		if size > s.planner.Threshold {
			return parts, false, nil
		}
	}
	return parts, true, nil
}

func removeParts(parts []Part) {
	for _, p := range parts {
		os.Remove(p.Path)
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
