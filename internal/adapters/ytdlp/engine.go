package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/adapters/command"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/failure"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// Defaults
const (
	DefaultBinary       = "yt-dlp"
	DefaultProbeTimeout = 60 * time.Second
	outputTemplate      = "%(title).80B [%(id)s].%(ext)s"
)

// Engine implements domain.ExtractionEngine.
type Engine struct {
	binary       string
	probeTimeout time.Duration
	logger       types.Logger
	metrics      types.Metrics
}

// New creates an Engine from the engine configuration.
func New(cfg config.EngineConfig, logger types.Logger, metrics types.Metrics) *Engine {
	binary := cfg.YtDlpPath
	if binary == "" {
		binary = DefaultBinary
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Engine{binary: binary, probeTimeout: timeout, logger: logger, metrics: metrics}
}

// Probe fetches metadata without downloading. With PlaylistItems set, the
// metadata of the first selected entry is returned along with the playlist
// size. The content filter, when set, is applied to the item metadata.
func (e *Engine) Probe(ctx context.Context, url string, opts domain.ExtractOptions) (domain.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	start := time.Now()
	out, err := command.Run(ctx, e.binary, ProbeArgs(url, opts), nil)
	e.metrics.RecordDuration("ytdlp.probe", time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordError("ytdlp.probe", failure.ClassifyError(err).String())
		return domain.Metadata{}, wrapError(err)
	}

	meta, err := ParseInfo(out, opts.PlaylistItems != "")
	if err != nil {
		return domain.Metadata{}, err
	}

	isItem := opts.PlaylistItems != "" || meta.PlaylistCount == 0
	if opts.Filter != nil && isItem {
		if d := opts.Filter(meta); !d.Accept {
			return meta, &domain.RejectedError{Reason: d.Reason}
		}
	}
	e.metrics.RecordSuccess("ytdlp.probe")
	return meta, nil
}

// Extract downloads into opts.OutputDir and returns the final file.
func (e *Engine) Extract(ctx context.Context, url string, opts domain.ExtractOptions) (domain.MediaStream, error) {
	if opts.OutputDir == "" {
		return domain.MediaStream{}, errors.New("output directory is required")
	}

	var path string
	onLine := func(line string) error {
		if p, ok := ParseProgress(line); ok {
			if opts.Progress != nil {
				return opts.Progress(p)
			}
			return nil
		}
		if f, ok := strings.CutPrefix(line, filePrefix); ok {
			path = f
		}
		return nil
	}

	e.metrics.StartOperation("ytdlp.extract")
	defer e.metrics.EndOperation("ytdlp.extract")

	start := time.Now()
	_, err := command.Run(ctx, e.binary, ExtractArgs(url, opts), onLine)
	e.metrics.RecordDuration("ytdlp.extract", time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordError("ytdlp.extract", failure.ClassifyError(err).String())
		return domain.MediaStream{}, wrapError(err)
	}

	if path == "" {
		return domain.MediaStream{}, fmt.Errorf("%s reported no output file: %w", e.binary, domain.ErrNoContent)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(opts.OutputDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.MediaStream{}, fmt.Errorf("output file not found: %w", err)
	}
	if info.Size() == 0 {
		return domain.MediaStream{}, fmt.Errorf("downloaded file is empty: %w", domain.ErrNoContent)
	}

	e.metrics.RecordSuccess("ytdlp.extract")
	return domain.MediaStream{Path: path, Size: info.Size()}, nil
}

// ProbeArgs builds the metadata-only command line.
func ProbeArgs(url string, opts domain.ExtractOptions) []string {
	args := []string{"-J", "--no-warnings", "--no-progress"}
	args = append(args, egressArgs(opts)...)
	if opts.PlaylistItems != "" {
		args = append(args, "--playlist-items", opts.PlaylistItems)
	} else {
		args = append(args, "--flat-playlist")
	}
	return append(args, "--", url)
}

// ExtractArgs builds the download command line.
func ExtractArgs(url string, opts domain.ExtractOptions) []string {
	format := opts.Format
	if format == "" {
		format = FormatBest
	}

	args := []string{
		"--no-warnings",
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", "after_move:" + filePrefix + "%(filepath)s",
		"--no-simulate",
		"--no-part",
		"-f", format,
		"-o", filepath.Join(opts.OutputDir, outputTemplate),
	}
	args = append(args, egressArgs(opts)...)

	if format == FormatAudio {
		args = append(args, "-x", "--audio-format", "mp3")
	} else {
		args = append(args, "--merge-output-format", "mp4")
	}
	if opts.PlaylistItems != "" {
		args = append(args, "--yes-playlist", "--playlist-items", opts.PlaylistItems)
	} else {
		args = append(args, "--no-playlist")
	}
	if opts.MaxFilesize > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(opts.MaxFilesize, 10))
	}
	if opts.WantSubtitles {
		args = append(args, "--write-subs", "--embed-subs")
	}
	return append(args, "--", url)
}

func egressArgs(opts domain.ExtractOptions) []string {
	var args []string
	if opts.CredentialPath != "" {
		args = append(args, "--cookies", opts.CredentialPath)
	}
	if opts.ProxyURL != "" {
		args = append(args, "--proxy", opts.ProxyURL)
	}
	return args
}

type requestedFormat struct {
	Filesize       int64  `json:"filesize"`
	FilesizeApprox int64  `json:"filesize_approx"`
	ManifestURL    string `json:"manifest_url"`
}

type info struct {
	domain.Metadata
	Type             string            `json:"_type"`
	Entries          []json.RawMessage `json:"entries"`
	RequestedFormats []requestedFormat `json:"requested_formats"`
}

// ParseInfo decodes yt-dlp -J output. When item is true a playlist answer
// is unwrapped to its first entry.
func ParseInfo(data []byte, item bool) (domain.Metadata, error) {
	var top info
	if err := json.Unmarshal(data, &top); err != nil {
		return domain.Metadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if top.Type != "playlist" {
		return top.flatten(), nil
	}

	count := top.PlaylistCount
	if count == 0 {
		count = len(top.Entries)
	}
	if !item {
		meta := top.flatten()
		meta.PlaylistCount = count
		return meta, nil
	}

	for _, raw := range top.Entries {
		if string(raw) == "null" {
			continue
		}
		var entry info
		if err := json.Unmarshal(raw, &entry); err != nil {
			return domain.Metadata{}, fmt.Errorf("failed to decode playlist entry: %w", err)
		}
		meta := entry.flatten()
		meta.PlaylistCount = count
		return meta, nil
	}
	return domain.Metadata{PlaylistCount: count}, domain.ErrIndexOutOfRange
}

func (i info) flatten() domain.Metadata {
	meta := i.Metadata
	if meta.Filesize == 0 && meta.FilesizeApprox == 0 {
		for _, f := range i.RequestedFormats {
			meta.Filesize += f.Filesize
			meta.FilesizeApprox += f.FilesizeApprox
			if meta.ManifestURL == "" {
				meta.ManifestURL = f.ManifestURL
			}
		}
	}
	return meta
}

// wrapError attaches positional sentinels to engine failures.
func wrapError(err error) error {
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		return err
	}
	switch {
	case failure.IsOutOfRange(cmdErr.Stderr):
		return fmt.Errorf("%w: %w", domain.ErrIndexOutOfRange, err)
	case failure.IsNoContent(cmdErr.Stderr):
		return fmt.Errorf("%w: %w", domain.ErrNoContent, err)
	}
	return err
}
