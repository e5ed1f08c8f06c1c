package sizing

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/grafov/m3u8"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// Source names for an estimate.
const (
	SourceFilesize       = "filesize"
	SourceFilesizeApprox = "filesize_approx"
	SourceBitrate        = "bitrate"
	SourceManifest       = "manifest"
	SourceUnknown        = "unknown"
)

// Estimate is a pre-download size guess.
type Estimate struct {
	Bytes  int64
	Source string
}

// ManifestFetcher opens an HLS manifest.
type ManifestFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher fetches manifests over HTTP.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("manifest %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// Estimator guesses download sizes from probe metadata.
type Estimator struct {
	fetcher ManifestFetcher
}

// NewEstimator returns an Estimator. fetcher may be nil to skip manifests.
func NewEstimator(fetcher ManifestFetcher) *Estimator {
	return &Estimator{fetcher: fetcher}
}

// Estimate tries, in order, the exact filesize, the approximate filesize,
// bitrate times duration and an HLS manifest.
func (e *Estimator) Estimate(ctx context.Context, meta domain.Metadata) Estimate {
	switch {
	case meta.Filesize > 0:
		return Estimate{Bytes: meta.Filesize, Source: SourceFilesize}
	case meta.FilesizeApprox > 0:
		return Estimate{Bytes: meta.FilesizeApprox, Source: SourceFilesizeApprox}
	case meta.TBR > 0 && meta.Duration > 0:
		return Estimate{Bytes: int64(meta.TBR * 1000 / 8 * meta.Duration), Source: SourceBitrate}
	}

	if e.fetcher != nil && meta.ManifestURL != "" {
		if n, err := e.fromManifest(ctx, meta); err == nil && n > 0 {
			return Estimate{Bytes: n, Source: SourceManifest}
		}
	}
	return Estimate{Source: SourceUnknown}
}

// Check returns ErrSizeExceeded when the estimate is above ceiling.
func (e Estimate) Check(ceiling int64) error {
	if ceiling > 0 && e.Bytes > ceiling {
		return fmt.Errorf("%w: estimated %s (%s) above %s", ErrSizeExceeded, HumanSize(e.Bytes), e.Source, HumanSize(ceiling))
	}
	return nil
}

func (e *Estimator) fromManifest(ctx context.Context, meta domain.Metadata) (int64, error) {
	body, err := e.fetcher.Fetch(ctx, meta.ManifestURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	return ManifestSize(body, meta.Duration)
}

// ManifestSize estimates bytes from an HLS manifest. For a master playlist
// it uses the highest variant bandwidth and duration in seconds; for a
// media playlist the byte ranges, or nothing when there are none.
func ManifestSize(r io.Reader, duration float64) (int64, error) {
	playlist, listType, err := m3u8.DecodeFrom(r, false)
	if err != nil {
		return 0, fmt.Errorf("decode manifest: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		var best uint32
		for _, v := range master.Variants {
			if v != nil && v.Bandwidth > best {
				best = v.Bandwidth
			}
		}
		if best == 0 || duration <= 0 {
			return 0, nil
		}
		return int64(float64(best) / 8 * duration), nil

	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		var total int64
		for _, seg := range media.Segments {
			if seg == nil {
				continue
			}
			total += seg.Limit
		}
		return total, nil
	}
	return 0, nil
}
