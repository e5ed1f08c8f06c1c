package sizing

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

const masterManifest = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=4000000,RESOLUTION=1920x1080
high/index.m3u8
`

const mediaManifest = `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-TARGETDURATION:10
#EXTINF:10.0,
#EXT-X-BYTERANGE:1000@0
seg.ts
#EXTINF:10.0,
#EXT-X-BYTERANGE:2500@1000
seg.ts
#EXT-X-ENDLIST
`

type stubFetcher struct {
	body string
	err  error
}

func (f stubFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func TestEstimateOrder(t *testing.T) {
	e := NewEstimator(stubFetcher{body: masterManifest})
	ctx := context.Background()

	tests := []struct {
		name   string
		meta   domain.Metadata
		bytes  int64
		source string
	}{
		{"filesize wins", domain.Metadata{Filesize: 10, FilesizeApprox: 20, TBR: 1000, Duration: 10}, 10, SourceFilesize},
		{"approx next", domain.Metadata{FilesizeApprox: 20, TBR: 1000, Duration: 10}, 20, SourceFilesizeApprox},
		{"bitrate", domain.Metadata{TBR: 800, Duration: 60}, 6_000_000, SourceBitrate},
		{"manifest", domain.Metadata{Duration: 10, ManifestURL: "https://cdn/master.m3u8"}, 5_000_000, SourceManifest},
		{"unknown", domain.Metadata{Duration: 10}, 0, SourceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(ctx, tt.meta)
			assert.Equal(t, tt.bytes, got.Bytes)
			assert.Equal(t, tt.source, got.Source)
		})
	}
}

func TestEstimateManifestFailureIsUnknown(t *testing.T) {
	e := NewEstimator(stubFetcher{err: errors.New("403")})
	got := e.Estimate(context.Background(), domain.Metadata{Duration: 10, ManifestURL: "https://cdn/x.m3u8"})
	assert.Equal(t, SourceUnknown, got.Source)
}

func TestManifestSizeMedia(t *testing.T) {
	n, err := ManifestSize(strings.NewReader(mediaManifest), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), n)
}

func TestEstimateCheck(t *testing.T) {
	err := Estimate{Bytes: 9 * gib, Source: SourceFilesize}.Check(8 * gib)
	assert.ErrorIs(t, err, ErrSizeExceeded)
	assert.Contains(t, err.Error(), "9.0 GiB")

	assert.NoError(t, Estimate{Bytes: gib}.Check(8*gib))
	assert.NoError(t, Estimate{Bytes: 100 * gib}.Check(0))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "2.0 GiB", HumanSize(2*gib))
	assert.Equal(t, "0 B", HumanSize(-1))
	assert.Equal(t, "1.0 MiB/s", HumanSpeed(1<<20))
	assert.Equal(t, "-", HumanSpeed(0))
}
