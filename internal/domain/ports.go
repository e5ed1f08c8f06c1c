package domain

import (
	"context"
	"time"
)

// ExtractionEngine probes and downloads media from a URL.
type ExtractionEngine interface {
	Probe(ctx context.Context, url string, opts ExtractOptions) (Metadata, error)
	Extract(ctx context.Context, url string, opts ExtractOptions) (MediaStream, error)
}

// FallbackEngine downloads into outputDir when the primary engine cannot
// handle a URL. It reports whether anything was downloaded.
type FallbackEngine interface {
	DownloadRange(ctx context.Context, url, rangeExpr string, egress EgressProfile, outputDir string) (bool, error)
}

// Transport delivers messages to the chat platform.
type Transport interface {
	Send(ctx context.Context, chatID int64, p Payload) (ArtifactRef, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
	Forward(ctx context.Context, destChatID, srcChatID int64, messageIDs []int) ([]ArtifactRef, error)
}

// Classifier decides whether content is restricted and must not be cached.
type Classifier interface {
	IsRestricted(ctx context.Context, url, title, description string) bool
}

// MediaTool inspects and cuts local media files.
type MediaTool interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Cut(ctx context.Context, src, dst string, start, length time.Duration) error
	Thumbnail(ctx context.Context, src, dst string, at time.Duration) error
}
