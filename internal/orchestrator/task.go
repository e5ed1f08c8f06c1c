package orchestrator

import (
	"context"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/cache"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/egress"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/sizing"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/workdir"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// task is the mutable state of one Run.
type task struct {
	req      domain.DownloadRequest
	key      cache.Key
	dir      *workdir.Dir
	session  *egress.Session
	splitter *sizing.Splitter
	status   domain.ArtifactRef
	summary  Summary
	logger   types.Logger
}

func (t *task) release(ctx context.Context) {
	if err := t.dir.Release(); err != nil {
		t.logger.Warn(ctx, "Failed to remove task directory", types.Fields{
			"path":  t.dir.Path,
			"error": err.Error(),
		})
	}
}
