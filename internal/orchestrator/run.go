package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/failure"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/playlist"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

func (o *Orchestrator) runSingle(ctx context.Context, t *task) {
	t.summary.Requested = 1

	// subtitle requests never read the cache: the cached copy has none
	if !t.req.WantSubtitles {
		if entry, ok := o.deps.Cache.Lookup(ctx, t.key); ok {
			err := o.forwardCached(ctx, t, entry.Refs)
			if err == nil {
				t.summary.Delivered++
				t.summary.Cached++
				return
			}
			if errors.Is(err, domain.ErrMessageGone) {
				o.invalidate(ctx, t, o.deps.Cache.Invalidate(ctx, t.key))
			}
		}
	}

	o.record(ctx, t, 0, o.processItem(ctx, t, 0))
}

func (o *Orchestrator) runPlaylist(ctx context.Context, t *task) {
	rng, err := playlist.New(t.req.PlaylistStart, t.req.PlaylistEnd)
	if err != nil {
		t.summary.Requested = 1
		o.record(ctx, t, 0, domain.FatalFailure{Kind: failure.FatalExtraction, Reason: err.Error()})
		return
	}

	total := 0
	if rng.NeedsCount() {
		total, err = o.playlistCount(ctx, t)
		if err != nil {
			t.summary.Requested = rng.Count()
			o.record(ctx, t, 0, o.failed(err))
			return
		}
	}

	indices, err := rng.Resolve(total)
	if err != nil {
		t.summary.Requested = rng.Count()
		o.record(ctx, t, 0, domain.FatalFailure{Kind: failure.FatalExtraction, Reason: err.Error()})
		return
	}
	t.summary.Requested = len(indices)

	var hits map[int][]domain.ArtifactRef
	if !t.req.WantSubtitles {
		hits = o.deps.Cache.LookupMany(ctx, t.key, indices)
	}
	o.deps.Logger.Info(ctx, "Playlist resolved", types.Fields{
		"range":  rng.String(),
		"total":  total,
		"items":  len(indices),
		"cached": len(hits),
	})

	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			o.record(ctx, t, idx, domain.FatalFailure{Kind: failure.ClassifyError(err), Reason: err.Error()})
			return
		}

		if refs, ok := hits[idx]; ok {
			err := o.forwardCached(ctx, t, refs)
			if err == nil {
				t.summary.Delivered++
				t.summary.Cached++
				continue
			}
			if errors.Is(err, domain.ErrMessageGone) {
				o.invalidate(ctx, t, o.deps.Cache.InvalidateIndex(ctx, t.key, idx))
			}
		}

		if stop := o.record(ctx, t, idx, o.processItem(ctx, t, idx)); stop {
			return
		}
	}
}

// playlistCount probes the playlist length, switching egress on credential
// and geo failures like an item attempt does.
func (o *Orchestrator) playlistCount(ctx context.Context, t *task) (int, error) {
	for {
		opts := domain.ExtractOptions{}.WithEgress(t.session.Current())
		meta, err := o.deps.Engine.Probe(ctx, t.req.URL, opts)
		if err == nil {
			if meta.PlaylistCount <= 0 {
				return 0, fmt.Errorf("%w: no playlist entries", domain.ErrNoContent)
			}
			t.session.Succeeded()
			return meta.PlaylistCount, nil
		}

		kind := kindOf(err)
		if kind != failure.RetryableCredential && kind != failure.RetryableGeo {
			return 0, err
		}
		if _, ok := t.session.Next(kind); !ok {
			return 0, err
		}
		o.deps.Metrics.RecordRetry(kind.String())
	}
}

// processItem runs one uncached item to completion, delivery and cache
// write included.
func (o *Orchestrator) processItem(ctx context.Context, t *task, index int) domain.AttemptResult {
	res := o.attempt(ctx, t, index)
	success, ok := res.(domain.Success)
	if !ok {
		return res
	}

	refs, err := o.deliver(ctx, t, success)
	if err != nil {
		return domain.FatalFailure{Kind: kindOf(err), Reason: err.Error()}
	}

	o.writeCache(ctx, t, index, success.Metadata, refs)
	return success
}

// record folds an item result into the summary. It reports whether the
// task must stop.
func (o *Orchestrator) record(ctx context.Context, t *task, index int, res domain.AttemptResult) bool {
	fields := types.Fields{"index": index, "result": domain.ResultName(res)}

	switch r := res.(type) {
	case domain.Success:
		t.summary.Delivered++
		o.deps.Metrics.RecordSuccess("item")
		o.deps.Logger.Info(ctx, "Item delivered", fields)

	case domain.Skip:
		t.summary.Skipped++
		fields["reason"] = r.Reason
		o.deps.Logger.Info(ctx, "Item skipped", fields)
		if index == 0 {
			t.summary.Errors = append(t.summary.Errors, "Skipped: "+o.redactor.Redact(r.Reason))
		}

	case domain.StopAll:
		t.summary.Stopped = r.Reason
		fields["reason"] = r.Reason
		o.deps.Logger.Info(ctx, "Stopping task", fields)
		return true

	case domain.RetryableFailure:
		return o.record(ctx, t, index, domain.FatalFailure(r))

	case domain.FatalFailure:
		t.summary.Failed++
		msg := o.redactor.Message(r.Kind, r.Reason)
		if index > 0 {
			msg = fmt.Sprintf("#%d: %s", index, msg)
		}
		t.summary.Errors = append(t.summary.Errors, msg)

		fields["kind"] = r.Kind.String()
		o.deps.Metrics.RecordError("item", r.Kind.String())
		o.deps.Logger.Error(ctx, "Item failed", errors.New(r.Reason), fields)
		return r.Kind == failure.Timeout || ctx.Err() != nil
	}
	return false
}

// forwardCached delivers cached refs by forwarding them to the requester.
func (o *Orchestrator) forwardCached(ctx context.Context, t *task, refs []domain.ArtifactRef) error {
	if len(refs) == 0 {
		return domain.ErrMessageGone
	}

	ids := make([]int, len(refs))
	for i, r := range refs {
		ids[i] = r.MessageID
	}
	if _, err := o.deps.Transport.Forward(ctx, t.req.ChatID, refs[0].ChatID, ids); err != nil {
		o.deps.Logger.Warn(ctx, "Cached media could not be forwarded", types.Fields{
			"cache_key": string(t.key),
			"error":     err.Error(),
		})
		return err
	}
	o.deps.Metrics.RecordSuccess("cache.forward")
	return nil
}

// invalidate logs a failed drop of a stale entry.
func (o *Orchestrator) invalidate(ctx context.Context, t *task, err error) {
	if err != nil {
		o.deps.Logger.Error(ctx, "Failed to invalidate cache entry", err, types.Fields{"cache_key": string(t.key)})
	}
}
