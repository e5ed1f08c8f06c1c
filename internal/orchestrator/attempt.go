package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/failure"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/progress"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/sizing"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/retry"
)

// attempt extracts one item. Credential and geo failures move the session to
// its next egress profile, transient failures back off, and unsupported
// content goes to the fallback engine. The result is never a
// RetryableFailure.
func (o *Orchestrator) attempt(ctx context.Context, t *task, index int) domain.AttemptResult {
	outDir, err := t.dir.Sub(itemDir(index))
	if err != nil {
		return domain.FatalFailure{Kind: failure.FatalExtraction, Reason: err.Error()}
	}

	transient := 0
	for {
		res := o.extract(ctx, t, index, outDir)

		switch r := res.(type) {
		case domain.Success:
			t.session.Succeeded()
			return r

		case domain.RetryableFailure:
			fields := types.Fields{"index": index, "kind": r.Kind.String(), "reason": r.Reason}

			switch r.Kind {
			case failure.RetryableCredential, failure.RetryableGeo:
				if _, ok := t.session.Next(r.Kind); ok {
					o.deps.Metrics.RecordRetry(r.Kind.String())
					o.deps.Logger.Warn(ctx, "Retrying with another egress profile", fields)
					continue
				}
			case failure.RetryableTransient:
				if transient < o.retry.MaxAttempts {
					wait := o.retry.Backoff(transient)
					transient++
					fields["wait"] = wait.String()
					o.deps.Metrics.RecordRetry(r.Kind.String())
					o.deps.Logger.Warn(ctx, "Transient failure, backing off", fields)
					if err := retry.Sleep(ctx, wait); err != nil {
						return domain.FatalFailure{Kind: failure.ClassifyError(err), Reason: err.Error()}
					}
					continue
				}
			}
			return domain.FatalFailure{Kind: r.Kind, Reason: r.Reason}

		case domain.FatalFailure:
			if r.Kind == failure.UnsupportedFormat && o.deps.Fallback != nil {
				return o.fallback(ctx, t, index, r)
			}
			return r

		default:
			return res
		}
	}
}

// extract is a single probe, estimate and download with the current
// egress profile.
func (o *Orchestrator) extract(ctx context.Context, t *task, index int, outDir string) domain.AttemptResult {
	opts := o.options(t, index, outDir).WithEgress(t.session.Current())

	meta, err := o.deps.Engine.Probe(ctx, t.req.URL, opts)
	if err != nil {
		return o.failed(err)
	}

	est := o.deps.Estimator.Estimate(ctx, meta)
	if err := est.Check(o.cfg.Limits.MaxEstimatedSize); err != nil {
		return domain.FatalFailure{Kind: failure.SizeExceeded, Reason: err.Error()}
	}

	slot := &progress.Slot{}
	opts.Progress = slot.Callback(ctx.Err)
	reporter := o.startReporter(t, slot, meta.Title)

	stream, err := o.deps.Engine.Extract(ctx, t.req.URL, opts)
	o.stopReporter(ctx, reporter)
	if err != nil {
		return o.failed(err)
	}

	return domain.Success{ArtifactPath: stream.Path, Metadata: meta}
}

// fallback retries an unsupported item with the fallback engine, in a fresh
// directory.
func (o *Orchestrator) fallback(ctx context.Context, t *task, index int, cause domain.FatalFailure) domain.AttemptResult {
	outDir, err := t.dir.Sub(itemDir(index) + "-fallback")
	if err != nil {
		return cause
	}

	rangeExpr := ""
	if index > 0 {
		rangeExpr = strconv.Itoa(index)
	}

	o.deps.Logger.Info(ctx, "Trying fallback engine", types.Fields{"index": index, "cause": cause.Reason})
	ok, err := o.deps.Fallback.DownloadRange(ctx, t.req.URL, rangeExpr, t.session.Current(), outDir)
	switch {
	case err != nil:
		o.deps.Metrics.RecordError("fallback", kindOf(err).String())
		return domain.FatalFailure{Kind: kindOf(err), Reason: err.Error()}
	case !ok:
		o.deps.Metrics.RecordError("fallback", "empty")
		return cause
	}

	o.deps.Metrics.RecordSuccess("fallback")
	return domain.Success{ArtifactPath: outDir, Metadata: domain.Metadata{WebpageURL: t.req.URL}}
}

func (o *Orchestrator) options(t *task, index int, outDir string) domain.ExtractOptions {
	opts := domain.ExtractOptions{
		Format:        o.deps.FormatFor(t.req.Quality),
		OutputDir:     outDir,
		WantSubtitles: t.req.WantSubtitles,
		MaxFilesize:   o.cfg.Limits.MaxEstimatedSize,
		Filter:        o.filter,
	}
	if index > 0 {
		opts.PlaylistItems = strconv.Itoa(index)
	}
	return opts
}

// filter rejects live streams and items over the duration limit.
func (o *Orchestrator) filter(meta domain.Metadata) domain.FilterDecision {
	if meta.IsLive {
		return domain.FilterDecision{Reason: "live streams are not supported"}
	}
	if limit := o.cfg.Limits.MaxDuration; limit > 0 && meta.Length() > limit {
		return domain.FilterDecision{Reason: fmt.Sprintf("longer than %s", sizing.HumanDuration(limit))}
	}
	return domain.FilterDecision{Accept: true}
}

// failed maps an engine error onto an attempt result.
func (o *Orchestrator) failed(err error) domain.AttemptResult {
	var rejected *domain.RejectedError
	switch {
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return domain.StopAll{Reason: err.Error()}
	case errors.As(err, &rejected):
		return domain.Skip{Reason: rejected.Reason}
	case errors.Is(err, domain.ErrRejected):
		return domain.Skip{Reason: err.Error()}
	}

	kind := kindOf(err)
	if kind.Retryable() {
		return domain.RetryableFailure{Kind: kind, Reason: err.Error()}
	}
	return domain.FatalFailure{Kind: kind, Reason: err.Error()}
}

func kindOf(err error) failure.Kind {
	switch {
	case errors.Is(err, domain.ErrNoContent):
		return failure.UnsupportedFormat
	case errors.Is(err, sizing.ErrSizeExceeded), errors.Is(err, sizing.ErrTooManyParts):
		return failure.SizeExceeded
	}
	return failure.ClassifyError(err)
}

func (o *Orchestrator) startReporter(t *task, slot *progress.Slot, title string) *progress.Reporter {
	if o.deps.Hub == nil || t.status.MessageID == 0 {
		return nil
	}
	r := progress.NewReporter(o.deps.Hub, t.req.ChatID, t.status.MessageID, slot, o.schedule, progress.DownloadRenderer(title))
	r.Start()
	return r
}

func (o *Orchestrator) stopReporter(ctx context.Context, r *progress.Reporter) {
	if r == nil {
		return
	}
	if !r.Stop(o.cfg.Progress.JoinTimeout) {
		o.deps.Logger.Warn(ctx, "Progress reporter did not stop in time", nil)
	}
}

func itemDir(index int) string {
	if index == 0 {
		return "item"
	}
	return "item-" + strconv.Itoa(index)
}
