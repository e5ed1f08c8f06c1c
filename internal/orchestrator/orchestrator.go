// Package orchestrator turns a download request into delivered media.
//
// A task walks each requested item through the cache, the extraction engine
// with egress and backoff retries, the size check and delivery, and then
// writes the delivered refs back to the cache. Playlist items run one after
// another so egress state and message order stay deterministic.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/cache"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/egress"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/failure"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/progress"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/sizing"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/workdir"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/logger"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/retry"
)

const initialStatus = "Processing your request..."

// Deps are the collaborators of an Orchestrator. Fallback, Classifier,
// Estimator, Hub and FormatFor are optional.
type Deps struct {
	Engine     domain.ExtractionEngine
	Fallback   domain.FallbackEngine
	Transport  domain.Transport
	Classifier domain.Classifier
	Media      domain.MediaTool
	Cache      *cache.Cache
	Selector   *egress.Selector
	Estimator  *sizing.Estimator
	Workdirs   *workdir.Manager
	Hub        *progress.Hub
	// FormatFor maps a request quality to an engine format expression.
	FormatFor func(quality string) string

	Logger  types.Logger
	Metrics types.Metrics
}

// Orchestrator runs download tasks. It is safe for concurrent use; each Run
// owns its task state.
type Orchestrator struct {
	deps     Deps
	cfg      *config.Config
	retry    retry.Policy
	schedule progress.Schedule
	redactor *failure.Redactor
	newID    func() string
}

// New validates deps and creates an Orchestrator.
func New(cfg *config.Config, deps Deps) (*Orchestrator, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config is required")
	case deps.Engine == nil:
		return nil, errors.New("extraction engine is required")
	case deps.Transport == nil:
		return nil, errors.New("transport is required")
	case deps.Media == nil:
		return nil, errors.New("media tool is required")
	case deps.Cache == nil:
		return nil, errors.New("cache is required")
	case deps.Selector == nil:
		return nil, errors.New("egress selector is required")
	case deps.Workdirs == nil:
		return nil, errors.New("workdir manager is required")
	case deps.Logger == nil || deps.Metrics == nil:
		return nil, errors.New("logger and metrics are required")
	}

	if deps.Estimator == nil {
		deps.Estimator = sizing.NewEstimator(nil)
	}
	if deps.FormatFor == nil {
		deps.FormatFor = func(q string) string { return q }
	}

	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		retry:    retry.FromConfig(cfg.Retry),
		schedule: progress.ScheduleFromConfig(cfg.Progress),
		redactor: failure.NewRedactor(deps.Selector.Secrets()),
		newID:    uuid.NewString,
	}, nil
}

// Run executes one task and returns its summary. The error is non-nil only
// when the request is invalid or no working directory could be created;
// item failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, req domain.DownloadRequest) (Summary, error) {
	if req.TaskID == "" {
		req.TaskID = o.newID()
	}
	summary := Summary{TaskID: req.TaskID, RequesterID: req.RequesterID, ChatID: req.ChatID}

	if err := req.Validate(); err != nil {
		return summary, err
	}

	ctx = logger.WithTask(ctx, req.TaskID, req.RequesterID)
	admin := o.cfg.IsAdmin(req.RequesterID)
	if !admin && o.cfg.Limits.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Limits.TaskTimeout)
		defer cancel()
	}

	o.deps.Metrics.StartOperation("task")
	defer o.deps.Metrics.EndOperation("task")
	start := time.Now()

	t, err := o.newTask(ctx, req)
	if err != nil {
		o.deps.Metrics.RecordError("task", "setup")
		return summary, err
	}
	defer t.release(ctx)

	o.deps.Logger.Info(ctx, "Task started", types.Fields{
		"url":      req.URL,
		"quality":  req.Quality,
		"playlist": req.IsPlaylist(),
		"admin":    admin,
	})

	if req.IsPlaylist() {
		o.runPlaylist(ctx, t)
	} else {
		o.runSingle(ctx, t)
	}

	o.finish(ctx, t)

	o.deps.Metrics.RecordDuration("task", time.Since(start).Seconds())
	if t.summary.Complete() {
		o.deps.Metrics.RecordSuccess("task")
	} else {
		o.deps.Metrics.RecordError("task", "incomplete")
	}
	o.deps.Logger.Info(ctx, "Task finished", types.Fields{
		"requested": t.summary.Requested,
		"delivered": t.summary.Delivered,
		"cached":    t.summary.Cached,
		"skipped":   t.summary.Skipped,
		"failed":    t.summary.Failed,
		"duration":  time.Since(start).String(),
	})
	return t.summary, nil
}

func (o *Orchestrator) newTask(ctx context.Context, req domain.DownloadRequest) (*task, error) {
	o.deps.Workdirs.Sweep(ctx, req.RequesterID)
	dir, err := o.deps.Workdirs.Acquire(req.RequesterID, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare working directory: %w", err)
	}

	threshold := req.SplitThreshold
	if threshold <= 0 {
		threshold = o.cfg.Limits.SplitThreshold
	}
	planner := sizing.NewPlanner(threshold, o.cfg.Limits.PlatformCeiling, o.cfg.Limits.MaxParts)

	t := &task{
		req:      req,
		dir:      dir,
		session:  o.deps.Selector.NewSession(req.URL),
		splitter: sizing.NewSplitter(o.deps.Media, planner),
		summary:  Summary{TaskID: req.TaskID, RequesterID: req.RequesterID, ChatID: req.ChatID},
		logger:   o.deps.Logger,
	}
	if req.IsPlaylist() {
		t.key = cache.NewPlaylistKey(req.URL, req.Quality)
	} else {
		t.key = cache.NewKey(req.URL, req.Quality)
	}
	t.session.Initial()

	ref, err := o.deps.Transport.Send(ctx, req.ChatID, domain.Payload{Kind: domain.PayloadText, Text: initialStatus})
	if err != nil {
		o.deps.Logger.Warn(ctx, "Failed to post status message", types.Fields{"error": err.Error()})
	} else {
		t.status = ref
	}
	return t, nil
}

// finish publishes the final status. The task deadline may have passed, so
// it runs detached from ctx cancellation.
func (o *Orchestrator) finish(ctx context.Context, t *task) {
	ctx = context.WithoutCancel(ctx)
	text := t.summary.StatusText()

	if t.status.MessageID != 0 {
		if o.deps.Hub != nil {
			if o.deps.Hub.Submit(t.req.ChatID, t.status.MessageID, text) {
				o.deps.Hub.Release(t.req.ChatID, t.status.MessageID)
				return
			}
		} else if err := o.deps.Transport.Edit(ctx, t.req.ChatID, t.status.MessageID, text); err == nil {
			return
		}
	}

	if _, err := o.deps.Transport.Send(ctx, t.req.ChatID, domain.Payload{Kind: domain.PayloadText, Text: text}); err != nil {
		o.deps.Logger.Error(ctx, "Failed to deliver task summary", err, nil)
	}
}
