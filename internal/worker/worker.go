// Package worker adapts the orchestrator to the intake handler: it decodes
// download requests, bounds how many tasks run at once and reports the task
// summary as the response.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/orchestrator"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// Runner executes a download task.
type Runner interface {
	Run(ctx context.Context, req domain.DownloadRequest) (orchestrator.Summary, error)
}

// Check is a named dependency probe used by Health.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// TaskWorker implements handler.Worker for download requests.
type TaskWorker struct {
	runner  Runner
	slots   chan struct{}
	checks  []Check
	logger  types.Logger
	metrics types.Metrics
}

var _ handler.Worker = (*TaskWorker)(nil)

// NewTaskWorker runs at most concurrency tasks at a time.
func NewTaskWorker(runner Runner, concurrency int, logger types.Logger, metrics types.Metrics, checks ...Check) *TaskWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TaskWorker{
		runner:  runner,
		slots:   make(chan struct{}, concurrency),
		checks:  checks,
		logger:  logger,
		metrics: metrics,
	}
}

func (w *TaskWorker) Name() string {
	return "mediabot"
}

// Process decodes and runs one download request. It waits for a free slot;
// a cancelled wait is returned as an error so the intake redelivers.
func (w *TaskWorker) Process(ctx context.Context, request handler.Request) (handler.Response, error) {
	if request.Type != handler.TypeDownload {
		return handler.NewErrorResponse(request.ID, handler.CodeValidation,
			"Unsupported request type", fmt.Sprintf("type %q", request.Type)), nil
	}

	var req domain.DownloadRequest
	if err := request.Unmarshal(&req); err != nil {
		w.metrics.RecordError("worker_process", "invalid_payload")
		return handler.NewErrorResponse(request.ID, handler.CodeValidation,
			"Failed to parse download request", err.Error()), nil
	}
	if req.TaskID == "" {
		req.TaskID = request.ID
	}

	waited := time.Now()
	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		w.metrics.RecordError("worker_process", "cancelled")
		return handler.NewErrorResponse(request.ID, handler.CodeCancelled,
			"Worker is shutting down", ""), ctx.Err()
	}
	defer func() { <-w.slots }()

	w.metrics.StartOperation("worker_process")
	defer w.metrics.EndOperation("worker_process")
	w.metrics.RecordDuration("worker_queue_wait", time.Since(waited).Seconds())

	summary, err := w.runner.Run(ctx, req)
	if err != nil {
		return w.failed(ctx, request.ID, err), nil
	}

	resp, err := handler.NewSuccessResponse(request.ID, summary)
	if err != nil {
		return handler.NewErrorResponse(request.ID, handler.CodeInternal,
			"Failed to encode task summary", err.Error()), nil
	}
	resp.Metadata["task_id"] = summary.TaskID
	resp.Metadata["status"] = summary.StatusLine()

	w.metrics.RecordSuccess("worker_process")
	return resp, nil
}

func (w *TaskWorker) failed(ctx context.Context, id string, err error) handler.Response {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		w.metrics.RecordError("worker_process", domainErr.Code)
		resp := handler.NewErrorResponse(id, handler.CodeValidation, domainErr.Message, domainErr.Code)
		resp.Error.Retryable = domainErr.Retryable
		return resp
	}

	w.metrics.RecordError("worker_process", "setup")
	w.logger.Error(ctx, "Task could not start", err, types.Fields{"request_id": id})
	return handler.NewErrorResponse(id, handler.CodeUnavailable, "Task could not start", err.Error())
}

// Health runs every dependency check and joins the failures.
func (w *TaskWorker) Health(ctx context.Context) error {
	var errs []error
	for _, c := range w.checks {
		if err := c.Probe(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}
