package handler

import "context"

// Worker is the business logic behind a Handler. It does not know which
// intake delivered the request.
type Worker interface {
	// Name identifies the worker in logs and metrics.
	Name() string

	// Process handles one request. Business failures are reported in the
	// Response; the error is reserved for requests that should be
	// redelivered.
	Process(ctx context.Context, request Request) (Response, error)

	// Health reports whether the worker's dependencies are usable.
	Health(ctx context.Context) error
}
