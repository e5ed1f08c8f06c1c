package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/logger"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// traceKeys are the metadata keys an upstream trace id may arrive under.
var traceKeys = []string{
	"trace_id",
	"x-trace-id",
	"x-b3-traceid",
	"x-request-id",
	"correlation-id",
}

// LoggingMiddleware logs the start and outcome of every request.
func LoggingMiddleware(provider types.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			log := provider.Logger("handler").WithFields(types.Fields{
				"request_id": req.ID,
				"type":       req.Type,
				"source":     req.Source,
				"worker":     WorkerName(ctx),
			})

			log.Info(ctx, "Processing request", types.Fields{"payload_size": len(req.Payload)})
			start := time.Now()

			resp, err := next(ctx, req)
			duration := time.Since(start)

			switch {
			case err != nil:
				log.Error(ctx, "Request failed with error", err, types.Fields{
					"duration_ms": duration.Milliseconds(),
				})
			case !resp.Success && resp.Error != nil:
				log.Warn(ctx, "Request completed with failure", types.Fields{
					"error_code":  resp.Error.Code,
					"error_msg":   resp.Error.Message,
					"duration_ms": duration.Milliseconds(),
				})
			default:
				log.Info(ctx, "Request completed successfully", types.Fields{
					"duration_ms": duration.Milliseconds(),
				})
			}

			resp.Duration = duration
			return resp, err
		}
	}
}

// MetricsMiddleware records the duration and outcome per worker.
func MetricsMiddleware(provider types.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			metrics := provider.Metrics("handler")

			name := WorkerName(ctx)
			if name == "" {
				name = "unknown"
			}

			metrics.StartOperation(name)
			defer metrics.EndOperation(name)
			start := time.Now()

			resp, err := next(ctx, req)
			metrics.RecordDuration(name, time.Since(start).Seconds())

			switch {
			case err != nil:
				metrics.RecordError(name, "processing_error")
			case !resp.Success:
				code := "unknown_error"
				if resp.Error != nil {
					code = resp.Error.Code
				}
				metrics.RecordError(name, code)
			default:
				metrics.RecordSuccess(name)
			}
			return resp, err
		}
	}
}

// RecoveryMiddleware turns a panic into an INTERNAL_ERROR response. It must
// be the outermost middleware.
func RecoveryMiddleware(provider types.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (resp Response, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				provider.Logger("handler").Error(ctx, "Panic recovered", fmt.Errorf("%v", r), types.Fields{
					"request_id": req.ID,
					"worker":     WorkerName(ctx),
					"stack":      string(debug.Stack()),
				})
				provider.Metrics("handler").RecordError("panic", "panic_recovered")

				// panic details stay in the operator log
				resp = NewErrorResponse(req.ID, CodeInternal, "An internal error occurred", "")
				err = nil
			}()

			return next(ctx, req)
		}
	}
}

// TracingMiddleware puts a trace id on the context, reusing an upstream one
// from the request metadata when present.
func TracingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			traceID := extractTraceID(req)
			if traceID == "" {
				traceID = uuid.NewString()
			}

			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
			req.SetMetadata("trace_id", traceID)

			resp, err := next(ctx, req)

			if resp.Metadata == nil {
				resp.Metadata = make(map[string]string)
			}
			resp.Metadata["trace_id"] = traceID
			return resp, err
		}
	}
}

// ValidationMiddleware rejects requests without a type or with a missing,
// oversized or malformed payload. It fills in a missing ID and timestamp.
func ValidationMiddleware(maxPayload int64) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			if req.Timestamp.IsZero() {
				req.Timestamp = time.Now().UTC()
			}

			switch {
			case req.Type == "":
				return NewErrorResponse(req.ID, CodeValidation, "Request type is required", "missing 'type' field"), nil
			case len(req.Payload) == 0:
				return NewErrorResponse(req.ID, CodeValidation, "Request payload is required", "empty payload"), nil
			case maxPayload > 0 && int64(len(req.Payload)) > maxPayload:
				return NewErrorResponse(req.ID, CodeTooLarge, "Request payload is too large",
					fmt.Sprintf("%d bytes, limit %d", len(req.Payload), maxPayload)), nil
			case !json.Valid(req.Payload):
				return NewErrorResponse(req.ID, CodeValidation, "Invalid JSON payload", "payload must be valid JSON"), nil
			}

			return next(ctx, req)
		}
	}
}

func extractTraceID(req Request) string {
	for _, key := range traceKeys {
		if val, ok := req.Metadata[key]; ok && val != "" {
			return val
		}
	}
	return ""
}
