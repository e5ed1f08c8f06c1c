package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/logger"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/mocks"
)

// testWorker echoes the request id and records the context it saw.
type testWorker struct {
	name    string
	health  error
	process func(ctx context.Context, req Request) (Response, error)
	seen    context.Context
}

func (w *testWorker) Name() string { return w.name }

func (w *testWorker) Process(ctx context.Context, req Request) (Response, error) {
	w.seen = ctx
	if w.process != nil {
		return w.process(ctx, req)
	}
	return NewSuccessResponse(req.ID, map[string]string{"processed_by": w.name})
}

func (w *testWorker) Health(context.Context) error { return w.health }

func TestHandlerAppliesMiddlewareInOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req Request) (Response, error) {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}

	h := NewHandler(&testWorker{name: "w"}, mocks.NewPermissiveProvider(), nil)
	h.Use(mark("outer"))
	h.Use(mark("inner"))

	resp, err := h.Handle(context.Background(), Request{ID: "r-1", Type: TypeDownload})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestHandlerPutsRequestOnContext(t *testing.T) {
	w := &testWorker{name: "mediabot"}
	h := NewHandler(w, mocks.NewPermissiveProvider(), nil)

	_, err := h.Handle(context.Background(), Request{ID: "r-2"})
	require.NoError(t, err)

	assert.Equal(t, "r-2", w.seen.Value(logger.RequestIDKey))
	assert.Equal(t, "mediabot", WorkerName(w.seen))
}

func TestHandlerHealth(t *testing.T) {
	h := NewHandler(&testWorker{health: errors.New("store down")}, mocks.NewPermissiveProvider(), nil)
	assert.EqualError(t, h.Health(context.Background()), "store down")
	assert.NotNil(t, h.Config())
}

func TestFactoryCreateBuildsStandardStack(t *testing.T) {
	w := &testWorker{name: "mediabot"}
	h := NewFactory(w, mocks.NewPermissiveProvider()).Create()

	assert.Same(t, w, h.Worker())
	assert.Len(t, h.middlewares, 5)

	resp, err := h.Handle(context.Background(), Request{ID: "r-3", Type: TypeDownload, Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Metadata["trace_id"])
}

func TestFactoryWithConfigDropsOptionalMiddleware(t *testing.T) {
	h := NewFactory(&testWorker{}, mocks.NewPermissiveProvider()).
		WithConfig(&Config{}).
		Create()

	assert.Len(t, h.middlewares, 3)
}
