package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/cache"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	handlermocks "github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler/mocks"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/mocks"
)

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, key cache.Key) error {
	return m.Called(ctx, key).Error(0)
}

func newTestServer(d handler.Dispatcher, inv Invalidator) *Server {
	s := New(config.HTTPConfig{Addr: ":0"}, d, inv, mocks.NewPermissiveLogger(), mocks.NewPermissiveMetrics())
	s.metricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("# metrics\n"))
	})
	return s
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		d := &handlermocks.MockDispatcher{}
		d.On("Health", mock.Anything).Return(nil)

		rec := serve(newTestServer(d, nil), http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("unhealthy", func(t *testing.T) {
		d := &handlermocks.MockDispatcher{}
		d.On("Health", mock.Anything).Return(errors.New("yt-dlp: not found"))

		rec := serve(newTestServer(d, nil), http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "yt-dlp: not found")
	})
}

func TestMetricsRoute(t *testing.T) {
	rec := serve(newTestServer(&handlermocks.MockDispatcher{}, nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics\n", rec.Body.String())
}

func TestSubmitWait(t *testing.T) {
	body := `{"url":"https://example.com/v","quality":"720p","requester_id":7,"chat_id":7}`

	success, err := handler.NewSuccessResponse("ignored", map[string]int{"delivered": 1})
	require.NoError(t, err)

	d := &handlermocks.MockDispatcher{}
	d.On("Handle", mock.Anything, mock.MatchedBy(func(r handler.Request) bool {
		return r.Source == "http" && r.Type == handler.TypeDownload && r.ID != "" &&
			string(r.Payload) == body && r.Metadata["trace_id"] == "abc"
	})).Return(success, nil)

	s := newTestServer(d, nil)
	req := httptest.NewRequest(http.MethodPost, "/tasks?wait=1", strings.NewReader(body))
	req.Header.Set("X-Trace-Id", "abc")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp handler.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	d.AssertExpectations(t)
}

func TestSubmitWaitStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		resp handler.Response
		err  error
		want int
	}{
		{"validation", handler.NewErrorResponse("x", handler.CodeValidation, "bad url", ""), nil, http.StatusBadRequest},
		{"unavailable", handler.NewErrorResponse("x", handler.CodeUnavailable, "disk full", ""), nil, http.StatusServiceUnavailable},
		{"internal", handler.NewErrorResponse("x", handler.CodeInternal, "panic", ""), nil, http.StatusUnprocessableEntity},
		{"handler error", handler.Response{}, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &handlermocks.MockDispatcher{}
			d.On("Handle", mock.Anything, mock.Anything).Return(tt.resp, tt.err)

			rec := serve(newTestServer(d, nil), http.MethodPost, "/tasks?wait=1", `{"url":"https://example.com"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSubmitAsync(t *testing.T) {
	done := make(chan struct{})
	d := &handlermocks.MockDispatcher{}
	d.On("Handle", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(handler.Response{Success: true}, nil)

	s := newTestServer(d, nil)
	rec := serve(s, http.MethodPost, "/tasks", `{"url":"https://example.com"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out["id"])

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not dispatched")
	}
	s.tasks.Wait()
}

func TestSubmitRejectsInvalidJSON(t *testing.T) {
	d := &handlermocks.MockDispatcher{}
	rec := serve(newTestServer(d, nil), http.MethodPost, "/tasks", `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	d.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}

func TestInvalidate(t *testing.T) {
	t.Run("single item", func(t *testing.T) {
		inv := &mockInvalidator{}
		inv.On("Invalidate", mock.Anything, cache.NewKey("https://example.com/v", "720p")).Return(nil)

		rec := serve(newTestServer(&handlermocks.MockDispatcher{}, inv), http.MethodDelete,
			"/cache?url=https://example.com/v&quality=720p", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		inv.AssertExpectations(t)
	})

	t.Run("playlist with default quality", func(t *testing.T) {
		inv := &mockInvalidator{}
		inv.On("Invalidate", mock.Anything, cache.NewPlaylistKey("https://example.com/list", "best")).Return(nil)

		rec := serve(newTestServer(&handlermocks.MockDispatcher{}, inv), http.MethodDelete,
			"/cache?url=https://example.com/list&playlist=1", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		inv.AssertExpectations(t)
	})

	t.Run("bad input", func(t *testing.T) {
		inv := &mockInvalidator{}
		s := newTestServer(&handlermocks.MockDispatcher{}, inv)

		assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodDelete, "/cache?quality=720p", "").Code)
		assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodDelete, "/cache?url=https://example.com&quality=hd", "").Code)
		inv.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("store error", func(t *testing.T) {
		inv := &mockInvalidator{}
		inv.On("Invalidate", mock.Anything, mock.Anything).Return(errors.New("db down"))

		rec := serve(newTestServer(&handlermocks.MockDispatcher{}, inv), http.MethodDelete,
			"/cache?url=https://example.com/v", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := serve(newTestServer(&handlermocks.MockDispatcher{}, nil), http.MethodDelete,
			"/cache?url=https://example.com/v", "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newTestServer(&handlermocks.MockDispatcher{}, nil)
	s.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
