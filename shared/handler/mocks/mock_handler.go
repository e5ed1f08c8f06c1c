package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
)

// MockDispatcher is a mock implementation of handler.Dispatcher.
// Use it to test intakes without a worker behind them.
type MockDispatcher struct {
	mock.Mock
}

var _ handler.Dispatcher = (*MockDispatcher)(nil)

func (m *MockDispatcher) Handle(ctx context.Context, req handler.Request) (handler.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(handler.Response)
	return resp, args.Error(1)
}

func (m *MockDispatcher) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
