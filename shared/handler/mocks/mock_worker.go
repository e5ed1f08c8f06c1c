// Package mocks provides testify mocks of the handler interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
)

// MockWorker is a mock implementation of handler.Worker.
type MockWorker struct {
	mock.Mock
}

var _ handler.Worker = (*MockWorker)(nil)

func (m *MockWorker) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockWorker) Process(ctx context.Context, request handler.Request) (handler.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(handler.Response)
	return resp, args.Error(1)
}

func (m *MockWorker) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ExpectProcess expects a Process call for requests of requestType.
func (m *MockWorker) ExpectProcess(requestType string, response handler.Response, err error) *mock.Call {
	return m.On("Process",
		mock.Anything,
		mock.MatchedBy(func(req handler.Request) bool {
			return req.Type == requestType
		}),
	).Return(response, err)
}
