package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// MockProvider is a mock implementation of the Provider interface
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Logger(component string) types.Logger {
	args := m.Called(component)
	if l, ok := args.Get(0).(types.Logger); ok {
		return l
	}
	return nil
}

func (m *MockProvider) Metrics(component string) types.Metrics {
	args := m.Called(component)
	if mt, ok := args.Get(0).(types.Metrics); ok {
		return mt
	}
	return nil
}

func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}

// NewPermissiveProvider returns a MockProvider handing out permissive
// loggers and metrics for every component.
func NewPermissiveProvider() *MockProvider {
	m := &MockProvider{}
	m.On("Logger", mock.Anything).Return(NewPermissiveLogger()).Maybe()
	m.On("Metrics", mock.Anything).Return(NewPermissiveMetrics()).Maybe()
	m.On("Close").Return(nil).Maybe()
	return m
}
