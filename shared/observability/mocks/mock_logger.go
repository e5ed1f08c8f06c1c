// Package mocks provides testify mocks of the observability interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// MockLogger is a mock implementation of the Logger interface
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(ctx context.Context, msg string, fields types.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Error(ctx context.Context, msg string, err error, fields types.Fields) {
	m.Called(ctx, msg, err, fields)
}

func (m *MockLogger) Warn(ctx context.Context, msg string, fields types.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Debug(ctx context.Context, msg string, fields types.Fields) {
	m.Called(ctx, msg, fields)
}

// WithFields returns the configured logger, or the mock itself when the
// expectation returns nil.
func (m *MockLogger) WithFields(fields types.Fields) types.Logger {
	args := m.Called(fields)
	if l, ok := args.Get(0).(types.Logger); ok {
		return l
	}
	return m
}

// NewPermissiveLogger returns a MockLogger that accepts every call.
func NewPermissiveLogger() *MockLogger {
	m := &MockLogger{}
	m.On("Info", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	m.On("Error", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	m.On("Warn", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	m.On("Debug", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	m.On("WithFields", mock.Anything).Return(nil).Maybe()
	return m
}
