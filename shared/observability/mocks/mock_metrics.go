package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockMetrics is a mock implementation of the Metrics interface
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordSuccess(operationType string) {
	m.Called(operationType)
}

func (m *MockMetrics) RecordError(operationType string, errorType string) {
	m.Called(operationType, errorType)
}

func (m *MockMetrics) RecordDuration(operation string, duration float64) {
	m.Called(operation, duration)
}

func (m *MockMetrics) RecordFileSize(mediaType string, bytes int64) {
	m.Called(mediaType, bytes)
}

func (m *MockMetrics) RecordCacheLookup(hit bool) {
	m.Called(hit)
}

func (m *MockMetrics) RecordRetry(kind string) {
	m.Called(kind)
}

func (m *MockMetrics) StartOperation(operation string) {
	m.Called(operation)
}

func (m *MockMetrics) EndOperation(operation string) {
	m.Called(operation)
}

// NewPermissiveMetrics returns a MockMetrics that accepts every call.
// Use it when a test asserts on behavior rather than on metrics.
func NewPermissiveMetrics() *MockMetrics {
	m := &MockMetrics{}
	m.On("RecordSuccess", mock.Anything).Return().Maybe()
	m.On("RecordError", mock.Anything, mock.Anything).Return().Maybe()
	m.On("RecordDuration", mock.Anything, mock.Anything).Return().Maybe()
	m.On("RecordFileSize", mock.Anything, mock.Anything).Return().Maybe()
	m.On("RecordCacheLookup", mock.Anything).Return().Maybe()
	m.On("RecordRetry", mock.Anything).Return().Maybe()
	m.On("StartOperation", mock.Anything).Return().Maybe()
	m.On("EndOperation", mock.Anything).Return().Maybe()
	return m
}
