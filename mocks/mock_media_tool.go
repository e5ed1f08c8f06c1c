package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockMediaTool is a mock implementation of domain.MediaTool
type MockMediaTool struct {
	mock.Mock
}

func (m *MockMediaTool) Duration(ctx context.Context, path string) (time.Duration, error) {
	args := m.Called(ctx, path)
	d, _ := args.Get(0).(time.Duration)
	return d, args.Error(1)
}

func (m *MockMediaTool) Cut(ctx context.Context, src, dst string, start, length time.Duration) error {
	args := m.Called(ctx, src, dst, start, length)
	return args.Error(0)
}

func (m *MockMediaTool) Thumbnail(ctx context.Context, src, dst string, at time.Duration) error {
	args := m.Called(ctx, src, dst, at)
	return args.Error(0)
}
