// Package mocks provides testify mocks of the domain ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// MockExtractionEngine is a mock implementation of domain.ExtractionEngine
type MockExtractionEngine struct {
	mock.Mock
}

func (m *MockExtractionEngine) Probe(ctx context.Context, url string, opts domain.ExtractOptions) (domain.Metadata, error) {
	args := m.Called(ctx, url, opts)
	meta, _ := args.Get(0).(domain.Metadata)
	return meta, args.Error(1)
}

func (m *MockExtractionEngine) Extract(ctx context.Context, url string, opts domain.ExtractOptions) (domain.MediaStream, error) {
	args := m.Called(ctx, url, opts)
	stream, _ := args.Get(0).(domain.MediaStream)
	return stream, args.Error(1)
}

// MockFallbackEngine is a mock implementation of domain.FallbackEngine
type MockFallbackEngine struct {
	mock.Mock
}

func (m *MockFallbackEngine) DownloadRange(ctx context.Context, url, rangeExpr string, egress domain.EgressProfile, outputDir string) (bool, error) {
	args := m.Called(ctx, url, rangeExpr, egress, outputDir)
	return args.Bool(0), args.Error(1)
}

// MockClassifier is a mock implementation of domain.Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) IsRestricted(ctx context.Context, url, title, description string) bool {
	args := m.Called(ctx, url, title, description)
	return args.Bool(0)
}
