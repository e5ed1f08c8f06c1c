package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
)

// MockTransport is a mock implementation of domain.Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, chatID int64, p domain.Payload) (domain.ArtifactRef, error) {
	args := m.Called(ctx, chatID, p)
	if fn, ok := args.Get(0).(func(context.Context, int64, domain.Payload) (domain.ArtifactRef, error)); ok {
		return fn(ctx, chatID, p)
	}
	ref, _ := args.Get(0).(domain.ArtifactRef)
	return ref, args.Error(1)
}

func (m *MockTransport) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	args := m.Called(ctx, chatID, messageID, text)
	return args.Error(0)
}

func (m *MockTransport) Forward(ctx context.Context, destChatID, srcChatID int64, messageIDs []int) ([]domain.ArtifactRef, error) {
	args := m.Called(ctx, destChatID, srcChatID, messageIDs)

	var refs []domain.ArtifactRef
	if args.Get(0) != nil {
		refs = args.Get(0).([]domain.ArtifactRef)
	}
	return refs, args.Error(1)
}
