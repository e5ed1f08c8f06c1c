package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/mocks"
)

func TestSettle(t *testing.T) {
	success, _ := handler.NewSuccessResponse("r", nil)
	permanent := handler.NewErrorResponse("r", handler.CodeValidation, "bad url", "")
	retryable := handler.NewErrorResponse("r", handler.CodeUnavailable, "disk full", "")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name        string
		ctx         context.Context
		resp        handler.Response
		err         error
		redelivered bool
		want        outcome
	}{
		{"success", context.Background(), success, nil, false, ack},
		{"permanent failure", context.Background(), permanent, nil, false, ack},
		{"retryable failure", context.Background(), retryable, nil, false, requeue},
		{"retryable failure redelivered", context.Background(), retryable, nil, true, drop},
		{"handler error", context.Background(), handler.Response{}, errors.New("cancelled"), false, requeue},
		{"shutdown", cancelled, success, nil, false, requeue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, settle(tt.ctx, tt.resp, tt.err, tt.redelivered))
		})
	}
}

func TestOpenNone(t *testing.T) {
	c, err := Open(context.Background(), config.QueueConfig{Provider: "none"}, nil, mocks.NewPermissiveProvider())
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = Open(context.Background(), config.QueueConfig{Provider: "kafka"}, nil, mocks.NewPermissiveProvider())
	assert.Error(t, err)
}
