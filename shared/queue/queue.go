// Package queue feeds intake messages from RabbitMQ or SQS into a
// handler.Dispatcher and settles each message from the response.
package queue

import (
	"context"
	"fmt"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// Consumer delivers messages until ctx is cancelled.
type Consumer interface {
	Run(ctx context.Context) error
	Close() error
}

// outcome is how a message is settled after handling.
type outcome int

const (
	// ack removes the message.
	ack outcome = iota
	// requeue hands the message back for another attempt.
	requeue
	// drop removes a message that already failed once.
	drop
)

func (o outcome) String() string {
	switch o {
	case ack:
		return "ack"
	case requeue:
		return "requeue"
	default:
		return "drop"
	}
}

// settle decides the fate of a handled message. Retryable failures get one
// redelivery; permanent failures are acknowledged since the requester was
// already told.
func settle(ctx context.Context, resp handler.Response, err error, redelivered bool) outcome {
	retry := err != nil || ctx.Err() != nil || (!resp.Success && resp.Error != nil && resp.Error.Retryable)
	switch {
	case !retry:
		return ack
	case redelivered:
		return drop
	default:
		return requeue
	}
}

// Open builds the consumer selected by cfg.Queue.Provider. It returns nil
// for "none".
func Open(ctx context.Context, cfg config.QueueConfig, d handler.Dispatcher, provider types.Provider) (Consumer, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "rabbitmq":
		c, err := DialRabbitMQ(cfg.RabbitMQ, d, provider.Logger("queue.rabbitmq"), provider.Metrics("queue.rabbitmq"))
		if err != nil {
			return nil, err
		}
		return c, nil
	case "sqs":
		c, err := OpenSQS(ctx, cfg.SQS, cfg.Concurrency, d, provider.Logger("queue.sqs"), provider.Metrics("queue.sqs"))
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported queue provider: %s", cfg.Provider)
	}
}
