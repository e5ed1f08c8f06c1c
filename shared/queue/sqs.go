package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/awsconf"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/retry"
)

// maxBatch is the SQS limit on messages per receive.
const maxBatch = 10

// SQSAPI is the part of *sqs.Client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSConsumer long-polls one queue. Every message is deleted once handled,
// except retryable failures, which are made visible again for one more
// receive.
type SQSConsumer struct {
	cfg        config.SQSConfig
	client     SQSAPI
	batch      int32
	dispatcher handler.Dispatcher
	logger     types.Logger
	metrics    types.Metrics
	backoff    retry.Policy
}

// OpenSQS builds an SQS client from cfg.
func OpenSQS(ctx context.Context, cfg config.SQSConfig, batch int, d handler.Dispatcher, logger types.Logger, metrics types.Metrics) (*SQSConsumer, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("invalid SQS configuration: queue URL is required")
	}

	awsCfg, err := awsconf.Load(ctx, awsconf.Options{Region: cfg.Region})
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewSQSConsumer(cfg, client, batch, d, logger, metrics), nil
}

// NewSQSConsumer wraps an existing client. batch is the number of messages
// requested per receive and handled at once.
func NewSQSConsumer(cfg config.SQSConfig, client SQSAPI, batch int, d handler.Dispatcher, logger types.Logger, metrics types.Metrics) *SQSConsumer {
	if batch < 1 {
		batch = 1
	}
	if batch > maxBatch {
		batch = maxBatch
	}
	return &SQSConsumer{
		cfg:        cfg,
		client:     client,
		batch:      int32(batch),
		dispatcher: d,
		logger:     logger,
		metrics:    metrics,
		backoff: retry.Policy{
			InitialBackoff:    time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2,
		},
	}
}

// Run polls until ctx is cancelled. Receive errors back off exponentially.
func (c *SQSConsumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "SQS consumer started", types.Fields{
		"queue_url": c.cfg.QueueURL,
		"batch":     c.batch,
	})

	failures := 0
	for ctx.Err() == nil {
		n, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := c.backoff.Backoff(failures)
			failures++
			c.metrics.RecordError("sqs.receive", "receive_failed")
			c.logger.Error(ctx, "Failed to receive messages", err, types.Fields{"wait": wait.String()})
			if retry.Sleep(ctx, wait) != nil {
				break
			}
			continue
		}
		failures = 0
		if n > 0 {
			c.logger.Debug(ctx, "Batch handled", types.Fields{"messages": n})
		}
	}
	return nil
}

// poll receives one batch and handles its messages concurrently.
func (c *SQSConsumer) poll(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages:         c.batch,
		WaitTimeSeconds:             int32(c.cfg.WaitTime / time.Second),
		VisibilityTimeout:           int32(c.cfg.VisibilityTimeout / time.Second),
		MessageAttributeNames:       []string{"All"},
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{sqstypes.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, msg := range out.Messages {
		wg.Add(1)
		go func(msg sqstypes.Message) {
			defer wg.Done()
			c.handle(ctx, msg)
		}(msg)
	}
	wg.Wait()
	return len(out.Messages), nil
}

func (c *SQSConsumer) handle(ctx context.Context, msg sqstypes.Message) {
	start := time.Now()
	req := messageRequest(msg)

	resp, err := c.dispatcher.Handle(ctx, req)
	result := settle(ctx, resp, err, receiveCount(msg) > 1)
	fields := types.Fields{"request_id": req.ID, "outcome": result.String()}

	// settle even when ctx is done so the message is not left invisible
	settleCtx := context.WithoutCancel(ctx)
	var settleErr error
	if result == requeue {
		_, settleErr = c.client.ChangeMessageVisibility(settleCtx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          aws.String(c.cfg.QueueURL),
			ReceiptHandle:     msg.ReceiptHandle,
			VisibilityTimeout: 0,
		})
	} else {
		_, settleErr = c.client.DeleteMessage(settleCtx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.cfg.QueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
	}
	if settleErr != nil {
		c.logger.Error(ctx, "Failed to settle message", settleErr, fields)
	}

	c.metrics.RecordDuration("sqs.message", time.Since(start).Seconds())
	if result == ack {
		c.metrics.RecordSuccess("sqs.message")
		c.logger.Info(ctx, "Message processed", fields)
		return
	}
	c.metrics.RecordError("sqs.message", result.String())
	c.logger.Warn(ctx, "Message processing failed", fields)
}

// Close is a no-op; the SDK client holds no connection.
func (c *SQSConsumer) Close() error { return nil }

func messageRequest(msg sqstypes.Message) handler.Request {
	req := handler.Request{
		ID:        aws.ToString(msg.MessageId),
		Source:    "sqs",
		Type:      handler.TypeDownload,
		Payload:   json.RawMessage(aws.ToString(msg.Body)),
		Metadata:  make(map[string]string, len(msg.MessageAttributes)),
		Timestamp: time.Now().UTC(),
	}
	for k, v := range msg.MessageAttributes {
		if v.StringValue != nil {
			req.Metadata[k] = *v.StringValue
		}
	}
	if t, ok := req.Metadata["type"]; ok && t != "" {
		req.Type = t
	}
	return req
}

func receiveCount(msg sqstypes.Message) int {
	n, _ := strconv.Atoi(msg.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)])
	return n
}
