package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

const consumerTag = "mediabot"

// Channel is the part of *amqp.Channel the consumer uses.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Cancel(consumer string, noWait bool) error
	Close() error
}

// RabbitMQConsumer consumes download requests and, when a results queue is
// configured, publishes every response to it.
type RabbitMQConsumer struct {
	cfg        config.RabbitMQConfig
	channel    Channel
	conn       io.Closer
	dispatcher handler.Dispatcher
	logger     types.Logger
	metrics    types.Metrics
	inflight   sync.WaitGroup
}

// DialRabbitMQ connects to cfg.URL and opens a channel.
func DialRabbitMQ(cfg config.RabbitMQConfig, d handler.Dispatcher, logger types.Logger, metrics types.Metrics) (*RabbitMQConsumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c := NewRabbitMQConsumer(cfg, ch, d, logger, metrics)
	c.conn = conn
	return c, nil
}

// NewRabbitMQConsumer wraps an open channel.
func NewRabbitMQConsumer(cfg config.RabbitMQConfig, ch Channel, d handler.Dispatcher, logger types.Logger, metrics types.Metrics) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		cfg:        cfg,
		channel:    ch,
		dispatcher: d,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run declares the queues and handles deliveries until ctx is cancelled or
// the broker closes the channel. Up to PrefetchCount messages are handled
// concurrently. In-flight messages are settled before Run returns.
func (c *RabbitMQConsumer) Run(ctx context.Context) error {
	if c.cfg.PrefetchCount > 0 {
		if err := c.channel.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	q, err := c.channel.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}
	if c.cfg.ResultsQueue != "" {
		if _, err := c.channel.QueueDeclare(c.cfg.ResultsQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", c.cfg.ResultsQueue, err)
		}
	}

	deliveries, err := c.channel.Consume(q.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", q.Name, err)
	}

	c.logger.Info(ctx, "RabbitMQ consumer started", types.Fields{
		"queue":    q.Name,
		"prefetch": c.cfg.PrefetchCount,
		"results":  c.cfg.ResultsQueue,
	})
	defer c.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			if err := c.channel.Cancel(consumerTag, false); err != nil {
				c.logger.Warn(ctx, "Failed to cancel consumer", types.Fields{"error": err.Error()})
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("rabbitmq delivery channel closed")
			}
			c.inflight.Add(1)
			go func() {
				defer c.inflight.Done()
				c.handle(ctx, d)
			}()
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	req := deliveryRequest(d)

	resp, err := c.dispatcher.Handle(ctx, req)
	result := settle(ctx, resp, err, d.Redelivered)

	fields := types.Fields{
		"request_id":  req.ID,
		"outcome":     result.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	}

	if result == ack && c.cfg.ResultsQueue != "" {
		if pubErr := c.publish(context.WithoutCancel(ctx), req.ID, resp); pubErr != nil {
			c.logger.Error(ctx, "Failed to publish result", pubErr, fields)
			c.metrics.RecordError("rabbitmq.publish", "publish_failed")
		}
	}

	var settleErr error
	switch result {
	case ack:
		settleErr = d.Ack(false)
	case requeue:
		settleErr = d.Nack(false, true)
	case drop:
		settleErr = d.Nack(false, false)
	}
	if settleErr != nil {
		c.logger.Error(ctx, "Failed to settle message", settleErr, fields)
	}

	c.metrics.RecordDuration("rabbitmq.message", time.Since(start).Seconds())
	if result == ack {
		c.metrics.RecordSuccess("rabbitmq.message")
		c.logger.Info(ctx, "Message processed", fields)
		return
	}
	c.metrics.RecordError("rabbitmq.message", result.String())
	if err != nil {
		c.logger.Error(ctx, "Message processing failed", err, fields)
	} else {
		c.logger.Warn(ctx, "Message processing failed", fields)
	}
}

func (c *RabbitMQConsumer) publish(ctx context.Context, correlationID string, resp handler.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return c.channel.PublishWithContext(ctx, "", c.cfg.ResultsQueue, false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		CorrelationId: correlationID,
		Type:          "task.summary",
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
}

// Close closes the channel and the connection.
func (c *RabbitMQConsumer) Close() error {
	err := c.channel.Close()
	if c.conn != nil {
		err = errors.Join(err, c.conn.Close())
	}
	return err
}

func deliveryRequest(d amqp.Delivery) handler.Request {
	req := handler.Request{
		ID:        d.MessageId,
		Source:    "rabbitmq",
		Type:      d.Type,
		Payload:   json.RawMessage(d.Body),
		Metadata:  make(map[string]string, len(d.Headers)),
		Timestamp: d.Timestamp,
	}
	if req.ID == "" {
		req.ID = fmt.Sprintf("rmq-%d", d.DeliveryTag)
	}
	if req.Type == "" {
		req.Type = handler.TypeDownload
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			req.Metadata[k] = s
		}
	}
	if d.CorrelationId != "" {
		req.Metadata["correlation-id"] = d.CorrelationId
	}
	return req
}
