package messaging

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler folds one decoded event into downstream state. Handlers are
// synchronous; redelivery is driven by their error return.
type Handler[T any] func(ctx context.Context, event *T) error

// Consumer drains a topic and feeds each decoded payload to a typed
// handler. Handler failures nack the message so the stream redelivers
// it; payloads that do not decode are acked away, since redelivering a
// malformed message can never succeed and click analytics tolerate the
// loss.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
	discarded  atomic.Int64
}

// NewConsumer creates a consumer for one event type on one topic.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer drains.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Discarded returns how many malformed payloads were acked away.
func (c *Consumer[T]) Discarded() int64 {
	return c.discarded.Load()
}

// Start subscribes and begins draining in a background goroutine.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.cancel()
		close(c.done)

		return err
	}

	go func() {
		defer close(c.done)

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}

				c.settle(ctx, msg)
			}
		}
	}()

	return nil
}

// settle decodes one message and acks or nacks it exactly once.
func (c *Consumer[T]) settle(ctx context.Context, msg *message.Message) {
	event, err := c.decode(msg)
	if err != nil {
		c.discarded.Add(1)
		c.logger.Warn("discarding malformed message",
			zap.String("topic", c.topic),
			zap.String("message_id", msg.UUID),
			zap.Error(err),
		)
		msg.Ack()

		return
	}

	if err := c.handler(ctx, event); err != nil {
		c.logger.Error("event handler failed, redelivering",
			zap.String("topic", c.topic),
			zap.String("message_id", msg.UUID),
			zap.Error(err),
		)
		msg.Nack()

		return
	}

	msg.Ack()

	c.logger.Debug("event applied",
		zap.String("topic", c.topic),
		zap.String("message_id", msg.UUID),
	)
}

func (c *Consumer[T]) decode(msg *message.Message) (*T, error) {
	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, err
	}

	return &event, nil
}

// Shutdown cancels the subscription and waits for the drain loop to exit.
// Calling it on a consumer that never started is a no-op.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	<-c.done

	return nil
}
