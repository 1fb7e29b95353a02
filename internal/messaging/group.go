package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Runnable is the lifecycle contract shared by consumers and other
// background workers the group can own.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

// ConsumerGroup starts a set of consumers as one unit and owns the
// shared subscriber, closing it after the last consumer stops. Startup
// is all-or-nothing: a consumer that fails to start unwinds the ones
// before it.
type ConsumerGroup struct {
	consumers  []Runnable
	subscriber message.Subscriber
	logger     *zap.Logger
}

func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Add registers a consumer. Not safe to call after Start.
func (g *ConsumerGroup) Add(consumer Runnable) {
	g.consumers = append(g.consumers, consumer)
}

// Start brings every consumer up in registration order. On failure the
// already-started consumers are stopped again and the error is returned
// with the failing position.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, consumer := range g.consumers {
		err := consumer.Start(ctx)
		if err == nil {
			continue
		}

		g.stop(i)

		return fmt.Errorf("start consumer %d: %w", i, err)
	}

	g.logger.Info("consumer group started", zap.Int("consumers", len(g.consumers)))

	return nil
}

// Shutdown stops consumers in reverse start order, then closes the
// subscriber. Every consumer is attempted; the errors are joined.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("consumer group stopping", zap.Int("consumers", len(g.consumers)))

	err := g.stop(len(g.consumers))

	return errors.Join(err, g.subscriber.Close())
}

// stop shuts down consumers[0:n] in reverse order, joining their errors.
func (g *ConsumerGroup) stop(n int) error {
	var errs []error

	for i := n - 1; i >= 0; i-- {
		if err := g.consumers[i].Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown consumer %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
