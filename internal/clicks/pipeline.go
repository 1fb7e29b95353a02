package clicks

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rezolv/rezolv/internal/messaging"
	"go.uber.org/zap"
)

// DefaultQueueSize bounds the click event hand-off queue.
const DefaultQueueSize = 1024

// Pipeline captures resolution attempts and publishes them to the broker
// off the request path. RecordAttempt never blocks: a full queue drops the
// event, and publish failures are logged and forgotten.
type Pipeline struct {
	publish messaging.Publish[Event]
	newID   messaging.IDFunc
	queue   chan *Event
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Int64
	now     func() time.Time
}

// NewPipeline creates a click pipeline publishing through the given typed
// publish function. newID generates event identifiers.
func NewPipeline(
	publish messaging.Publish[Event], newID messaging.IDFunc, queueSize int, logger *zap.Logger,
) *Pipeline {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Pipeline{
		publish: publish,
		newID:   newID,
		queue:   make(chan *Event, queueSize),
		logger:  logger,
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// RecordAttempt enqueues a click event for the given resolution attempt.
// Called after the response decision is already made; it returns
// immediately regardless of queue or broker state.
func (p *Pipeline) RecordAttempt(aliasID uuid.UUID, outcome Outcome, meta RequestMeta) {
	event := &Event{
		EventID:       p.newID(),
		AliasID:       aliasID,
		Outcome:       outcome,
		Timestamp:     p.now(),
		ClientAddress: meta.ClientAddress,
		UserAgent:     meta.UserAgent,
		Referrer:      meta.Referrer,
	}

	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
		p.logger.Debug("click queue full, event dropped",
			zap.String("aliasId", aliasID.String()),
		)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Start launches the worker that drains the queue and publishes events.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	go p.drainLoop(ctx)

	return nil
}

func (p *Pipeline) drainLoop(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			p.flush()

			return
		case event := <-p.queue:
			p.publishEvent(event)
		}
	}
}

// flush publishes whatever is still queued at shutdown, without waiting
// for new events.
func (p *Pipeline) flush() {
	for {
		select {
		case event := <-p.queue:
			p.publishEvent(event)
		default:
			return
		}
	}
}

func (p *Pipeline) publishEvent(event *Event) {
	event.DeviceType = DetectDeviceType(event.UserAgent)
	event.Browser = DetectBrowser(event.UserAgent)
	event.OS = DetectOS(event.UserAgent)

	if err := p.publish(event); err != nil {
		// At-most-once: no retry, no propagation.
		p.logger.Warn("click event publish failed",
			zap.String("eventId", event.EventID),
			zap.String("aliasId", event.AliasID.String()),
			zap.Error(err),
		)
	}
}

// Shutdown stops the worker after it flushes the queued events.
func (p *Pipeline) Shutdown() error {
	if p.cancel != nil {
		p.cancel()
	}

	<-p.done

	return nil
}
