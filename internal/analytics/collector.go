package analytics

import (
	"context"
	"log/slog"

	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
)

// Collector buffers analytics events and publishes them to Kafka off the
// request path. Track never blocks; when the buffer is full events are
// dropped rather than slowing a search down.
type Collector struct {
	producer *kafka.Producer
	eventCh  chan any
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector publishing through producer.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. It runs until ctx is cancelled or Close
// is called, draining buffered events before returning.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event without blocking.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to exit.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event any) {
	if err := c.producer.Publish(ctx, kafka.Event{
		Key:   "analytics",
		Value: event,
	}); err != nil {
		c.logger.Error("failed to publish analytics event", "error", err)
	}
}

// drainRemaining flushes whatever is still buffered as one batch write.
func (c *Collector) drainRemaining() {
	var events []kafka.Event
drain:
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				break drain
			}
			events = append(events, kafka.Event{Key: "analytics", Value: event})
		default:
			break drain
		}
	}
	if len(events) == 0 {
		return
	}
	if err := c.producer.PublishBatch(context.Background(), events); err != nil {
		c.logger.Error("failed to flush analytics events", "count", len(events), "error", err)
	}
}
