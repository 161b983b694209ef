package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/halcyonops/intel-console/internal/config"
	"github.com/halcyonops/intel-console/internal/event"
)

const publishQueueSize = 256

// Producer publishes alert lifecycle events for downstream consumers. Events
// are queued and written from a background goroutine so a slow or unreachable
// broker never stalls the command path.
type Producer struct {
	config       *config.Config
	logger       *slog.Logger
	writer       *kafka.Writer
	queue        chan kafka.Message
	wg           sync.WaitGroup
	messageCount int64
	errorCount   int64
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg *config.Config, logger *slog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.AlertTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
	}

	p := &Producer{
		config: cfg,
		logger: logger,
		writer: writer,
		queue:  make(chan kafka.Message, publishQueueSize),
	}
	p.wg.Add(1)
	go p.drain()
	return p
}

// HandleEvent enqueues a lifecycle event for publishing. It is subscribed to
// the event bus at startup and never blocks; when the queue is full the event
// is dropped and logged.
func (p *Producer) HandleEvent(e event.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("Failed to marshal lifecycle event", "error", err)
		atomic.AddInt64(&p.errorCount, 1)
		return
	}

	select {
	case p.queue <- kafka.Message{Key: []byte(e.AlertID), Value: payload}:
	default:
		p.logger.Warn("Kafka publish queue full, dropping event",
			"type", e.Type,
			"alert_id", e.AlertID)
		atomic.AddInt64(&p.errorCount, 1)
	}
}

// drain writes queued messages until the queue is closed.
func (p *Producer) drain() {
	defer p.wg.Done()

	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()

		if err != nil {
			p.logger.Error("Failed to publish lifecycle event",
				"alert_id", string(msg.Key),
				"error", err)
			atomic.AddInt64(&p.errorCount, 1)
			continue
		}
		atomic.AddInt64(&p.messageCount, 1)
	}
}

// Stats reports published and failed message counts.
func (p *Producer) Stats() (published, failed int64) {
	return atomic.LoadInt64(&p.messageCount), atomic.LoadInt64(&p.errorCount)
}

// Close drains the queue and closes the writer.
func (p *Producer) Close() error {
	close(p.queue)
	p.wg.Wait()
	return p.writer.Close()
}
