// Package kafka connects the alert store to the wider platform: inbound
// monitoring events become create-alert commands, and alert lifecycle events
// are published for downstream consumers.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tidwall/gjson"

	"github.com/halcyonops/intel-console/internal/alert"
	"github.com/halcyonops/intel-console/internal/command"
	"github.com/halcyonops/intel-console/internal/config"
)

// Consumer turns monitoring events from source systems into alerts. Expected
// message shape:
//
//	{"name": "...", "description": "...", "severity": "critical", "source": "monitor-01"}
type Consumer struct {
	config       *config.Config
	logger       *slog.Logger
	reader       *kafka.Reader
	dispatcher   *command.Dispatcher
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	messageCount int64
	errorCount   int64
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.Config, logger *slog.Logger, dispatcher *command.Dispatcher) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		Topic:          cfg.Kafka.EventTopic,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: cfg.Kafka.CommitInterval,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{
		config:       cfg,
		logger:       logger,
		reader:       reader,
		dispatcher:   dispatcher,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the consumer workers.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer",
		"topic", c.config.Kafka.EventTopic,
		"group_id", c.config.Kafka.GroupID)

	for i := 0; i < c.config.Kafka.WorkerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}

	return nil
}

// Stop stops the consumer and waits for workers to drain.
func (c *Consumer) Stop() {
	c.logger.Info("Stopping Kafka consumer")
	close(c.shutdownChan)
	if c.reader != nil {
		c.reader.Close()
	}
	c.wg.Wait()
	c.logger.Info("Kafka consumer stopped")
}

// Stats reports processed and failed message counts.
func (c *Consumer) Stats() (processed, failed int64) {
	return atomic.LoadInt64(&c.messageCount), atomic.LoadInt64(&c.errorCount)
}

func (c *Consumer) worker(ctx context.Context, workerID int) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdownChan:
			return
		default:
			readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			message, err := c.reader.ReadMessage(readCtx)
			cancel()

			if err != nil {
				if err == context.DeadlineExceeded || ctx.Err() != nil {
					continue
				}
				c.logger.Error("Failed to read Kafka message",
					"worker_id", workerID,
					"error", err)
				atomic.AddInt64(&c.errorCount, 1)
				time.Sleep(1 * time.Second)
				continue
			}

			if err := c.processMessage(ctx, message.Value); err != nil {
				c.logger.Error("Failed to process monitoring event",
					"worker_id", workerID,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err)
				atomic.AddInt64(&c.errorCount, 1)
			} else {
				atomic.AddInt64(&c.messageCount, 1)
			}
		}
	}
}

// processMessage extracts alert fields from the raw event payload and
// dispatches a create command. Malformed events are rejected, not retried.
func (c *Consumer) processMessage(ctx context.Context, payload []byte) error {
	if !gjson.ValidBytes(payload) {
		return fmt.Errorf("event payload is not valid JSON")
	}

	name := gjson.GetBytes(payload, "name").String()
	if name == "" {
		name = gjson.GetBytes(payload, "title").String()
	}
	description := gjson.GetBytes(payload, "description").String()
	source := gjson.GetBytes(payload, "source").String()

	severity, err := alert.ParseSeverity(gjson.GetBytes(payload, "severity").String())
	if err != nil {
		severity = alert.SeverityWarning
	}

	_, err = c.dispatcher.Send(ctx, command.CreateAlert{
		Name:        name,
		Description: description,
		Severity:    severity,
		Source:      source,
		Actor:       "ingest:" + c.config.Kafka.EventTopic,
	})
	if err != nil {
		return fmt.Errorf("create alert from event: %w", err)
	}
	return nil
}
