package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/models"
)

// EventType labels published usage events.
const EventType = "prompt_request_record"

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes records as JSON events keyed by application ID.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	log     *logrus.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, timeout time.Duration, log *logrus.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaPublisherWithWriter(writer, timeout, log)
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter, timeout time.Duration, log *logrus.Logger) *KafkaPublisher {
	if log == nil {
		log = logrus.New()
	}
	return &KafkaPublisher{writer: writer, timeout: timeout, log: log}
}

func (p *KafkaPublisher) Record(ctx context.Context, record *models.PromptRequestRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal usage event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(record.ApplicationID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventType)},
			{Key: "model-vendor", Value: []byte(record.ModelVendor)},
		},
		Time: record.FinishTime,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish usage event to kafka: %w", err)
	}

	p.log.WithField("id", record.ID).Debug("Published usage event to kafka")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
