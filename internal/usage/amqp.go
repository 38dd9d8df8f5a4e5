package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/models"
)

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes records as persistent JSON messages to a topic
// exchange. The routing key is prompt.record.<vendor>.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	timeout  time.Duration
	log      *logrus.Logger
}

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange string, timeout time.Duration, log *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	p := NewAMQPPublisherWithChannel(channel, exchange, timeout, log)
	p.conn = conn
	return p, nil
}

// NewAMQPPublisherWithChannel wraps an existing channel.
func NewAMQPPublisherWithChannel(channel Channel, exchange string, timeout time.Duration, log *logrus.Logger) *AMQPPublisher {
	if log == nil {
		log = logrus.New()
	}
	return &AMQPPublisher{channel: channel, exchange: exchange, timeout: timeout, log: log}
}

// RoutingKey returns the routing key used for record.
func RoutingKey(record *models.PromptRequestRecord) string {
	vendor := record.ModelVendor
	if vendor == "" {
		vendor = "unknown"
	}
	return "prompt.record." + vendor
}

func (p *AMQPPublisher) Record(ctx context.Context, record *models.PromptRequestRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal usage event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    record.ID,
		Timestamp:    time.Now(),
		Type:         EventType,
		AppId:        record.ApplicationID,
		Body:         body,
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, RoutingKey(record), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish usage event to AMQP: %w", err)
	}

	p.log.WithField("id", record.ID).Debug("Published usage event to AMQP")
	return nil
}

func (p *AMQPPublisher) Close() error {
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
