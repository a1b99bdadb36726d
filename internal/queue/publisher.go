package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const bookingQueueName = "booking.confirmed"

// Publisher sends domain events to RabbitMQ. Publishing is best-effort:
// errors are logged and returned so callers can ignore failures without
// interrupting the request flow that produced the event.
type Publisher struct {
	url    string
	logger *zap.Logger
}

// NewPublisher returns a Publisher connecting to the given AMQP URL.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// PublishBookingConfirmed publishes a BookingConfirmedEvent to the
// booking.confirmed queue. Messages are marked persistent so they
// survive broker restarts. The function never panics; any error is
// logged and returned.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, event BookingConfirmedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(bookingQueueName, true, false, false, false, nil); err != nil {
		p.logger.Warn("rabbitmq queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshal event failed", zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", bookingQueueName, false, false, pub); err != nil {
		p.logger.Warn("rabbitmq publish failed", zap.Error(err))
		return err
	}
	return nil
}
