package broker

import (
	"context"
	"log/slog"
	"sync"

	"cinema-order-engine/internal/pkg/config"
	"cinema-order-engine/internal/pkg/errs"
	"cinema-order-engine/internal/usecase/shared"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes outbox events to a durable queue on the default
// exchange. The channel runs in confirm mode and Publish returns only after the
// broker acks. Connection and channel are (re)opened lazily on Publish, so the
// service starts while the broker is down.
type RabbitMQPublisher struct {
	mu     sync.Mutex
	url    string
	queue  string
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
	logger *slog.Logger
}

func NewRabbitMQPublisher(cfg config.BrokerConfig, logger *slog.Logger) *RabbitMQPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &RabbitMQPublisher{url: cfg.URL, queue: cfg.Queue, logger: logger}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		logger.Warn("rabbitmq unavailable, will retry on publish", "queue", cfg.Queue, "error", err.Error())
	}
	return p
}

func (p *RabbitMQPublisher) connectLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return errs.Wrap(err, "rabbitmq dial")
		}
		p.conn = conn
		p.ch = nil
	}

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.conn.Channel()
		if err != nil {
			return errs.Wrap(err, "rabbitmq channel open")
		}
		if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return errs.Wrapf(err, "rabbitmq declare queue %s", p.queue)
		}
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return errs.Wrap(err, "rabbitmq enable publisher confirms")
		}
		p.ch = ch
	}
	return nil
}

// Publish sends the event payload as a persistent JSON message. MessageId is the
// event id so consumers can drop redeliveries.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event shared.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errs.ErrPublisherClosed
	}
	if err := p.connectLocked(); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID.String(),
		Type:         event.Topic,
		Timestamp:    event.CreatedAt.UTC(),
		Body:         event.Payload,
	}
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queue, false, false, msg)
	if err != nil {
		return errs.Wrapf(err, "rabbitmq publish event %s", event.EventID)
	}
	if conf == nil {
		return errs.New("rabbitmq channel not in confirm mode")
	}
	if err := awaitConfirm(ctx, conf); err != nil {
		if !errs.Is(err, errs.ErrPublishNacked) {
			// confirm state unknown; reopen on next publish
			_ = p.ch.Close()
			p.ch = nil
		}
		return errs.Wrapf(err, "rabbitmq confirm event %s", event.EventID)
	}
	return nil
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// awaitConfirm blocks until the broker acks or nacks the delivery.
func awaitConfirm(ctx context.Context, conf confirmation) error {
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return errs.ErrPublishNacked
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			p.logger.Warn("rabbitmq channel close failed", "error", err.Error())
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}
