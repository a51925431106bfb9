package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/seat-reservation-admin/internal/logger"
)

// dialTimeout bounds how long a request can stall on an unreachable broker.
const dialTimeout = 3 * time.Second

// ErrBrokerUnavailable is returned without dialling while the publisher
// waits out the backoff after a failed connection attempt.
var ErrBrokerUnavailable = errors.New("broker unavailable")

// Publisher sends booking events. Failures are reported to the caller,
// which is expected to log and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev BookingEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// AMQPPublisher publishes persistent JSON messages to a durable queue on
// the default exchange. The connection is opened lazily and re-dialled
// after the broker drops it. A failed dial starts a backoff window during
// which Publish fails fast, so an outage costs at most one dial timeout per
// window instead of one per event.
type AMQPPublisher struct {
	url   string
	queue string
	log   *logger.Logger
	dial  func(url string) (*amqp.Connection, error)
	now   func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	backoff time.Duration
	retryAt time.Time
}

func NewAMQPPublisher(url, queue string, log *logger.Logger) *AMQPPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &AMQPPublisher{
		url:   url,
		queue: queue,
		log:   log,
		dial: func(url string) (*amqp.Connection, error) {
			return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
		},
		now: time.Now,
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns an open channel, dialling and declaring the queue if
// needed. Callers hold p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if p.now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}

	conn, err := p.dial(p.url)
	if err != nil {
		p.deferRetry()
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		p.deferRetry()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		p.deferRetry()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.backoff, p.retryAt = 0, time.Time{}
	p.log.Info(context.Background(), "events.publisher_connected")
	return ch, nil
}

// deferRetry doubles the backoff up to maxBackoff. Callers hold p.mu.
func (p *AMQPPublisher) deferRetry() {
	switch {
	case p.backoff == 0:
		p.backoff = time.Second
	case p.backoff < maxBackoff:
		p.backoff = min(2*p.backoff, maxBackoff)
	}
	p.retryAt = p.now().Add(p.backoff)
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}
