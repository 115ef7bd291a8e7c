package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes events to a durable topic exchange.  Messages are
// marked persistent.  A broken channel is reopened on the next publish.
type Publisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials the broker and declares exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Emit publishes ev under its routing key.
func (p *Publisher) Emit(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.RoutingKey(), err)
	}
	return p.PublishJSON(ctx, ev.RoutingKey(), body)
}

// PublishJSON publishes a pre-encoded JSON body with routing key key.
func (p *Publisher) PublishJSON(ctx context.Context, key string, body []byte) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         key,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, pub); err != nil {
		p.closeLocked()
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

// JSONPublisher is the part of Publisher PaymentForwarder needs.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, body []byte) error
}

// PaymentForwarder hands payment events to the payment exchange instead
// of applying them in-process.  PaymentHandler consumes them.
type PaymentForwarder struct {
	Pub JSONPublisher
}

// HandlePayment publishes ev with its kind as routing key.
func (f PaymentForwarder) HandlePayment(ctx context.Context, ev PaymentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	return f.Pub.PublishJSON(ctx, ev.Kind, body)
}
